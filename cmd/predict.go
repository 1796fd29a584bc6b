package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// samplePatient is sent when no --input file is given.
const samplePatient = `{
  "age": 55,
  "sex": "Male",
  "cp": "Typical Angina",
  "trestbps": 130,
  "chol": 250,
  "fbs": "False",
  "restecg": "Normal",
  "thalach": 150,
  "exang": "No",
  "oldpeak": 1.5,
  "slope": "Flat",
  "ca": 0.0,
  "thal": "Normal"
}`

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Send a payload to a running service and print the response",
	RunE:  runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().String("url", "http://127.0.0.1:5000/api/predict", "predict endpoint")
	predictCmd.Flags().StringP("input", "i", "", "JSON payload file (default: built-in sample patient)")
	predictCmd.Flags().Duration("timeout", 10*time.Second, "request timeout")
}

func runPredict(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("url")
	input, _ := cmd.Flags().GetString("input")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	payload := []byte(samplePatient)
	if input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		payload = data
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("could not connect to the API at %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status Code: %d\n\nResponse JSON:\n", resp.StatusCode)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "    "); err != nil {
		out.Write(body)
		fmt.Fprintln(out)
		return nil
	}
	fmt.Fprintln(out, pretty.String())
	return nil
}
