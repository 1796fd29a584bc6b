package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"heartrisk/deployment"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the deployment directory loads",
	Long: `Load the model, feature list and class names exactly as serve would,
print a summary and exit non-zero if anything is missing or inconsistent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		artifacts, err := deployment.Load(cfg.Deployment.Dir, deploymentFiles(cfg))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Model loaded from: %s\n", artifacts.ModelPath)
		fmt.Fprintf(out, "Features (%d): %s\n", len(artifacts.Features), strings.Join(artifacts.Features, ", "))
		fmt.Fprintf(out, "Classes (%d): %s\n", len(artifacts.Classes), strings.Join(artifacts.Classes, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
