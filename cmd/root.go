package cmd

import (
	"github.com/spf13/cobra"

	"heartrisk/config"
	"heartrisk/deployment"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "heartrisk",
	Short: "Heart disease risk prediction API",
	Long: `heartrisk serves a pre-trained classifier over HTTP. It loads the model,
the feature list and the class names from a deployment directory at start
and answers prediction requests as JSON.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().String("deployment-dir", "", "deployment directory (overrides config)")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP port (overrides config)")
	rootCmd.PersistentFlags().String("variant", "", "response variant: classic or extended (overrides config)")
}

// loadConfig reads the config file, then applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("deployment-dir") {
		cfg.Deployment.Dir, _ = flags.GetString("deployment-dir")
	}
	if flags.Changed("port") {
		cfg.Http.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("variant") {
		cfg.API.Variant, _ = flags.GetString("variant")
	}
	return cfg, cfg.Validate()
}

func deploymentFiles(cfg *config.Config) deployment.Files {
	return deployment.Files{
		Model:    cfg.Deployment.ModelFile,
		Features: cfg.Deployment.FeaturesFile,
		Classes:  cfg.Deployment.ClassesFile,
	}
}

// booleanFields are only normalized by the extended variant.
func booleanFields(cfg *config.Config) []string {
	if cfg.API.Variant != config.VariantExtended {
		return nil
	}
	return cfg.API.BooleanFields
}
