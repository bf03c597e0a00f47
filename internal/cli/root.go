package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/formrelay-systems/formrelay/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "formrelay",
	Short: "Form submission relay",
	Long: `formrelay accepts marketing-site form submissions, deduplicates
them, and forwards each one to the admin dashboard API with retries.
Terminally failed submissions are persisted to disk and can be replayed
later.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not load config: %v\n", err)
		os.Exit(1)
	}
}
