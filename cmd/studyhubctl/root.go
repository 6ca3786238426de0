package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"studyhub/internal/config"
	"studyhub/internal/log"
)

var (
	// flags
	env        string
	configFile string

	logger *logrus.Entry
)

func init() {
	RootCmd.PersistentFlags().StringVar(&env, "env", "dev", "environment")
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (toml)")
}

var RootCmd = cobra.Command{
	Use:           "studyhubctl",
	Short:         "Administer a StudyHub deployment",
	Long:          "Run migrations and manage accounts of a StudyHub deployment",
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = log.New(env)
	},
}

// loadConfig reads the same configuration as the server. The --config flag
// takes precedence over CONFIG_FILE.
func loadConfig() (config.Config, error) {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return config.Config{}, err
		}
	}
	return config.Load()
}
