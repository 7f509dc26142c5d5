package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bgdnvk/diabrisk/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage diabrisk configuration",
	Long:  `Configure where artifacts come from, how categories are encoded and how diabrisk logs.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long:  `Create a default configuration file in your home directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".diabrisk.yaml")

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file already exists at %s\n", configPath)
			return nil
		}

		if err := os.WriteFile(configPath, []byte(config.DefaultConfig), 0o600); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at %s\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Print the settings diabrisk would run with, after flags, environment and config file are merged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Load(viper.GetViper())

		doc, err := yaml.Marshal(settings.Redacted())
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}

		out := cmd.OutOrStdout()
		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(out, "# config file: %s\n", used)
		}
		_, err = out.Write(doc)
		return err
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
