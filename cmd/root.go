package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bgdnvk/diabrisk/internal/config"
	"github.com/bgdnvk/diabrisk/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "diabrisk",
	Short: "Single-shot diabetes model inference",
	Long: `diabrisk loads a trained model with its preprocessing artifacts, reads one
JSON record from stdin or an argument, and prints exactly one JSON result.

Each run is independent: load artifacts, validate, transform, predict, emit.`,
}

// ExitError carries a process exit code for a command that already wrote its
// response.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.diabrisk.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging on stderr and stack traces in failure output")
	rootCmd.PersistentFlags().String("artifacts", "", "artifact location: directory, s3://bucket/prefix or gs://bucket/prefix (default: next to the binary)")
	rootCmd.PersistentFlags().Bool("verify", true, "check artifacts against manifest.yaml when present")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("artifacts.location", rootCmd.PersistentFlags().Lookup("artifacts"))
	viper.BindPFlag("artifacts.verify", rootCmd.PersistentFlags().Lookup("verify"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	config.SetDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".diabrisk")
	} else if viper.GetBool("debug") {
		// flags, env and defaults still apply
		fmt.Fprintf(os.Stderr, "No home directory, skipping config file: %v\n", err)
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// stdout is reserved for the JSON response
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("debug") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// setup resolves the settings of this invocation and installs the logger.
func setup(cmd *cobra.Command) (config.Settings, *slog.Logger) {
	settings := config.Load(viper.GetViper())
	logger := logging.New(cmd.ErrOrStderr(), settings.Logging())
	return settings, logger
}

// exitStatus turns a pipeline exit code into the command's error.
func exitStatus(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}
