package cmd

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	logFormat  string
)

const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "invoicer",
	Version: Version,
	Short:   "Invoicer storage and migration toolkit",
	Long:    `Invoicer manages the invoicing database: connection lifecycle, versioned schema migrations, online backups, and the one-time legacy JSON import.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, console)")
}

// configureLogging builds the process logger from the persistent flags.
func configureLogging() {
	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stderr)
	if strings.EqualFold(logFormat, "console") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	rootLogger = logger.Level(level).With().Timestamp().Logger()
}

// rootLogger is handed to every component built by the subcommands.
var rootLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()

func Execute() error {
	return rootCmd.Execute()
}
