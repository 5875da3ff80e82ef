// Package cmd implements the omniedit command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/omniedit/internal/config"
	"github.com/zjrosen/omniedit/internal/log"
	"github.com/zjrosen/omniedit/internal/paths"
)

var (
	version   = "dev"
	cfgFile   string
	debugFlag bool
	cfg       config.Config
	configErr error

	// configFilePath is where `syntax add` and `syntax tokens` persist rules.
	configFilePath string

	logCleanup func()
)

var rootCmd = &cobra.Command{
	Use:   "omniedit",
	Short: "Run and highlight scripts from the terminal",
	Long: `omniedit runs Lua programs with their output streamed to the terminal in
batches, and renders source files with regex based syntax highlighting.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
			logCleanup = nil
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/omniedit/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also OMNIEDIT_DEBUG, log path from OMNIEDIT_LOG)")
}

func initConfig() {
	cfg = config.Config{}
	configErr = nil

	defaults := config.Defaults()
	viper.SetDefault("run.pump_interval", defaults.Run.PumpInterval)
	viper.SetDefault("run.history", defaults.Run.History)
	viper.SetDefault("editor.tab_width", defaults.Editor.TabWidth)
	viper.SetDefault("editor.smart_newline", defaults.Editor.SmartNewline)
	viper.SetDefault("syntax.builtin", defaults.Syntax.Builtin)
	viper.SetDefault("history.path", defaults.History.Path)
	viper.SetDefault("cache.expiration", defaults.Cache.Expiration)
	viper.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	projectConfig := filepath.Join(paths.ProjectDir("."), "config.yaml")
	userConfig := filepath.Join(paths.ConfigDir(), "config.yaml")

	// Config lookup order:
	// 1. --config
	// 2. .omniedit/config.yaml (current directory)
	// 3. ~/.config/omniedit/config.yaml (user config)
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case fileExists(projectConfig):
		viper.SetConfigFile(projectConfig)
	default:
		viper.SetConfigFile(userConfig)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			configErr = fmt.Errorf("reading config: %w", err)
			return
		}
		// No config file yet: write the default one and continue.
		target := viper.ConfigFileUsed()
		if writeErr := config.WriteDefaultConfig(target); writeErr == nil {
			_ = viper.ReadInConfig()
		}
	}
	configFilePath = viper.ConfigFileUsed()

	if err := viper.Unmarshal(&cfg); err != nil {
		configErr = fmt.Errorf("decoding config: %w", err)
	}
}

func preRun(_ *cobra.Command, _ []string) error {
	if os.Getenv("OMNIEDIT_DEBUG") != "" || debugFlag {
		logPath := os.Getenv("OMNIEDIT_LOG")
		if logPath == "" {
			logPath = "debug.log"
		}
		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		logCleanup = cleanup
		log.Info(log.CatConfig, "omniedit starting", "version", version, "config", configFilePath)
	}

	if configErr != nil {
		return configErr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration in %s: %w", configFilePath, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
