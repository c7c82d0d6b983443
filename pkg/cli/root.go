package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	// Version is the current version of nodeflow
	Version = "1.0.0"

	// configDirEnv overrides the config directory
	configDirEnv = "NODEFLOW_CONFIG_DIR"
)

// GlobalOptions holds the persistent flags of the CLI
type GlobalOptions struct {
	ConfigDir string
	Debug     bool
}

// GlobalConfig is the shared flag instance
var GlobalConfig = &GlobalOptions{}

// settings is the loaded config.yaml, available after PersistentPreRunE
var settings = DefaultConfig()

// NewRootCommand creates the root cobra command for nodeflow
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodeflow",
		Short: "nodeflow - run visual node graphs from the command line",
		Long: `nodeflow executes node graphs: a pull-based evaluator computes data nodes on
demand while flow nodes push control along execution wires. Graphs live as YAML
documents in ~/.nodeflow/graphs and every run is recorded in a local history.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := LoadConfig(GetConfigDir())
			if err != nil {
				return err
			}
			settings = cfg
			slog.SetDefault(settings.NewLogger(cmd.ErrOrStderr(), GlobalConfig.Debug))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&GlobalConfig.ConfigDir, "config-dir", "", "Configuration directory (default: ~/.nodeflow)")

	cmd.AddCommand(NewInitCommand())
	cmd.AddCommand(NewImportCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewRunsCommand())
	cmd.AddCommand(NewLogsCommand())
	cmd.AddCommand(NewNodesCommand())
	cmd.AddCommand(NewCredentialCommand())
	cmd.AddCommand(NewVariablesCommand())
	cmd.AddCommand(NewScheduleCommand())
	cmd.AddCommand(NewExportCommand())

	return cmd
}

// initConfig creates the configuration directory, its subdirectories and a
// default config.yaml
func initConfig() error {
	dir := GetConfigDir()
	GlobalConfig.ConfigDir = dir

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	for _, sub := range []string{"graphs", "captures"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", sub, err)
		}
	}
	return writeDefaultConfig(dir)
}

// GetConfigDir returns the configuration directory path
// Priority order: 1) NODEFLOW_CONFIG_DIR, 2) --config-dir, 3) ~/.nodeflow
func GetConfigDir() string {
	if envDir := os.Getenv(configDirEnv); envDir != "" {
		return envDir
	}
	if GlobalConfig.ConfigDir != "" {
		return GlobalConfig.ConfigDir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".nodeflow"
	}
	return filepath.Join(homeDir, ".nodeflow")
}

// GetGraphsDir returns the directory graph documents are stored in
func GetGraphsDir() string {
	return filepath.Join(GetConfigDir(), "graphs")
}

// GetCapturesDir returns the directory capture nodes write PNG files to
func GetCapturesDir() string {
	return filepath.Join(GetConfigDir(), "captures")
}

// GetDatabasePath returns the run history database path
func GetDatabasePath() string {
	return filepath.Join(GetConfigDir(), "nodeflow.db")
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}
