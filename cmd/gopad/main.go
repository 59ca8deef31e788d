package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	shareArg   string
	watchFile  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gopad",
	Short: "gopad - an interactive Go scratchpad",
	Long: `gopad pairs a code buffer with a live Go interpreter.

Submissions from the editor or the command line are numbered, evaluated in
order, and recorded in a transcript. Buffers can be shared as links.

Run without arguments to start the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		config := zap.NewProductionConfig()
		config.OutputPaths = []string{"stderr"}
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "Workspace directory holding .gopad/")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <workspace>/.gopad/config.yaml)")

	rootCmd.Flags().StringVar(&shareArg, "share", "", "Open with the buffer carried by a share link or token")
	rootCmd.Flags().StringVar(&watchFile, "watch", "", "Mirror a file on disk into the editor buffer")

	rootCmd.AddCommand(
		runCmd,
		shareCmd,
		openCmd,
		formatCmd,
		treeCmd,
		sessionsCmd,
		examplesCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
