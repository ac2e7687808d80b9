package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hermitbase/internal/config"
	"hermitbase/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	logFormat  string

	// cfg is loaded once in PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hermit",
	Short: "HermitBase - an autonomous onchain hermit crab",
	Long: `HermitBase lives in a wallet on Base. It performs small transactions,
narrates its life on Farcaster, answers mentions, and every so often molts:
its shell is minted as a ShellNFT and a new generation begins.

Run without arguments to start the agent loop.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		format := cfg.Logging.Format
		if logFormat != "" {
			format = logFormat
		}
		return logging.Initialize(logging.Options{Level: level, Format: format})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runAgent,
}

// runCmd starts the agent loop
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop until interrupted",
	Long: `Starts the control loop: act, announce, maybe molt, answer mentions, sleep.
SIGINT or SIGTERM saves the lifecycle state and exits.`,
	RunE: runAgent,
}

// statusCmd shows the current shell and chain status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current shell, wallet balance and archive counts",
	RunE:  showStatus,
}

// shellsCmd lists archived shells
var shellsCmd = &cobra.Command{
	Use:   "shells",
	Short: "List shed shells from the archive",
	RunE:  listShells,
}

// stateCmd prints the persisted lifecycle state
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the persisted lifecycle state",
	RunE:  printState,
}

// moltCheckCmd dry-runs the rule-based molt check
var moltCheckCmd = &cobra.Command{
	Use:   "molt-check",
	Short: "Evaluate the rule-based molt check against the persisted state",
	Long: `Loads the persisted state and runs the rule-based molt check the given
number of times. Thresholds are redrawn on every check, so repeated runs show
how likely a molt currently is. Nothing is changed.`,
	RunE: moltCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or console (default from config)")

	shellsCmd.Flags().Int("limit", 20, "Maximum number of shells to list (0 for all)")
	stateCmd.Flags().Bool("raw", false, "Print the state file exactly as stored")
	moltCheckCmd.Flags().Int("runs", 1, "Number of checks to draw")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(shellsCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(moltCheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
