package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"IXScan/internal/config"
	"IXScan/internal/logger"
)

// ribInterval is the dump cadence shared by the RIS and RouteViews collectors.
const ribInterval = 8 * time.Hour

var rootFlags struct {
	config    string
	workers   int
	timestamp string
	logLevel  string
}

var (
	globalCfg     *config.Config
	restoreLogger = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "ix-scan",
	Short: "Count the members that re-append IX route server ASNs to their AS paths",
	Long: `'ix-scan' reads the RIB dumps of all public route collectors taken at one
snapshot time and reports, for every monitored IX route server, how many member
ASes re-append the route server's ASN and how many prefixes are involved.

Without --timestamp the most recent RIB snapshot that should be published is used.
`,
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is not an error.
		_ = godotenv.Load()

		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		restore, err := logger.Setup(cfg.Log)
		if err != nil {
			return err
		}
		globalCfg, restoreLogger = cfg, restore
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		restoreLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return scan(cmd.Context(), globalCfg)
	},
}

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
}

func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&rootFlags.config, "config", "c", "configs/config.yaml", "Path to the YAML config file")
	fs.IntVarP(&rootFlags.workers, "workers", "w", 0, "Number of concurrent collector workers (overrides scan.num_workers)")
	fs.StringVarP(&rootFlags.timestamp, "timestamp", "t", "",
		"RIB snapshot time, RFC 3339 or unix seconds (overrides scan.timestamp)")
	fs.StringVar(&rootFlags.logLevel, "log-level", "", "Log level (overrides log.level)")
}

// loadConfig reads the config file and applies the flags that were set explicitly.
func loadConfig(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadConfig(rootFlags.config)
	if err != nil {
		return nil, err
	}
	if fs.Changed("workers") {
		cfg.Scan.NumWorkers = rootFlags.workers
	}
	if fs.Changed("timestamp") {
		cfg.Scan.Timestamp = rootFlags.timestamp
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = rootFlags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// snapshotTime returns the configured snapshot, or the last RIB dump time that
// is at least one full interval old.
func snapshotTime(cfg *config.Config, now time.Time) (time.Time, error) {
	if cfg.Scan.Timestamp != "" {
		return config.ParseTimestamp(cfg.Scan.Timestamp)
	}
	return now.UTC().Truncate(ribInterval).Add(-ribInterval), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
