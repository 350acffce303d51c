package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/contractflow"
	"github.com/aretw0/contractflow/internal/platform"
)

var (
	verbose    bool
	dataDir    string
	user       string
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "contractflow",
	Short: "Move contracts through edit, sign and send",
	Long: `contractflow keeps a contract's stage, signatures and status consistent
between a local cache and the contract store of a data directory.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: nearest .contractflow)")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "User to act as")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: contractflow.yaml at the workspace root)")
}

// openWorkspace resolves configuration (flags over env over file) and
// opens the data directory.
func openWorkspace() (*contractflow.Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	root, err := platform.FindRoot(cwd)
	if err != nil {
		root = cwd
	}

	path := configPath
	if path == "" {
		path = filepath.Join(root, platform.ConfigFile)
	}
	cfg, err := contractflow.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if user != "" {
		cfg.User = user
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(root, platform.DataDirName)
	}

	opts := append(cfg.Options(), contractflow.WithLogger(slog.Default()))
	return contractflow.New(cfg.DataDir, opts...)
}
