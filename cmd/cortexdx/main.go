// Cortexdx is an MCP server that learns resolution patterns: anonymized
// problem fingerprints, their fixes, and the outcome statistics that make
// past fixes retrievable by reliability.
//
// Usage:
//
//	# Start the stdio MCP server with defaults
//	cortexdx
//
//	# Point at a different config file
//	cortexdx serve --config /etc/cortexdx/config.yaml
//
//	# Configure via environment
//	CORTEXDX_LOGGING_LEVEL=debug cortexdx
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jscraik/cortexdx/internal/config"
	"github.com/jscraik/cortexdx/internal/crypto"
	"github.com/jscraik/cortexdx/internal/logging"
	"github.com/jscraik/cortexdx/internal/mcp"
	"github.com/jscraik/cortexdx/internal/patternstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cortexdx",
	Short: "MCP server for learned resolution patterns",
	Long: `cortexdx stores resolution patterns for MCP server problems: what went
wrong, what fixed it, and how reliably the fix has worked since. Problem
signatures are anonymized before storage and solution data is encrypted
at rest.

Running cortexdx with no arguments starts the stdio MCP server.`,
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stdio MCP server",
	Long: `Start the MCP server on the stdio transport.

Examples:
  # Serve with the default config (~/.config/cortexdx/config.yaml)
  cortexdx serve

  # Serve with an explicit config file
  cortexdx serve --config /etc/cortexdx/config.yaml`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cortexdx\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/cortexdx/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// runServe loads configuration, wires the store, and serves MCP on stdio
// until SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ring := &crypto.Keyring{}
	store, err := patternstore.New(patternstore.Config{
		Path:          cfg.Store.Path,
		EncryptionKey: cfg.Store.EncryptionKey,
	}, ring, logger)
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", zap.Error(err))
		}
	}()

	if cfg.Store.PruneMaxAge > 0 {
		removed, err := store.PruneOlderThan(ctx, cfg.Store.PruneMaxAge)
		if err != nil {
			return fmt.Errorf("prune patterns: %w", err)
		}
		if removed > 0 {
			logger.Info("pruned stale patterns", zap.Int64("removed", removed))
		}
	}

	serverVersion := cfg.Server.Version
	if serverVersion == "" {
		serverVersion = version
	}
	server, err := mcp.NewServer(&mcp.Config{
		Name:    cfg.Server.Name,
		Version: serverVersion,
		Logger:  logger,
	}, store)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	logger.Info("cortexdx starting",
		zap.String("store_path", cfg.Store.Path),
		zap.String("version", version))

	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("cortexdx shutdown complete")
	return nil
}
