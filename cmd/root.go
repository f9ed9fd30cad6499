// Package cmd implements the gateway's CLI: start/stop/status service
// management, config management, and the code helper that launches an agent
// client against the gateway.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/findcloutintern/kimigate/internal/config"
)

const (
	AppName = "kimigate"
	Version = "1.0.0"
)

var (
	logger  *slog.Logger
	homeDir string
	baseDir string
	cfgMgr  *config.Manager
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger = slog.New(handler)

	var err error
	homeDir, err = os.UserHomeDir()
	if err != nil {
		logger.Error("Failed to get home directory", "error", err)
		os.Exit(1)
	}

	baseDir = filepath.Join(homeDir, "."+AppName)
	cfgMgr = config.NewManager(baseDir)
}

var rootCmd = &cobra.Command{
	Use:     AppName,
	Short:   "Anthropic-to-NIM gateway for Kimi K2.5",
	Long:    `A gateway that accepts Anthropic Messages API requests and serves them from moonshotai/kimi-k2.5 on NVIDIA NIM, translating requests, tool calls and streaming events in both directions.`,
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(configCmd)
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
}

func warnIfNoAPIKey(cfg *config.Config) {
	if cfg.APIKey == "" {
		color.Yellow("No NVIDIA NIM API key configured.")
		fmt.Printf("Set NVIDIA_NIM_API_KEY or run '%s config init'.\n", AppName)
	}
}
