package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/findcloutintern/kimigate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the gateway configuration.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for the upstream API key and server settings.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("%s Configuration Setup", AppName)
	color.Yellow("Follow the prompts; press enter to keep a default.")

	reader := bufio.NewReader(os.Stdin)
	cfg := config.DefaultConfig()

	fmt.Print("\nNVIDIA NIM API Key: ")
	apiKey, _ := reader.ReadString('\n')
	cfg.APIKey = strings.TrimSpace(apiKey)

	fmt.Printf("Host [%s]: ", cfg.Host)
	host, _ := reader.ReadString('\n')
	if host = strings.TrimSpace(host); host != "" {
		cfg.Host = host
	}

	fmt.Printf("Port [%d]: ", cfg.Port)
	portStr, _ := reader.ReadString('\n')
	if portStr = strings.TrimSpace(portStr); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid port: %q", portStr)
		}
		cfg.Port = port
	}

	fmt.Print("Gateway API Key (optional, for client authentication): ")
	proxyKey, _ := reader.ReadString('\n')
	cfg.ProxyAPIKey = strings.TrimSpace(proxyKey)

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the gateway with: %s start", AppName)

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration file found; environment defaults apply.")
	}

	cfg := cfgMgr.Get()

	color.Blue("Current Configuration:")
	fmt.Printf("  %-22s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-22s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-22s: %s\n", "Model", cfg.Model)
	fmt.Printf("  %-22s: %s\n", "NIM API Key", maskString(cfg.APIKey))
	fmt.Printf("  %-22s: %s\n", "Gateway API Key", maskString(cfg.ProxyAPIKey))
	fmt.Printf("  %-22s: %d req / %ds\n", "Rate limit", cfg.RateLimit, cfg.RateWindow)
	fmt.Printf("  %-22s: %d\n", "Max tokens", cfg.MaxTokens)
	fmt.Printf("  %-22s: %s\n", "Config Path", cfgMgr.GetPath())

	fmt.Println("\nInterceptions:")
	fmt.Printf("  %-22s: %v\n", "Quota check", cfg.SkipQuotaCheck)
	fmt.Printf("  %-22s: %v\n", "Title generation", cfg.SkipTitleGeneration)
	fmt.Printf("  %-22s: %v\n", "Suggestion mode", cfg.SkipSuggestionMode)
	fmt.Printf("  %-22s: %v\n", "Filepath extraction", cfg.SkipFilepathExtraction)
	fmt.Printf("  %-22s: %v\n", "Prefix detection", cfg.FastPrefixDetection)

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg := cfgMgr.Get()

	var errors []string

	if cfg.APIKey == "" {
		errors = append(errors, "NVIDIA NIM API key is not set (config file or NVIDIA_NIM_API_KEY)")
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		errors = append(errors, fmt.Sprintf("port %d is out of range", cfg.Port))
	}

	if cfg.RateLimit <= 0 {
		errors = append(errors, "rate limit must be positive")
	}

	if cfg.RateWindow <= 0 {
		errors = append(errors, "rate window must be positive")
	}

	if len(errors) > 0 {
		color.Red("Configuration validation failed:")
		for _, err := range errors {
			fmt.Printf("  - %s\n", err)
		}

		return fmt.Errorf("configuration validation failed")
	}

	color.Green("Configuration is valid!")

	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
