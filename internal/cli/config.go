package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage claimcheck configuration",
	Long: `Manage claimcheck configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CLAIMCHECK_*, FLUO_*, OPENAI_API_KEY)
3. Config file (~/.claimcheck/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after applying defaults, config file, environment variables and flags. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		return writeConfig(os.Stdout, cfg)
	},
}

// writeConfig prints cfg as YAML followed by the masked secrets
func writeConfig(w io.Writer, cfg *model.Config) error {
	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(w, "  Current Configuration")
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintln(w)
	fmt.Fprintln(w, string(yamlData))

	fmt.Fprintln(w, "Secrets (environment only):")
	fmt.Fprintf(w, "  FLUO_API_KEY:    %s\n", mask(cfg.Upstream.APIKey))
	fmt.Fprintf(w, "  FLUO_PROJECT_ID: %s\n", mask(cfg.Upstream.ProjectID))
	fmt.Fprintf(w, "  OPENAI_API_KEY:  %s\n", mask(cfg.LLM.APIKey))
	if cfg.Session.Backend == "redis" {
		fmt.Fprintf(w, "  CLAIMCHECK_SESSION_REDIS_PASSWORD: %s\n", mask(cfg.Session.RedisPassword))
	}
	fmt.Fprintln(w)
	return nil
}

// mask hides all but the first four characters of a secret
func mask(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "********"
	default:
		return secret[:4] + "********"
	}
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.claimcheck/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".claimcheck", "config.yaml")
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  claimcheck config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n", configPath)
		fmt.Printf("\n")
		return nil
	},
}

// writeDefaultConfig writes the documented defaults to path. An existing file
// is never overwritten.
func writeDefaultConfig(path string) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'claimcheck config show' to view it, or delete it first to recreate", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	// Helper for writing with error checking
	printf := func(format string, a ...any) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(f, format, a...)
	}

	printf("# claimcheck configuration file\n")
	printf("#\n")
	printf("# Configuration hierarchy (highest to lowest priority):\n")
	printf("#   1. CLI flags\n")
	printf("#   2. Environment variables (CLAIMCHECK_*, dots become underscores)\n")
	printf("#   3. This config file\n")
	printf("#   4. Built-in defaults\n\n")
	printf("%s", yamlData)
	printf("\n# Secrets are read from the environment only:\n")
	printf("#   export FLUO_API_KEY=...\n")
	printf("#   export FLUO_PROJECT_ID=...\n")
	printf("#   export OPENAI_API_KEY=sk-...   # llm.enabled: true\n")
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
