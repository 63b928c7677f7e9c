package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ppiankov/claimcheck/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is set at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "claimcheck",
	Short: "claimcheck - claim extraction and evidence checking",
	Long: `claimcheck extracts the factual claims in a text or web page and checks
each one against evidence gathered by hosted verification agents.

Each checked claim gets a logic and tonality pass, a credibility rating for
the domains its evidence comes from, and a verdict with supporting and
refuting evidence.

Verdicts are produced by the agents; claimcheck relays and organises them.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("claimcheck %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claimcheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// envAliases binds keys to the variable names the hosted deployment uses
var envAliases = map[string][]string{
	"upstream.api_key":            {"CLAIMCHECK_UPSTREAM_API_KEY", "FLUO_API_KEY"},
	"upstream.project_id":         {"CLAIMCHECK_UPSTREAM_PROJECT_ID", "FLUO_PROJECT_ID"},
	"upstream.agents.extract":     {"CLAIMCHECK_UPSTREAM_AGENTS_EXTRACT", "FLUO_AGENT_ID_EXTRACT"},
	"upstream.agents.verify":      {"CLAIMCHECK_UPSTREAM_AGENTS_VERIFY", "FLUO_AGENT_ID_VERIFIER"},
	"upstream.agents.source_cred": {"CLAIMCHECK_UPSTREAM_AGENTS_SOURCE_CRED", "FLUO_AGENT_ID_SOURCE_CRED"},
	"upstream.agents.assess":      {"CLAIMCHECK_UPSTREAM_AGENTS_ASSESS", "FLUO_AGENT_ID_ASSESS"},
	"llm.api_key":                 {"CLAIMCHECK_LLM_API_KEY", "OPENAI_API_KEY"},
	"llm.base_url":                {"CLAIMCHECK_LLM_BASE_URL", "OPENAI_BASE_URL"},
	"session.redis_password":      {"CLAIMCHECK_SESSION_REDIS_PASSWORD"},
	"input.http_proxy":            {"CLAIMCHECK_INPUT_HTTP_PROXY"},
	"input.https_proxy":           {"CLAIMCHECK_INPUT_HTTPS_PROXY"},
	"input.no_proxy":              {"CLAIMCHECK_INPUT_NO_PROXY"},
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(home + "/.claimcheck")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := configureViper(viper.GetViper()); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// configureViper registers the defaults and environment bindings on v
func configureViper(v *viper.Viper) error {
	if err := registerDefaults(v, model.DefaultConfig()); err != nil {
		return err
	}

	// Read in environment variables that match CLAIMCHECK_* (dots become underscores)
	v.SetEnvPrefix("CLAIMCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// registerDefaults makes every key of cfg known to v so environment
// variables can override it
func registerDefaults(v *viper.Viper, cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig resolves the effective configuration
func loadConfig() (*model.Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the service logger from the log section
func newLogger(cfg model.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// bindFlags binds a command's flags (flag name to config key) at run time,
// since several commands share a config key
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind --%s: %w", flag, err)
		}
	}
	return nil
}
