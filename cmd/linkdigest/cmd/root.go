package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/linkdigest/linkdigest/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "linkdigest",
	Short: "linkdigest: URL content analysis",
	Long: `linkdigest fetches web pages, extracts their content, and produces
readable analysis summaries, with optional LLM summarization and a
TTL cache over results.

Commands:
  analyze  Analyze one or more URLs
  export   Export cached analysis results to a file
  cache    Inspect or clear the result cache
  run      Dispatch a chat-style command line
  serve    Start the MCP server exposing analysis tools`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/linkdigest")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// LINKDIGEST_LLM_API_KEY -> llm.api_key
	viper.SetEnvPrefix("LINKDIGEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	viper.BindEnv("network.timeout", "LINKDIGEST_NETWORK_TIMEOUT")
	viper.BindEnv("network.user_agent", "LINKDIGEST_NETWORK_USER_AGENT")
	viper.BindEnv("network.max_concurrency", "LINKDIGEST_NETWORK_MAX_CONCURRENCY")
	viper.BindEnv("cache.enabled", "LINKDIGEST_CACHE_ENABLED")
	viper.BindEnv("cache.ttl", "LINKDIGEST_CACHE_TTL")
	viper.BindEnv("cache.redis_addr", "LINKDIGEST_CACHE_REDIS_ADDR")
	viper.BindEnv("llm.enabled", "LINKDIGEST_LLM_ENABLED")
	viper.BindEnv("llm.base_url", "LINKDIGEST_LLM_BASE_URL")
	viper.BindEnv("llm.api_key", "LINKDIGEST_LLM_API_KEY")
	viper.BindEnv("llm.model", "LINKDIGEST_LLM_MODEL")
	viper.BindEnv("llm.enable_translation", "LINKDIGEST_LLM_ENABLE_TRANSLATION")
	viper.BindEnv("llm.target_language", "LINKDIGEST_LLM_TARGET_LANGUAGE")
	viper.BindEnv("analysis.mode", "LINKDIGEST_ANALYSIS_MODE")
	viper.BindEnv("storage.endpoint", "LINKDIGEST_STORAGE_ENDPOINT")
	viper.BindEnv("storage.bucket", "LINKDIGEST_STORAGE_BUCKET")
	viper.BindEnv("storage.access_key_id", "LINKDIGEST_STORAGE_ACCESS_KEY_ID")
	viper.BindEnv("storage.secret_access_key", "LINKDIGEST_STORAGE_SECRET_ACCESS_KEY")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// List-valued settings as comma-separated strings from env
	if groups := os.Getenv("LINKDIGEST_GROUPS_BLACKLIST"); groups != "" {
		cfg.Groups.Blacklist = strings.Split(groups, ",")
	}
	if domains := os.Getenv("LINKDIGEST_DOMAINS_ALLOWED"); domains != "" {
		cfg.Domains.Allowed = strings.Split(domains, ",")
	}
	if domains := os.Getenv("LINKDIGEST_DOMAINS_BLOCKED"); domains != "" {
		cfg.Domains.Blocked = strings.Split(domains, ",")
	}
}
