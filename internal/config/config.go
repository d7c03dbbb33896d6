package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Pipeline Pipeline `mapstructure:"pipeline"`
	Sources  Sources  `mapstructure:"sources"`
	Server   Server   `mapstructure:"server"`
	Chat     Chat     `mapstructure:"chat"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	MaxTokens      int32   `mapstructure:"max_tokens"`
	Temperature    float32 `mapstructure:"temperature"`
}

// Pipeline holds the clustering and ranking configuration. These are explicit
// knobs: every recognized option is enumerated here instead of living in a
// free-form dictionary.
type Pipeline struct {
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
	CategoryLimit       int      `mapstructure:"category_limit"`
	FrequencyWeight     float64  `mapstructure:"frequency_weight"`
	PriorityWeight      float64  `mapstructure:"priority_weight"`
	PriorityKeywords    []string `mapstructure:"priority_keywords"`
	EmbedConcurrency    int      `mapstructure:"embed_concurrency"`
	MaxArticlesPerPage  int      `mapstructure:"max_articles_per_page"`
}

// Sources maps categories to the outlet pages scraped for them.
type Sources struct {
	Categories map[string][]string `mapstructure:"categories"`
}

// CategoryNames returns the configured category names in sorted-stable order.
func (s Sources) CategoryNames() []string {
	names := make([]string, 0, len(s.Categories))
	for name := range s.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether the category is configured.
func (s Sources) Has(category string) bool {
	_, ok := s.Categories[category]
	return ok
}

// Server holds HTTP server configuration
type Server struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	CORSEnabled     bool     `mapstructure:"cors_enabled"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RefreshInterval string   `mapstructure:"refresh_interval"` // empty disables the scheduler
}

// Chat holds RAG chat configuration
type Chat struct {
	TopK int `mapstructure:"top_k"`
}

var globalConfig *Config

// Load loads the configuration from .env, config file, and environment.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsdesk")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.SetEnvPrefix("NEWSDESK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".newsdesk-data")

	viper.SetDefault("ai.gemini.model", "gemini-1.5-flash")
	viper.SetDefault("ai.gemini.embedding_model", "text-embedding-004")
	viper.SetDefault("ai.gemini.max_tokens", 1024)
	viper.SetDefault("ai.gemini.temperature", 0.3)

	viper.SetDefault("pipeline.similarity_threshold", 0.85)
	viper.SetDefault("pipeline.category_limit", 20)
	viper.SetDefault("pipeline.frequency_weight", 1.0)
	viper.SetDefault("pipeline.priority_weight", 10.0)
	viper.SetDefault("pipeline.priority_keywords", []string{
		"breaking news", "breaking", "urgent", "exclusive", "alert", "update", "developing",
	})
	viper.SetDefault("pipeline.embed_concurrency", 4)
	viper.SetDefault("pipeline.max_articles_per_page", 10)

	viper.SetDefault("sources.categories", map[string][]string{
		"sports": {
			"https://www.abc.net.au/news/sport/",
			"https://www.smh.com.au/sport",
			"https://www.theage.com.au/sport",
		},
		"lifestyle": {
			"https://www.abc.net.au/news/lifestyle/",
			"https://www.smh.com.au/lifestyle",
			"https://www.theage.com.au/lifestyle",
		},
		"music": {
			"https://www.abc.net.au/news/entertainment/arts/",
			"https://www.smh.com.au/entertainment/music",
		},
		"finance": {
			"https://www.abc.net.au/news/business/",
			"https://www.smh.com.au/business",
			"https://www.theage.com.au/business",
			"https://www.afr.com/",
		},
	})

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.cors_enabled", false)
	viper.SetDefault("server.refresh_interval", "")

	viper.SetDefault("chat.top_k", 3)
}

// bindEnvironmentVariables binds well-known environment variables to keys
func bindEnvironmentVariables() {
	_ = viper.BindEnv("ai.gemini.api_key", "GEMINI_API_KEY", "GOOGLE_AI_API_KEY")
	_ = viper.BindEnv("app.data_dir", "NEWSDESK_DATA_DIR")
	_ = viper.BindEnv("app.log_level", "NEWSDESK_LOG_LEVEL")
	_ = viper.BindEnv("server.port", "NEWSDESK_PORT")
}

// validateConfig checks configuration invariants early so bad values surface
// at startup, not mid-run.
func validateConfig(config *Config) error {
	p := config.Pipeline
	if p.SimilarityThreshold <= 0 || p.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be in (0,1], got %v", p.SimilarityThreshold)
	}
	if p.CategoryLimit < 0 {
		return fmt.Errorf("pipeline.category_limit must not be negative, got %d", p.CategoryLimit)
	}
	if p.FrequencyWeight < 0 || p.PriorityWeight < 0 {
		return fmt.Errorf("pipeline weights must not be negative")
	}
	if p.EmbedConcurrency <= 0 {
		return fmt.Errorf("pipeline.embed_concurrency must be positive, got %d", p.EmbedConcurrency)
	}
	if config.Chat.TopK <= 0 {
		return fmt.Errorf("chat.top_k must be positive, got %d", config.Chat.TopK)
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid port, got %d", config.Server.Port)
	}
	if len(config.Sources.Categories) == 0 {
		return fmt.Errorf("sources.categories must configure at least one category")
	}
	return nil
}
