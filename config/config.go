package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port    string `mapstructure:"port"`
			Enabled bool   `mapstructure:"enabled"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort       string        `mapstructure:"HTTPPort"`
		Timeout        time.Duration `mapstructure:"HTTPTimeout"`
		AllowedOrigins []string      `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	Dataset struct {
		Path     string        `mapstructure:"path"`
		CacheTTL time.Duration `mapstructure:"cacheTTL"`
	} `mapstructure:"dataset"`
	VectorStore struct {
		Table           string `mapstructure:"table"`
		Dimension       int    `mapstructure:"dimension"`
		IngestBatchSize int    `mapstructure:"ingestBatchSize"`
		EmbedBatchSize  int    `mapstructure:"embedBatchSize"`
		EmbedWorkers    int    `mapstructure:"embedWorkers"`
	} `mapstructure:"vectorStore"`
	Retrieval struct {
		TopK    int           `mapstructure:"topK"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"retrieval"`
	LLM struct {
		APIKey         string        `mapstructure:"apiKey"`
		Model          string        `mapstructure:"model"`
		EmbeddingModel string        `mapstructure:"embeddingModel"`
		Temperature    float32       `mapstructure:"temperature"`
		MaxTokens      int32         `mapstructure:"maxTokens"`
		Timeout        time.Duration `mapstructure:"timeout"`
	} `mapstructure:"llm"`
	Weather struct {
		Enabled  bool          `mapstructure:"enabled"`
		BaseURL  string        `mapstructure:"baseURL"`
		APIKey   string        `mapstructure:"apiKey"`
		Timeout  time.Duration `mapstructure:"timeout"`
		CacheTTL time.Duration `mapstructure:"cacheTTL"`
	} `mapstructure:"weather"`
	Retry struct {
		MaxAttempts     uint          `mapstructure:"maxAttempts"`
		InitialInterval time.Duration `mapstructure:"initialInterval"`
		MaxInterval     time.Duration `mapstructure:"maxInterval"`
		Jitter          float64       `mapstructure:"jitter"`
	} `mapstructure:"retry"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// Secrets come from the environment, e.g. LLM_APIKEY or the aliases below.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v)

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&config)
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

// bindEnvAliases maps the conventional variable names onto config keys.
func bindEnvAliases(v *viper.Viper) {
	aliases := map[string][]string{
		"llm.apiKey":                     {"GOOGLE_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"weather.apiKey":                 {"VISUAL_CROSSING_API_KEY"},
		"repositories.postgres.host":     {"POSTGRES_HOST"},
		"repositories.postgres.port":     {"POSTGRES_PORT"},
		"repositories.postgres.username": {"POSTGRES_USER"},
		"repositories.postgres.password": {"POSTGRES_PASSWORD"},
		"repositories.postgres.db":       {"POSTGRES_DB"},
		"vectorStore.table":              {"VECTOR_TABLE_NAME"},
		"dataset.path":                   {"DATASET_PATH"},
	}
	for key, envs := range aliases {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

// applyDefaults fills zero values so a partial config file still runs.
func applyDefaults(c *Config) {
	if c.Server.HTTPPort == "" {
		c.Server.HTTPPort = "8000"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 60 * time.Second
	}
	if c.Dataset.Path == "" {
		c.Dataset.Path = "./data/destinations.json"
	}
	if c.VectorStore.Table == "" {
		c.VectorStore.Table = "destination_embeddings"
	}
	if c.VectorStore.Dimension == 0 {
		c.VectorStore.Dimension = 768
	}
	if c.VectorStore.IngestBatchSize <= 0 {
		c.VectorStore.IngestBatchSize = 1000
	}
	if c.VectorStore.EmbedBatchSize <= 0 {
		c.VectorStore.EmbedBatchSize = 100
	}
	if c.VectorStore.EmbedWorkers <= 0 {
		c.VectorStore.EmbedWorkers = 4
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 2
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.0-flash"
	}
	if c.LLM.EmbeddingModel == "" {
		c.LLM.EmbeddingModel = "text-embedding-004"
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = 5 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 4
	}
}
