package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSourceURLs is the corpus the assistant is grounded in when the
// config file does not name its own list.
var DefaultSourceURLs = []string{
	"https://en.wikipedia.org/wiki/Formula_One",
	"https://www.formula1.com/en/latest/all",
	"https://www.formula1.com/en/racing/2023.html",
	"https://www.formula1.com/en/racing/2022.html",
	"https://www.formula1.com/en/racing/2021.html",
	"https://www.formula1.com/en/racing/2020.html",
	"https://www.formula1.com/en/racing/2019.html",
	"https://www.formula1.com/en/racing/2018.html",
	"https://www.formula1.com/en/racing/2017.html",
	"https://www.formula1.com/",
	"https://www.formula1.com/en/timing/f1-live",
	"https://pitwall.app/",
	"https://www.formula1.com/en/racing/2024.html",
	"https://www.formula1.com/en/racing/2025.html",
	"https://www.formula1.com/en/racing/2026.html",
	"https://en.wikipedia.org/wiki/Lewis_Hamilton",
	"https://en.wikipedia.org/wiki/Max_Verstappen",
	"https://en.wikipedia.org/wiki/Charles_Leclerc",
}

type Config struct {
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		EmbedModel  string  `yaml:"embed_model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Database struct {
		URL        string `yaml:"url"`
		Collection string `yaml:"collection"`
		VectorDim  int    `yaml:"vector_dim"`
		Metric     string `yaml:"metric"`
	} `yaml:"database"`

	Ingest struct {
		URLs         []string `yaml:"urls"`
		ChunkSize    int      `yaml:"chunk_size"`
		ChunkOverlap int      `yaml:"chunk_overlap"`
		RateLimit    float64  `yaml:"rate_limit"`
		TimeoutSecs  int      `yaml:"timeout_secs"`
		Concurrency  int      `yaml:"concurrency"`
	} `yaml:"ingest"`

	Retrieval struct {
		TopK            int `yaml:"top_k"`
		MaxContextChars int `yaml:"max_context_chars"`
	} `yaml:"retrieval"`

	Server struct {
		Addr       string `yaml:"addr"`
		AuthToken  string `yaml:"auth_token"`
		MaxPending int    `yaml:"max_pending"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/paddock/config.yaml"),
			"/etc/paddock/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.EmbedModel == "" {
		config.LLM.EmbedModel = "nomic-embed-text:latest"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Database.Collection == "" {
		config.Database.Collection = "f1_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.Metric == "" {
		config.Database.Metric = "dot_product"
	}

	if len(config.Ingest.URLs) == 0 {
		config.Ingest.URLs = DefaultSourceURLs
	}
	if config.Ingest.ChunkSize == 0 {
		config.Ingest.ChunkSize = 512
	}
	if config.Ingest.ChunkOverlap == 0 {
		config.Ingest.ChunkOverlap = 100
	}
	if config.Ingest.RateLimit == 0 {
		config.Ingest.RateLimit = 2.0
	}
	if config.Ingest.TimeoutSecs == 0 {
		config.Ingest.TimeoutSecs = 30
	}
	if config.Ingest.Concurrency == 0 {
		config.Ingest.Concurrency = 4
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 10
	}
	if config.Retrieval.MaxContextChars == 0 {
		config.Retrieval.MaxContextChars = 8000
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.MaxPending == 0 {
		config.Server.MaxPending = 64 * 1024
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if token := os.Getenv("CHATBOT_SECRET_KEY"); token != "" {
		config.Server.AuthToken = token
	}
}
