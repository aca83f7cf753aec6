package server

import "time"

// Config holds server configuration (spec §6 "Environment").
type Config struct {
	Port             string
	JWTSecret        string
	AllowedOrigins   []string      // ARAGORA_ALLOWED_ORIGINS
	WSMaxMessageSize int64         // ARAGORA_WS_MAX_SIZE
	CacheMaxEntries  int           // ARAGORA_CACHE_MAX_ENTRIES
	CacheEvictPct    float64       // cache eviction percent
	DBTimeout        time.Duration // DB_TIMEOUT_SECONDS
	DataDir          string        // persisted-state workdir root
}

// DefaultWSMaxMessageSize is spec §6's default ARAGORA_WS_MAX_SIZE.
const DefaultWSMaxMessageSize = 65536

// DefaultConfig returns a Config with spec §6's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:             "8080",
		WSMaxMessageSize: DefaultWSMaxMessageSize,
		CacheMaxEntries:  1000,
		CacheEvictPct:    0.1,
		DBTimeout:        30 * time.Second,
		DataDir:          "data",
	}
}

// AgentConfig describes one configured debate agent's identity and the
// backend it should be wired to.
type AgentConfig struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Model     string `json:"model"`
	AgentType string `json:"agent_type"` // "http-openai-shape", "http-anthropic-shape", "local-http", "cli"
	BaseURL   string `json:"base_url"`   // endpoint (local-http) or executable path (cli)
}
