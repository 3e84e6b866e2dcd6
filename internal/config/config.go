// Package config loads daemon configuration from the platform-native
// backend, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.northstar.app) and the
// OpenAI key falls back to macOS Keychain. On Linux the backend is a JSON
// file at $XDG_CONFIG_HOME/northstar/config.json and the key falls back to a
// secrets file under $XDG_DATA_HOME. Environment variables (NORTHSTAR_*)
// override backend values on all platforms.
package config

import "strings"

type Config struct {
	Server    ServerConfig
	OpenAI    OpenAIConfig
	Proxy     ProxyConfig
	Storage   StorageConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
	Log       LogConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port int
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type ProxyConfig struct {
	Endpoint  string
	AITier    string
	Verbosity string
	UserID    string
}

type StorageConfig struct {
	DataDir string
}

type RetrievalConfig struct {
	TopK int
}

type CacheConfig struct {
	Enabled   bool
	Threshold float64
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Threshold: 0.92,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration. A missing OpenAI API key is not an error
// here: the proxy transport works without one, and the direct transport
// reports the absence as a ConfigError at request time.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts the platform secret store for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.OpenAI.APIKey == "" {
		if key, err := kc.Get("northstar", "openai_api_key"); err == nil && key != "" {
			cfg.OpenAI.APIKey = key
		}
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
