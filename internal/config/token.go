package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	tokenService = "northstar"
	tokenAccount = "api_token"
)

// EnsureAPIToken returns the bearer token protecting the management API,
// generating and persisting a random one on first run. An explicit
// NORTHSTAR_AUTH_TOKEN (or auth.token backend value) always wins.
func EnsureAPIToken(cfg Config) (string, error) {
	if cfg.Auth.Token != "" {
		return cfg.Auth.Token, nil
	}

	if out, err := keychainExec(tokenService, tokenAccount); err == nil {
		if token := strings.TrimSpace(string(out)); token != "" {
			return token, nil
		}
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := keychainStore(tokenService, tokenAccount, token); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return token, nil
}

// APIToken returns the stored bearer token without generating one.
func APIToken(cfg Config) (string, error) {
	if cfg.Auth.Token != "" {
		return cfg.Auth.Token, nil
	}
	out, err := keychainExec(tokenService, tokenAccount)
	if err != nil {
		return "", fmt.Errorf("reading API token: %w", err)
	}
	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", fmt.Errorf("API token not set")
	}
	return token, nil
}
