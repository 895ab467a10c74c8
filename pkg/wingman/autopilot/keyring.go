// Package autopilot – keyring.go provides secure credential storage
// using the operating system's native keyring (Linux: Secret Service,
// macOS: Keychain, Windows: Credential Manager).
//
// Priority for resolving the provider API key:
//  1. OS keyring (encrypted by the OS, requires user session)
//  2. Environment variable (WINGMAN_API_KEY, provider-specific vars)
//  3. .env file (loaded by godotenv)
//  4. config.yaml value (least secure — plaintext on disk)
package autopilot

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "wingman"

	// keyringAPIKey is the key name for the provider API key.
	keyringAPIKey = "api_key"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	// Try a write+delete cycle with a test key.
	testKey := "__wingman_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveAPIKey resolves the provider API key using the priority chain:
// keyring → env var → config value. The resolved key is written back
// into cfg.Provider.APIKey.
func ResolveAPIKey(cfg *Config, logger *slog.Logger) {
	if key := GetKeyring(keyringAPIKey); key != "" {
		cfg.Provider.APIKey = key
		logger.Debug("api key resolved from OS keyring")
		return
	}

	if cfg.Provider.APIKey != "" && !IsEnvReference(cfg.Provider.APIKey) {
		logger.Debug("api key resolved from config")
		return
	}

	// resolveSecrets already consulted the environment during load;
	// nothing left to try.
	if cfg.Provider.APIKey == "" {
		logger.Warn("no provider api key configured",
			"hint", "run 'wingman config set-key' or set WINGMAN_API_KEY")
	}
}

// PromptAPIKey reads an API key from the terminal without echo.
// Falls back to an error when stdin is not a terminal.
func PromptAPIKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; set WINGMAN_API_KEY instead")
	}

	fmt.Print("API key: ")
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}

	key := strings.TrimSpace(string(raw))
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	return key, nil
}
