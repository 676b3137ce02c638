// Package auth resolves and validates the Gemini API key.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".virtual-tryon"
	credentialFile = "gemini-api-key"
)

// ErrNoKey is returned when no API key source is configured.
var ErrNoKey = errors.New("API key not found. Set GEMINI_API_KEY or write it to ~/.virtual-tryon/gemini-api-key")

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. Key file at ~/.virtual-tryon/gemini-api-key (must be mode 0600)
func GetAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := getFromFile()
	if err == nil && key != "" {
		log.Debug().Msg("Using API key from credentials file")
		return key, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("No API key in credentials file")
	}
	return "", ErrNoKey
}

// getFromFile reads the key from the owner-only credentials file.
func getFromFile() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	fi, err := os.Stat(credPath)
	if err != nil {
		return "", fmt.Errorf("credentials file not found at %s: %w", credPath, err)
	}
	if mode := fi.Mode().Perm(); mode&0077 != 0 {
		log.Warn().
			Str("file", credPath).
			Str("permissions", fmt.Sprintf("%04o", mode)).
			Msg("Credentials file has insecure permissions (should be 0600); skipping")
		return "", fmt.Errorf("insecure permissions %04o on %s", mode, credPath)
	}

	data, err := os.ReadFile(credPath)
	if err != nil {
		return "", fmt.Errorf("read credentials file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// getCredentialPath returns the full path to the credentials file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}
