// Package auth finds a GitHub token for the API clients.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// TokenProvider obtains a GitHub authentication token from one source.
type TokenProvider interface {
	GetToken() (string, error)
}

// StaticProvider returns a token that was configured explicitly.
type StaticProvider struct {
	Token string
}

// GetToken returns the configured token or an error if it is empty.
func (s *StaticProvider) GetToken() (string, error) {
	if s.Token == "" {
		return "", errors.New("no token configured")
	}
	return s.Token, nil
}

// GhCliProvider obtains tokens by shelling out to `gh auth token`.
type GhCliProvider struct{}

// GetToken runs `gh auth token` and returns its trimmed output.
func (g *GhCliProvider) GetToken() (string, error) {
	cmd := exec.Command("gh", "auth", "token", "--hostname", "github.com")
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", errors.New("gh CLI not found in PATH")
		}
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", errors.New("gh auth token returned empty token")
	}
	return token, nil
}

// EnvProvider reads the GITHUB_TOKEN environment variable.
type EnvProvider struct{}

// GetToken returns GITHUB_TOKEN or an error if it is unset.
func (e *EnvProvider) GetToken() (string, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return "", errors.New("GITHUB_TOKEN environment variable not set or empty")
	}
	return token, nil
}

// Chain tries each provider in order and returns the first token found.
func Chain(providers ...TokenProvider) (string, error) {
	var errs []string
	for _, p := range providers {
		token, err := p.GetToken()
		if err == nil {
			return token, nil
		}
		errs = append(errs, err.Error())
	}
	return "", fmt.Errorf(
		"failed to obtain GitHub token (%s).\n"+
			"Please either:\n"+
			"  1. Set github_token in the config file or GHSYNC_GITHUB_TOKEN,\n"+
			"  2. Run 'gh auth login' to authenticate with GitHub CLI, or\n"+
			"  3. Set the GITHUB_TOKEN environment variable",
		strings.Join(errs, "; "),
	)
}

// GetToken returns configured if non-empty, else the gh CLI token, else
// GITHUB_TOKEN.
func GetToken(configured string) (string, error) {
	return Chain(&StaticProvider{Token: configured}, &GhCliProvider{}, &EnvProvider{})
}
