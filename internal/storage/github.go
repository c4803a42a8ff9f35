package storage

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abduss/assetgate/internal/config"
	"github.com/google/go-github/v68/github"
)

const defaultGitHubTimeout = 20 * time.Second

// NewGitHubClient builds a contents API client. An empty token yields an unauthenticated
// client; callers are expected to refuse writes in that case.
func NewGitHubClient(cfg config.GitHubConfig) (*github.Client, error) {
	client := github.NewClient(&http.Client{Timeout: defaultGitHubTimeout})
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}

	if raw := strings.TrimSpace(cfg.APIURL); raw != "" {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		base, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse github api url: %w", err)
		}
		client.BaseURL = base
	}

	return client, nil
}
