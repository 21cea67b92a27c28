// Package disk resolves public share links through the disk metadata API.
package disk

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/raphaelgruber/notegen/internal/models"
)

// validateTimeout bounds the metadata request.
const validateTimeout = 10 * time.Second

// Validator checks public share links against the metadata API.
type Validator struct {
	apiURL string
	client *http.Client
	logger *slog.Logger
}

// NewValidator creates a validator for the given metadata endpoint.
func NewValidator(apiURL string, logger *slog.Logger) *Validator {
	return &Validator{
		apiURL: apiURL,
		client: &http.Client{Timeout: validateTimeout},
		logger: logger,
	}
}

// Resolve returns the link metadata for a public share URL, or nil if the
// link is unusable. Transport and timeout errors are logged, not raised:
// an unreachable metadata API makes the link invalid, not the task retryable.
func (v *Validator) Resolve(ctx context.Context, publicURL string) *models.LinkMetadata {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiURL, nil)
	if err != nil {
		v.logger.Error("building link validation request failed", "error", err)
		return nil
	}

	q := url.Values{}
	q.Set("public_key", publicURL)
	req.URL.RawQuery = q.Encode()

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error("link validation request failed", "url", publicURL, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.logger.Info("link rejected by metadata API", "url", publicURL, "status", resp.StatusCode)
		return nil
	}

	var meta models.LinkMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		v.logger.Error("malformed metadata payload", "url", publicURL, "error", err)
		return nil
	}
	return &meta
}
