// Package speech drives the asynchronous speech-to-text service: submit a
// long-running recognition, then poll the operation until it completes.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors for the recognition stage.
var (
	ErrSubmit      = errors.New("recognition submit failed")
	ErrRecognition = errors.New("recognition failed")
	ErrPollTimeout = errors.New("recognition polling deadline exceeded")
)

// DefaultPollInterval is how often the operation status is checked.
const DefaultPollInterval = 5 * time.Second

// Client talks to the recognition and operation endpoints.
type Client struct {
	recognizeURL  string
	operationBase string
	apiKey        string
	pollInterval  time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a recognition client. A non-positive pollInterval falls
// back to DefaultPollInterval.
func NewClient(recognizeURL, operationBase, apiKey string, pollInterval time.Duration, logger *slog.Logger) *Client {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Client{
		recognizeURL:  recognizeURL,
		operationBase: operationBase,
		apiKey:        apiKey,
		pollInterval:  pollInterval,
		httpClient:    http.DefaultClient,
		logger:        logger,
	}
}

// submitRequest is the longRunningRecognize payload. Language and result
// options are fixed: raw verbose results, profanity filter off.
type submitRequest struct {
	Config struct {
		Specification struct {
			LanguageCode    string `json:"languageCode"`
			Model           string `json:"model"`
			ProfanityFilter bool   `json:"profanityFilter"`
			LiteratureText  bool   `json:"literature_text"`
			AudioEncoding   string `json:"audioEncoding"`
			RawResults      bool   `json:"rawResults"`
		} `json:"specification"`
	} `json:"config"`
	Audio struct {
		URI string `json:"uri"`
	} `json:"audio"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type operationResponse struct {
	Done     bool `json:"done"`
	Response struct {
		Chunks []struct {
			Alternatives []struct {
				Text string `json:"text"`
			} `json:"alternatives"`
		} `json:"chunks"`
	} `json:"response"`
}

// Submit posts a recognition request for the audio at remoteURI and returns
// the operation handle. Fails with ErrSubmit on a non-2xx response.
func (c *Client) Submit(ctx context.Context, remoteURI string) (string, error) {
	var payload submitRequest
	payload.Config.Specification.LanguageCode = "ru-RU"
	payload.Config.Specification.Model = "general"
	payload.Config.Specification.ProfanityFilter = false
	payload.Config.Specification.LiteratureText = true
	payload.Config.Specification.AudioEncoding = "OGG_OPUS"
	payload.Config.Specification.RawResults = true
	payload.Audio.URI = remoteURI

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrSubmit, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.recognizeURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmit, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmit, resp.StatusCode, raw)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrSubmit, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%w: response carries no operation id", ErrSubmit)
	}

	c.logger.Info("recognition submitted", "operation_id", out.ID)
	return out.ID, nil
}

// Await polls the operation until it completes and assembles the transcript:
// the first alternative of each chunk, in returned order, joined with single
// spaces; chunks without alternatives are skipped. The wait is bounded only
// by ctx — give it a deadline to surface ErrPollTimeout instead of blocking
// on a stuck remote operation.
func (c *Client) Await(ctx context.Context, operationID string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		op, err := c.poll(ctx, operationID)
		if err != nil {
			return "", err
		}
		if op.Done {
			parts := make([]string, 0, len(op.Response.Chunks))
			for _, chunk := range op.Response.Chunks {
				if len(chunk.Alternatives) == 0 {
					continue
				}
				parts = append(parts, chunk.Alternatives[0].Text)
			}
			return strings.Join(parts, " "), nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: operation %s", ErrPollTimeout, operationID)
			}
			return "", ctx.Err()
		}
	}
}

func (c *Client) poll(ctx context.Context, operationID string) (*operationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.operationBase+"/"+operationID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecognition, err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: operation %s", ErrPollTimeout, operationID)
		}
		return nil, fmt.Errorf("%w: %v", ErrRecognition, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrRecognition, resp.StatusCode, raw)
	}

	var op operationResponse
	if err := json.NewDecoder(resp.Body).Decode(&op); err != nil {
		return nil, fmt.Errorf("%w: decode operation: %v", ErrRecognition, err)
	}
	return &op, nil
}
