// Package gpt produces the lecture summary through the text-generation
// completion endpoint.
package gpt

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
)

// Sentinel errors for the summarization stage. ErrBadPayload is distinct
// from ErrSummarization so the raw payload reaches the error message for
// diagnosis.
var (
	ErrSummarization = errors.New("summarization failed")
	ErrBadPayload    = errors.New("unexpected completion payload")
)

// promptTemplate is filled with the lecture title and transcript.
const promptTemplate = "Create a complete, structured and detailed summary of the lecture '%s' from this text:\n" +
	"%s\n" +
	"Include the key ideas, examples, explanations and conclusions.\n" +
	"Use plain text without Markdown: no *italics*, **bold**, or lists marked with asterisks or dashes."

// Fixed sampling parameters.
const (
	temperature = 0.5
	maxTokens   = 2000
)

// Client calls the completion endpoint with a fixed prompt template.
type Client struct {
	apiURL     string
	apiKey     string
	folderID   string
	modelURI   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a summarization client. modelURITemplate is expanded
// with the folder id (e.g. "gpt://%s/yandexgpt").
func NewClient(apiURL, apiKey, folderID, modelURITemplate string, logger *slog.Logger) *Client {
	return &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		folderID:   folderID,
		modelURI:   fmt.Sprintf(modelURITemplate, folderID),
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

type completionRequest struct {
	ModelURI          string `json:"modelUri"`
	CompletionOptions struct {
		Stream      bool    `json:"stream"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"maxTokens"`
	} `json:"completionOptions"`
	Messages []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// Summarize fills the prompt template with title and transcript and returns
// the first completion's text, trimmed. Non-streaming, fixed sampling.
func (c *Client) Summarize(ctx context.Context, transcript, title string) (string, error) {
	payload := completionRequest{ModelURI: c.modelURI}
	payload.CompletionOptions.Stream = false
	payload.CompletionOptions.Temperature = temperature
	payload.CompletionOptions.MaxTokens = maxTokens
	payload.Messages = []completionMessage{
		{Role: "user", Text: fmt.Sprintf(promptTemplate, title, transcript)},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrSummarization, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarization, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	req.Header.Set("x-folder-id", c.folderID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarization, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrSummarization, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrSummarization, resp.StatusCode, raw)
	}

	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %s", ErrBadPayload, raw)
	}
	if len(out.Result.Alternatives) == 0 {
		return "", fmt.Errorf("%w: %s", ErrBadPayload, raw)
	}

	summary := strings.TrimSpace(out.Result.Alternatives[0].Message.Text)
	c.logger.Debug("summary generated", "chars", len(summary))
	return summary, nil
}
