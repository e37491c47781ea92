// Package genai calls the hosted text and image generation models.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/pkg/circuitbreaker"
	"github.com/fjod/storefront/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	OfflineReply    = "AI is currently offline. Please try again."
	ProcessingReply = "Processing error."
)

type caller struct {
	http    *http.Client
	apiKey  string
	breaker *circuitbreaker.Breaker[[]byte]
}

func newCaller(name string, cfg config.GenAI, log *slog.Logger) caller {
	return caller{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		apiKey: cfg.APIKey,
		breaker: circuitbreaker.New[[]byte](circuitbreaker.Settings{
			Name:      name,
			TripAfter: cfg.TripAfter,
			Logger:    log,
		}),
	}
}

// post sends body as JSON and returns the response body of a 2xx reply.
func (c caller) post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}

		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		if c.apiKey != "" {
			q := u.Query()
			q.Set("key", c.apiKey)
			u.RawQuery = q.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return data, nil
	})
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction content   `json:"systemInstruction"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// TextClient answers assistant prompts. It never fails: errors come back as a
// placeholder reply.
type TextClient struct {
	caller
	endpoint string
	logger   *slog.Logger
}

func NewTextClient(cfg config.GenAI, log *slog.Logger) *TextClient {
	log = logger.OrDefault(log)
	return &TextClient{caller: newCaller("genai-text", cfg, log), endpoint: cfg.TextURL, logger: log}
}

func (c *TextClient) Generate(ctx context.Context, prompt, systemInstruction string) string {
	data, err := c.post(ctx, c.endpoint, generateRequest{
		Contents:          []content{{Parts: []part{{Text: prompt}}}},
		SystemInstruction: content{Parts: []part{{Text: systemInstruction}}},
	})
	if err != nil {
		c.logger.Warn("text generation failed", "err", err)
		return OfflineReply
	}

	var resp generateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("text generation returned malformed body", "err", err)
		return OfflineReply
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 || resp.Candidates[0].Content.Parts[0].Text == "" {
		return ProcessingReply
	}
	return resp.Candidates[0].Content.Parts[0].Text
}

type predictRequest struct {
	Instances  []map[string]string `json:"instances"`
	Parameters map[string]int      `json:"parameters"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
	} `json:"predictions"`
}

// ImageClient renders a prompt into a PNG data URI.
type ImageClient struct {
	caller
	endpoint string
}

func NewImageClient(cfg config.GenAI, log *slog.Logger) *ImageClient {
	return &ImageClient{caller: newCaller("genai-image", cfg, logger.OrDefault(log)), endpoint: cfg.ImageURL}
}

// Generate returns "" without error when the model produced no image.
func (c *ImageClient) Generate(ctx context.Context, prompt string) (string, error) {
	data, err := c.post(ctx, c.endpoint, predictRequest{
		Instances:  []map[string]string{{"prompt": prompt}},
		Parameters: map[string]int{"sampleCount": 1},
	})
	if err != nil {
		return "", fmt.Errorf("image generation: %w", err)
	}

	var resp predictResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode image response: %w", err)
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return "", nil
	}
	return "data:image/png;base64," + resp.Predictions[0].BytesBase64Encoded, nil
}
