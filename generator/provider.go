package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"novel2video/models"
)

// Provider is the boundary to the remote media generation services. The
// pipeline treats it as opaque: bytes in, bytes out, errors classified by
// Classify.
type Provider interface {
	GenerateImage(ctx context.Context, description string, width, height int) ([]byte, error)
	GenerateClip(ctx context.Context, imagePath, description string, seconds float64) ([]byte, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// HTTPProvider calls JSON-over-HTTP generation endpoints.
type HTTPProvider struct {
	cfg    models.ProviderConfig
	client *http.Client
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider builds a provider from endpoint config. The per-request
// timeout comes from the passed context; the client itself has none so the
// retrier stays in charge of deadlines.
func NewHTTPProvider(cfg models.ProviderConfig) *HTTPProvider {
	return &HTTPProvider{cfg: cfg, client: &http.Client{}}
}

func (p *HTTPProvider) GenerateImage(ctx context.Context, description string, width, height int) ([]byte, error) {
	return p.post(ctx, "image", p.cfg.ImageURL, map[string]interface{}{
		"prompt": description,
		"width":  width,
		"height": height,
	})
}

func (p *HTTPProvider) GenerateClip(ctx context.Context, imagePath, description string, seconds float64) ([]byte, error) {
	frame, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read source frame: %w", err)
	}
	return p.post(ctx, "video", p.cfg.VideoURL, map[string]interface{}{
		"prompt":   description,
		"image":    base64.StdEncoding.EncodeToString(frame),
		"duration": seconds,
	})
}

func (p *HTTPProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return p.post(ctx, "speech", p.cfg.SpeechURL, map[string]interface{}{
		"text": text,
	})
}

func (p *HTTPProvider) post(ctx context.Context, service, url string, payload interface{}) ([]byte, error) {
	if url == "" {
		return nil, &ProviderError{Service: service, StatusCode: 0, Message: "no endpoint configured"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &ProviderError{Service: service, StatusCode: resp.StatusCode, Message: msg}
	}

	return data, nil
}
