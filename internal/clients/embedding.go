package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/your-org/limelapse/internal/observability"
)

// EmbeddingResponse is the common shape both embedding endpoints return.
type EmbeddingResponse struct {
	Dimension int       `json:"dimension"`
	Embedding []float32 `json:"embedding"`
}

// ImageEmbeddingClient extracts a vector from an image reachable through a
// capability URL.
type ImageEmbeddingClient struct {
	url  string
	http *http.Client
}

func NewImageEmbeddingClient(url string) *ImageEmbeddingClient {
	return &ImageEmbeddingClient{
		url:  url,
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *ImageEmbeddingClient) Embed(ctx context.Context, readURL string) (*EmbeddingResponse, error) {
	start := time.Now()
	defer func() {
		observability.CollaboratorDuration.WithLabelValues("image_embedding").Observe(time.Since(start).Seconds())
	}()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("url", readURL); err != nil {
		return nil, fmt.Errorf("write embedding form: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close embedding form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	return doEmbedding(c.http, req)
}

// TextEmbeddingClient maps a free-text search query into the same vector
// space the image embeddings live in.
type TextEmbeddingClient struct {
	url  string
	http *http.Client
}

func NewTextEmbeddingClient(url string) *TextEmbeddingClient {
	return &TextEmbeddingClient{
		url:  url,
		http: &http.Client{Timeout: time.Minute},
	}
}

// Embed wraps the query in a construction-site prompt before embedding;
// the plain query alone lands too far from the image embeddings.
func (c *TextEmbeddingClient) Embed(ctx context.Context, query string) (*EmbeddingResponse, error) {
	start := time.Now()
	defer func() {
		observability.CollaboratorDuration.WithLabelValues("text_embedding").Observe(time.Since(start).Seconds())
	}()

	prompt := "Describe a photo taken at a construction site that clearly shows: " + query +
		"Include details about materials, machinery, structures, colors, and environment typical of building sites."

	payload, err := json.Marshal(map[string]string{"text": prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doEmbedding(c.http, req)
}

func doEmbedding(client *http.Client, req *http.Request) (*EmbeddingResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service returned %s", resp.Status)
	}

	var out EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embedding service returned empty vector")
	}
	return &out, nil
}
