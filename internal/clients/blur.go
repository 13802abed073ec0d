// Package clients holds the HTTP collaborators the pipeline calls out to:
// the privacy blurring service, the image/text embedding services, and the
// timelapse export service. All of them are opaque endpoints; this package
// only speaks their wire formats.
package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/your-org/limelapse/internal/observability"
)

// BlurClient asks the blurring service to read an image via a capability
// URL, scrub faces, and write the result to a second capability URL.
type BlurClient struct {
	url  string
	http *http.Client
}

func NewBlurClient(url string) *BlurClient {
	return &BlurClient{
		url:  url,
		http: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Blur requests a scrubbed rendition. The service responds when it has
// written the destination object; the response body is not consumed — the
// object write is what drives the pipeline forward.
func (c *BlurClient) Blur(ctx context.Context, readURL, writeURL string) error {
	start := time.Now()
	defer func() {
		observability.CollaboratorDuration.WithLabelValues("blur").Observe(time.Since(start).Seconds())
	}()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("url", readURL); err != nil {
		return fmt.Errorf("write blur form: %w", err)
	}
	if err := form.WriteField("upload_url", writeURL); err != nil {
		return fmt.Errorf("write blur form: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("close blur form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return fmt.Errorf("create blur request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call blur service: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("blur service returned %s", resp.Status)
	}
	return nil
}
