package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/limelapse/internal/observability"
)

// ExportClient drives the timelapse rendering service. The body of both
// endpoints is a newline-joined list of object keys in the input bucket,
// in frame order.
type ExportClient struct {
	url  string
	http *http.Client
}

func NewExportClient(exportURL string, previewTimeout time.Duration) *ExportClient {
	return &ExportClient{
		url:  exportURL,
		http: &http.Client{Timeout: previewTimeout},
	}
}

// ProcessAsync kicks off a full export. The service reads the keys from
// the input bucket, renders at the default framerate, and writes the
// result to outputName in the output bucket; completion surfaces as a
// bucket notification, not through this call.
func (c *ExportClient) ProcessAsync(ctx context.Context, inputBucket, outputBucket, outputName string, keys []string) error {
	start := time.Now()
	defer func() {
		observability.CollaboratorDuration.WithLabelValues("export_async").Observe(time.Since(start).Seconds())
	}()

	q := url.Values{}
	q.Set("input_bucket", inputBucket)
	q.Set("output_bucket", outputBucket)
	q.Set("timelapse_name", outputName)

	return c.post(ctx, "/process/async", q, keys, io.Discard)
}

// ProcessSync renders a short clip and returns the mp4 bytes directly.
// duration is the desired clip length.
func (c *ExportClient) ProcessSync(ctx context.Context, inputBucket string, duration time.Duration, keys []string) ([]byte, error) {
	start := time.Now()
	defer func() {
		observability.CollaboratorDuration.WithLabelValues("export_sync").Observe(time.Since(start).Seconds())
	}()

	q := url.Values{}
	q.Set("input_bucket", inputBucket)
	q.Set("duration", strconv.FormatInt(duration.Milliseconds(), 10))

	var out bytes.Buffer
	if err := c.post(ctx, "/process/sync", q, keys, &out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (c *ExportClient) post(ctx context.Context, path string, query url.Values, keys []string, sink io.Writer) error {
	body := strings.NewReader(strings.Join(keys, "\n"))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path+"?"+query.Encode(), body)
	if err != nil {
		return fmt.Errorf("create export request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call export service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("export service returned %s", resp.Status)
	}
	if _, err := io.Copy(sink, resp.Body); err != nil {
		return fmt.Errorf("read export response: %w", err)
	}
	return nil
}
