package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/limelapse/internal/models"
)

type fakeNormalizer struct {
	notifs []models.BucketNotification
	err    error
}

func (f *fakeNormalizer) Normalize(_ context.Context, notif models.BucketNotification) error {
	if f.err != nil {
		return f.err
	}
	f.notifs = append(f.notifs, notif)
	return nil
}

func webhookRouter(n EventNormalizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/internal/minio/events", NewEventHandler(n).Notify)
	return r
}

func TestNotifyForwardsNotification(t *testing.T) {
	n := &fakeNormalizer{}
	r := webhookRouter(n)

	body := `{"Records":[{"s3":{"bucket":{"name":"images"},"object":{"key":"a%2Fb%2Fc"}}}]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/minio/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, n.notifs, 1)
	require.Len(t, n.notifs[0].Records, 1)
	assert.Equal(t, "images", n.notifs[0].Records[0].S3.Bucket.Name)
	assert.Equal(t, "a%2Fb%2Fc", n.notifs[0].Records[0].S3.Object.Key)
}

func TestNotifyRejectsMalformedBody(t *testing.T) {
	r := webhookRouter(&fakeNormalizer{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/minio/events", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotifyReportsPublishFailureForRetry(t *testing.T) {
	r := webhookRouter(&fakeNormalizer{err: fmt.Errorf("nats down")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/minio/events", strings.NewReader(`{"Records":[]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
