// Package search answers free-text similarity queries over a project's
// picture embeddings, and aggregates similarity over time for the heatmap.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/limelapse/internal/clients"
	"github.com/your-org/limelapse/internal/models"
	"github.com/your-org/limelapse/internal/storage"
)

// HeatmapBuckets is the fixed number of equal time slices the heatmap
// aggregates into.
const HeatmapBuckets = 100

type Store interface {
	ListEmbeddingIDs(ctx context.Context, ownerID, projectID uuid.UUID, win storage.TimeWindow, limit, offset int) ([]uuid.UUID, error)
	SearchEmbeddings(ctx context.Context, ownerID, projectID uuid.UUID, queryVec []float32, win storage.TimeWindow, limit, offset int) ([]models.SearchHit, error)
	CountEmbeddings(ctx context.Context, ownerID, projectID uuid.UUID, win storage.TimeWindow) (int64, error)
	EmbeddingDistances(ctx context.Context, ownerID, projectID uuid.UUID, queryVec []float32, win storage.TimeWindow) ([]models.EmbeddingDistance, error)
	EmbeddingTimeBounds(ctx context.Context, ownerID, projectID uuid.UUID) (earliest, latest *time.Time, err error)
}

// TextEmbedder maps a query string into the image embedding space.
type TextEmbedder interface {
	Embed(ctx context.Context, query string) (*clients.EmbeddingResponse, error)
}

type Service struct {
	store    Store
	embedder TextEmbedder
}

func NewService(store Store, embedder TextEmbedder) *Service {
	return &Service{store: store, embedder: embedder}
}

// Result is one page of search hits plus the total match count for the
// whole window.
type Result struct {
	TotalResults int64
	Hits         []models.SearchHit
}

// Search returns a page of a project's pictures. A blank query degrades
// to a plain listing in creation order with zero distances; otherwise
// hits come back ordered by cosine distance to the embedded query,
// nearest first. An empty page is a success, not an error.
func (s *Service) Search(ctx context.Context, ownerID, projectID uuid.UUID, query string, win storage.TimeWindow, limit, offset int) (*Result, error) {
	total, err := s.store.CountEmbeddings(ctx, ownerID, projectID, win)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(query) == "" {
		ids, err := s.store.ListEmbeddingIDs(ctx, ownerID, projectID, win, limit, offset)
		if err != nil {
			return nil, err
		}
		hits := make([]models.SearchHit, len(ids))
		for i, id := range ids {
			hits[i] = models.SearchHit{ImageID: id, Distance: 0}
		}
		return &Result{TotalResults: total, Hits: hits}, nil
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.SearchEmbeddings(ctx, ownerID, projectID, vec, win, limit, offset)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	return &Result{TotalResults: total, Hits: hits}, nil
}

// Bucket is one heatmap time slice. Similarity is nil when no embedding
// falls into the slice.
type Bucket struct {
	Start      time.Time
	End        time.Time
	Similarity *float64
}

// Heatmap is the similarity-over-time aggregate. The project's overall
// earliest and latest extraction times are always reported, independent
// of any requested window, so clients can render the full range.
type Heatmap struct {
	Buckets  []Bucket
	Earliest *time.Time
	Latest   *time.Time
}

// HeatmapFor aggregates similarity to the query into 100 equal buckets
// over the requested window, or over the actual data range when the
// window is open. A blank query yields only the time bounds.
func (s *Service) HeatmapFor(ctx context.Context, ownerID, projectID uuid.UUID, query string, win storage.TimeWindow) (*Heatmap, error) {
	earliest, latest, err := s.store.EmbeddingTimeBounds(ctx, ownerID, projectID)
	if err != nil {
		return nil, err
	}
	hm := &Heatmap{Earliest: earliest, Latest: latest}

	if strings.TrimSpace(query) == "" {
		return hm, nil
	}

	vec, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	dists, err := s.store.EmbeddingDistances(ctx, ownerID, projectID, vec, win)
	if err != nil {
		return nil, err
	}
	if len(dists) == 0 {
		return hm, nil
	}

	start, end := bucketRange(win, dists)
	hm.Buckets = bucketize(dists, start, end)
	return hm, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return resp.Embedding, nil
}

// bucketRange resolves the bucketing interval: explicit window bounds win,
// otherwise the actual extremes of the data. dists is ordered by time
// ascending.
func bucketRange(win storage.TimeWindow, dists []models.EmbeddingDistance) (time.Time, time.Time) {
	start := dists[0].ExtractedAt
	end := dists[len(dists)-1].ExtractedAt
	if win.Start != nil {
		start = *win.Start
	}
	if win.End != nil {
		end = *win.End
	}
	return start, end
}

// bucketize splits [start, end] into 100 equal slices and averages the
// similarity (1 - cosine distance) of the embeddings in each.
func bucketize(dists []models.EmbeddingDistance, start, end time.Time) []Bucket {
	span := end.Sub(start)
	width := span / HeatmapBuckets

	buckets := make([]Bucket, HeatmapBuckets)
	for i := range buckets {
		buckets[i].Start = start.Add(time.Duration(i) * width)
		buckets[i].End = buckets[i].Start.Add(width)
	}
	buckets[HeatmapBuckets-1].End = end

	sums := make([]float64, HeatmapBuckets)
	counts := make([]int, HeatmapBuckets)
	for _, d := range dists {
		idx := 0
		if span > 0 {
			idx = int(float64(d.ExtractedAt.Sub(start)) / float64(span) * HeatmapBuckets)
		}
		if idx < 0 || idx >= HeatmapBuckets {
			// The window can be narrower than the data; points outside
			// it are not drawn. The data maximum itself lands in the
			// last bucket.
			if d.ExtractedAt.Equal(end) {
				idx = HeatmapBuckets - 1
			} else {
				continue
			}
		}
		sums[idx] += d.Distance
		counts[idx]++
	}

	for i := range buckets {
		if counts[i] == 0 {
			continue
		}
		sim := 1 - sums[i]/float64(counts[i])
		buckets[i].Similarity = &sim
	}
	return buckets
}
