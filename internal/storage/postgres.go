package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/limelapse/internal/config"
	"github.com/your-org/limelapse/internal/models"
)

var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	p.ExtID = uuid.New()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO project (ext_id, user_id, name, description, start_date, end_date, capture_start, capture_end)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		p.ExtID, p.OwnerID, p.Name, p.Description, p.StartDate, p.EndDate, p.CaptureStart, p.CaptureEnd,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ext_id, user_id, name, COALESCE(description, ''), start_date, end_date,
		        COALESCE(capture_start, ''), COALESCE(capture_end, ''), created_at
		 FROM project WHERE user_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.ExtID, &p.OwnerID, &p.Name, &p.Description,
			&p.StartDate, &p.EndDate, &p.CaptureStart, &p.CaptureEnd, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject loads a project by its external id, scoped to the owner.
func (s *PostgresStore) GetProject(ctx context.Context, ownerID, extID uuid.UUID) (*models.Project, error) {
	return s.getProject(ctx,
		`SELECT id, ext_id, user_id, name, COALESCE(description, ''), start_date, end_date,
		        COALESCE(capture_start, ''), COALESCE(capture_end, ''), created_at
		 FROM project WHERE user_id = $1 AND ext_id = $2`, ownerID, extID)
}

// GetProjectByExtID loads a project without an owner scope. Used by the
// embedding stage, which only has the object path to go on.
func (s *PostgresStore) GetProjectByExtID(ctx context.Context, extID uuid.UUID) (*models.Project, error) {
	return s.getProject(ctx,
		`SELECT id, ext_id, user_id, name, COALESCE(description, ''), start_date, end_date,
		        COALESCE(capture_start, ''), COALESCE(capture_end, ''), created_at
		 FROM project WHERE ext_id = $1`, extID)
}

func (s *PostgresStore) getProject(ctx context.Context, query string, args ...any) (*models.Project, error) {
	p := &models.Project{}
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.ExtID, &p.OwnerID, &p.Name, &p.Description,
		&p.StartDate, &p.EndDate, &p.CaptureStart, &p.CaptureEnd, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, ownerID, extID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM project WHERE user_id = $1 AND ext_id = $2`, ownerID, extID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Videos ---

func (s *PostgresStore) CreateVideo(ctx context.Context, v *models.Video) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO video (ext_id, user_id, project_id, status) VALUES ($1, $2, $3, $4) RETURNING id`,
		v.ExtID, v.OwnerID, v.ProjectID, v.Status,
	).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("create video: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetVideo(ctx context.Context, ownerID, extID uuid.UUID) (*models.Video, error) {
	v := &models.Video{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, ext_id, user_id, project_id, status, created_at FROM video WHERE user_id = $1 AND ext_id = $2`,
		ownerID, extID,
	).Scan(&v.ID, &v.ExtID, &v.OwnerID, &v.ProjectID, &v.Status, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get video: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListVideos(ctx context.Context, ownerID, projectID uuid.UUID) ([]models.Video, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ext_id, user_id, project_id, status, created_at
		 FROM video WHERE user_id = $1 AND project_id = $2 ORDER BY ext_id DESC`,
		ownerID, projectID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.ExtID, &v.OwnerID, &v.ProjectID, &v.Status, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// MarkVideoProcessing flips a QUEUED video to PROCESSING. Returns false if
// the video was not in QUEUED, which makes duplicate deliveries a no-op.
func (s *PostgresStore) MarkVideoProcessing(ctx context.Context, ownerID, extID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE video SET status = $1 WHERE user_id = $2 AND ext_id = $3 AND status = $4`,
		models.VideoStatusProcessing, ownerID, extID, models.VideoStatusQueued)
	if err != nil {
		return false, fmt.Errorf("mark video processing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkVideoFinished sets the terminal state. Repeating it only refreshes
// created_at, so racing finish deliveries are harmless.
func (s *PostgresStore) MarkVideoFinished(ctx context.Context, ownerID, extID uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE video SET status = $1, created_at = $2 WHERE user_id = $3 AND ext_id = $4`,
		models.VideoStatusFinished, at, ownerID, extID)
	if err != nil {
		return fmt.Errorf("mark video finished: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteVideo(ctx context.Context, ownerID, extID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM video WHERE user_id = $1 AND ext_id = $2`, ownerID, extID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Picture embeddings ---

// UpsertEmbedding stores a picture's vector. The picture UUID is the
// primary key, so redelivered events overwrite the same row.
func (s *PostgresStore) UpsertEmbedding(ctx context.Context, e *models.PictureEmbedding) error {
	vec := pgvector.NewVector(e.Embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO picture_embedding (picture_uuid, project_id, embedding, extracted_timestamp)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (picture_uuid) DO UPDATE
		 SET project_id = EXCLUDED.project_id,
		     embedding = EXCLUDED.embedding,
		     extracted_timestamp = EXCLUDED.extracted_timestamp`,
		e.PictureID, e.ProjectID, vec, e.ExtractedAt)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// TimeWindow bounds a query to [Start, End]; nil means unbounded.
type TimeWindow struct {
	Start *time.Time
	End   *time.Time
}

func (w TimeWindow) clauses(base string, args []any) (string, []any) {
	if w.Start != nil {
		args = append(args, *w.Start)
		base += fmt.Sprintf(" AND pe.extracted_timestamp >= $%d", len(args))
	}
	if w.End != nil {
		args = append(args, *w.End)
		base += fmt.Sprintf(" AND pe.extracted_timestamp <= $%d", len(args))
	}
	return base, args
}

const embeddingScope = `FROM picture_embedding pe
		 JOIN project p ON p.id = pe.project_id
		 WHERE p.ext_id = $1 AND p.user_id = $2`

// ListEmbeddingIDs returns one page of a project's picture ids in
// creation order (ascending picture UUID).
func (s *PostgresStore) ListEmbeddingIDs(ctx context.Context, ownerID, projectID uuid.UUID, win TimeWindow, limit, offset int) ([]uuid.UUID, error) {
	where, args := win.clauses(embeddingScope, []any{projectID, ownerID})
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT pe.picture_uuid %s ORDER BY pe.picture_uuid ASC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan embedding id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SearchEmbeddings returns one page of a project's pictures ordered by
// cosine distance to the query vector, nearest first. The vector is bound
// as a parameter, never interpolated into the statement.
func (s *PostgresStore) SearchEmbeddings(ctx context.Context, ownerID, projectID uuid.UUID, queryVec []float32, win TimeWindow, limit, offset int) ([]models.SearchHit, error) {
	where, args := win.clauses(embeddingScope, []any{projectID, ownerID})
	args = append(args, pgvector.NewVector(queryVec))
	vecIdx := len(args)
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT pe.picture_uuid, pe.embedding <=> $%d AS distance %s ORDER BY distance ASC LIMIT $%d OFFSET $%d`,
		vecIdx, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var h models.SearchHit
		if err := rows.Scan(&h.ImageID, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PostgresStore) CountEmbeddings(ctx context.Context, ownerID, projectID uuid.UUID, win TimeWindow) (int64, error) {
	where, args := win.clauses(embeddingScope, []any{projectID, ownerID})
	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) "+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return total, nil
}

// EmbeddingDistances returns the (extracted_timestamp, distance) pairs the
// heatmap buckets over, for every embedding in the window.
func (s *PostgresStore) EmbeddingDistances(ctx context.Context, ownerID, projectID uuid.UUID, queryVec []float32, win TimeWindow) ([]models.EmbeddingDistance, error) {
	where, args := win.clauses(embeddingScope, []any{projectID, ownerID})
	args = append(args, pgvector.NewVector(queryVec))
	query := fmt.Sprintf(
		`SELECT pe.extracted_timestamp, pe.embedding <=> $%d %s ORDER BY pe.extracted_timestamp ASC`,
		len(args), where)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("embedding distances: %w", err)
	}
	defer rows.Close()

	var out []models.EmbeddingDistance
	for rows.Next() {
		var d models.EmbeddingDistance
		if err := rows.Scan(&d.ExtractedAt, &d.Distance); err != nil {
			return nil, fmt.Errorf("scan embedding distance: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// EmbeddingTimeBounds returns the earliest and latest extraction times
// across the whole project, or (nil, nil) when the project has no
// embeddings at all.
func (s *PostgresStore) EmbeddingTimeBounds(ctx context.Context, ownerID, projectID uuid.UUID) (earliest, latest *time.Time, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT MIN(pe.extracted_timestamp), MAX(pe.extracted_timestamp) `+embeddingScope,
		projectID, ownerID,
	).Scan(&earliest, &latest)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding time bounds: %w", err)
	}
	return earliest, latest, nil
}
