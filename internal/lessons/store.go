package lessons

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/docfoundry/docfoundry/pkg/config"
	"github.com/docfoundry/docfoundry/pkg/errors"
	"github.com/docfoundry/docfoundry/pkg/metrics"
)

// Lesson is one captured learning note tied to a source document
type Lesson struct {
	ID          string    `db:"id" json:"id"`
	Topic       string    `db:"topic" json:"topic"`
	Content     string    `db:"content" json:"content"`
	SourceDocID string    `db:"source_doc_id" json:"source_doc_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Validate checks the lesson's required fields
func (l *Lesson) Validate() error {
	if l.Topic == "" {
		return errors.NewValidationError("lesson topic is required")
	}
	if l.Content == "" {
		return errors.NewValidationError("lesson content is required")
	}
	return nil
}

// Store persists lessons in Postgres
type Store struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

// Connect opens the lesson store connection pool
func Connect(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL())
	if err != nil {
		return nil, errors.NewInternalError("failed to connect to database").WithCause(err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

// NewStore creates a lesson store
func NewStore(db *sqlx.DB, m *metrics.Metrics) *Store {
	return &Store{
		db:      db,
		metrics: m,
	}
}

// Save inserts a lesson, assigning an ID and timestamp
func (s *Store) Save(ctx context.Context, lesson *Lesson) error {
	if err := lesson.Validate(); err != nil {
		return err
	}

	if lesson.ID == "" {
		lesson.ID = uuid.New().String()
	}
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO lessons (id, topic, content, source_doc_id, created_at)
		VALUES (:id, :topic, :content, :source_doc_id, :created_at)`

	start := time.Now()
	_, err := s.db.NamedExecContext(ctx, query, lesson)
	s.recordQuery("insert", time.Since(start))

	if err != nil {
		return errors.NewTransientError("failed to save lesson").WithCause(err)
	}

	return nil
}

// Get returns one lesson by ID
func (s *Store) Get(ctx context.Context, id string) (*Lesson, error) {
	var lesson Lesson

	start := time.Now()
	err := s.db.GetContext(ctx, &lesson, `SELECT * FROM lessons WHERE id = $1`, id)
	s.recordQuery("select", time.Since(start))

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("lesson")
		}
		return nil, errors.NewTransientError("failed to get lesson").WithCause(err)
	}

	return &lesson, nil
}

// Recent returns the newest lessons, capped at limit
func (s *Store) Recent(ctx context.Context, limit int) ([]Lesson, error) {
	if limit <= 0 {
		limit = 50
	}

	var lessons []Lesson

	start := time.Now()
	err := s.db.SelectContext(ctx, &lessons,
		`SELECT * FROM lessons ORDER BY created_at DESC LIMIT $1`, limit)
	s.recordQuery("select", time.Since(start))

	if err != nil {
		return nil, errors.NewTransientError("failed to list lessons").WithCause(err)
	}

	return lessons, nil
}

// CountSince returns how many lessons were captured after the cutoff
func (s *Store) CountSince(ctx context.Context, cutoff time.Time) (int64, error) {
	var count int64

	start := time.Now()
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM lessons WHERE created_at >= $1`, cutoff)
	s.recordQuery("select", time.Since(start))

	if err != nil {
		return 0, errors.NewTransientError("failed to count lessons").WithCause(err)
	}

	return count, nil
}

// All streams every lesson ordered by creation time, for backup export
func (s *Store) All(ctx context.Context) ([]Lesson, error) {
	var lessons []Lesson

	start := time.Now()
	err := s.db.SelectContext(ctx, &lessons, `SELECT * FROM lessons ORDER BY created_at`)
	s.recordQuery("select", time.Since(start))

	if err != nil {
		return nil, errors.NewTransientError("failed to export lessons").WithCause(err)
	}

	return lessons, nil
}

func (s *Store) recordQuery(operation string, duration time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordDatabaseQuery(operation, "lessons", duration)
	}
}
