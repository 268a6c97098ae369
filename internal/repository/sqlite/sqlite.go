package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"fabricviz/internal/domain"
)

// Repository implements repository.SampleRepository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository. ":memory:" opens a private
// in-memory database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT,
		metrics JSON NOT NULL,
		received_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_samples_received ON samples(received_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// InsertSample stores s and sets its ID
func (r *Repository) InsertSample(ctx context.Context, s *domain.Sample) error {
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO samples (source, metrics, received_at)
		VALUES (?, ?, ?)
	`, nullableSource(s.Source), string(s.Metrics), s.ReceivedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read sample id: %w", err)
	}
	s.ID = id
	return nil
}

// RecentSamples returns up to limit samples, newest first
func (r *Repository) RecentSamples(ctx context.Context, limit int) ([]domain.Sample, error) {
	if limit <= 0 {
		return []domain.Sample{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, metrics, received_at
		FROM samples
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	samples := make([]domain.Sample, 0, limit)
	for rows.Next() {
		var (
			s        domain.Sample
			source   sql.NullString
			metrics  string
			received int64
		)
		if err := rows.Scan(&s.ID, &source, &metrics, &received); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		s.Source = source.String
		s.Metrics = []byte(metrics)
		s.ReceivedAt = time.Unix(0, received)
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// PruneSamples deletes all but the newest keep samples
func (r *Repository) PruneSamples(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	res, err := r.db.ExecContext(ctx, `
		DELETE FROM samples
		WHERE id NOT IN (SELECT id FROM samples ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune samples: %w", err)
	}
	return res.RowsAffected()
}

// CountSamples returns the number of stored samples
func (r *Repository) CountSamples(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// nullableSource stores an unnamed source as NULL
func nullableSource(source string) sql.NullString {
	return sql.NullString{String: source, Valid: source != ""}
}
