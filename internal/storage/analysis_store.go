package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paperlens/internal/models"
)

// ErrNotFound is returned when no analysis is stored for a hash.
var ErrNotFound = errors.New("analysis not found")

// StoredAnalysis is one persisted row.
type StoredAnalysis struct {
	ContentHash string
	FileName    string
	PageCount   int
	Analysis    *models.PaperAnalysis
	CreatedAt   time.Time
}

// AnalysisStore persists finished analyses keyed by the PDF content hash.
type AnalysisStore struct {
	db *sql.DB
}

func NewAnalysisStore(db *sql.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

// Get loads the analysis for hash.
func (s *AnalysisStore) Get(ctx context.Context, hash string) (*StoredAnalysis, error) {
	var (
		row     StoredAnalysis
		payload string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash, file_name, page_count, payload, created_at FROM analyses WHERE content_hash = ?`,
		hash,
	).Scan(&row.ContentHash, &row.FileName, &row.PageCount, &payload, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	row.Analysis = new(models.PaperAnalysis)
	if err := json.Unmarshal([]byte(payload), row.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", hash, err)
	}
	return &row, nil
}

// Put stores or replaces the analysis for file.
func (s *AnalysisStore) Put(ctx context.Context, file *models.PaperFile, analysis *models.PaperAnalysis) error {
	if file == nil || file.Hash == "" || analysis == nil {
		return errors.New("file hash and analysis are required")
	}
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`REPLACE INTO analyses (content_hash, file_name, title, page_count, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		file.Hash, file.Name, analysis.Title, file.PageCount, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("store analysis: %w", err)
	}
	return nil
}

// Delete removes the analysis for hash.
func (s *AnalysisStore) Delete(ctx context.Context, hash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE content_hash = ?`, hash); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return nil
}

// PurgeBefore deletes analyses older than cutoff and returns how many went.
func (s *AnalysisStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge analyses: %w", err)
	}
	return res.RowsAffected()
}
