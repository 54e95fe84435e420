package store

import (
	"context"
	"fmt"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type IngestionHistoryStore struct {
	db *sqlx.DB
}

// IngestionHistory records one collection or import run.
type IngestionHistory struct {
	ID             int64          `db:"id" json:"id"`
	RunID          uuid.UUID      `db:"run_id" json:"run_id"`
	ReferenceDate  time.Time      `db:"reference_date" json:"reference_date"`
	Source         string         `db:"source" json:"source"`
	TriggerType    string         `db:"trigger_type" json:"trigger_type"`
	Scope          string         `db:"scope" json:"scope"`
	Status         string         `db:"status" json:"status"`
	ProcessedCodes pq.StringArray `db:"processed_codes" json:"processed_codes"`
	ProcessedAt    time.Time      `db:"processed_at" json:"processed_at"`
}

var (
	SourcePNCP      = "pncp"
	SourceSanctions = "ceis_cnep"
)

var (
	ScopeMunicipality = "municipio"
	ScopeState        = "estado"
	ScopeNational     = "nacional"
)

var (
	TriggerTypeManual    = "manual"
	TriggerTypeScheduled = "scheduled"
)

var (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusPartial = "partial"
)

func (ih *IngestionHistoryStore) InsertIngestionHistory(ctx context.Context, history *IngestionHistory) error {
	if history.RunID == uuid.Nil {
		history.RunID = uuid.New()
	}
	if history.ProcessedCodes == nil {
		history.ProcessedCodes = pq.StringArray{}
	}
	query := `INSERT INTO ingestion_history (
		run_id,
		reference_date,
		source,
		trigger_type,
		scope,
		status,
		processed_codes
	) VALUES (
		:run_id,
		:reference_date,
		:source,
		:trigger_type,
		:scope,
		:status,
		:processed_codes
	) RETURNING id, processed_at`

	rows, err := sqlx.NamedQueryContext(ctx, ih.db, query, history)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion history: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&history.ID, &history.ProcessedAt); err != nil {
			return fmt.Errorf("failed to scan ingestion history id: %w", err)
		}
	}
	return rows.Err()
}

func (ih *IngestionHistoryStore) UpdateIngestionStatus(ctx context.Context, id int64, status string, processed []string) error {
	query := `
	UPDATE ingestion_history
	SET status = $2, processed_codes = $3, processed_at = NOW()
	WHERE id = $1`

	if processed == nil {
		processed = []string{}
	}
	res, err := ih.db.ExecContext(ctx, query, id, status, pq.Array(processed))
	if err != nil {
		return fmt.Errorf("failed to update ingestion history %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update ingestion history %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (ih *IngestionHistoryStore) GetLatest(ctx context.Context, limit int) ([]IngestionHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []IngestionHistory
	err := ih.db.SelectContext(ctx, &out, `SELECT * FROM ingestion_history ORDER BY processed_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion history: %w", err)
	}
	return out, nil
}
