package store

import (
	"context"
	"fmt"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type AnomalyStore struct {
	db *sqlx.DB
}

// AnomalyFilter narrows ListAnomalies. Zero values match everything.
type AnomalyFilter struct {
	BiddingID *int64
	Type      domain.AnomalyType
	Status    string
	Limit     int
}

const defaultAnomalyLimit = 100

// InsertAnomaly stores a new anomaly and reports whether a row was written.
// A record that collides with the natural key index is ignored and leaves
// a.ID at zero.
func (as *AnomalyStore) InsertAnomaly(ctx context.Context, a *domain.Anomaly) (bool, error) {
	query := `INSERT INTO anomalias (
		tipo,
		licitacao_id,
		item_id,
		fornecedor_id,
		descricao,
		valor_detectado,
		valor_referencia,
		percentual_desvio,
		score_risco,
		status,
		detectado_em
	) VALUES (
		:tipo,
		:licitacao_id,
		:item_id,
		:fornecedor_id,
		:descricao,
		:valor_detectado,
		:valor_referencia,
		:percentual_desvio,
		:score_risco,
		:status,
		:detectado_em
	)
	ON CONFLICT DO NOTHING
	RETURNING id`

	rows, err := sqlx.NamedQueryContext(ctx, as.db, query, a)
	if err != nil {
		return false, fmt.Errorf("failed to insert anomaly %s: %w", a.Type, err)
	}
	defer rows.Close()

	inserted := false
	if rows.Next() {
		if err := rows.Scan(&a.ID); err != nil {
			return false, fmt.Errorf("failed to scan anomaly id: %w", err)
		}
		inserted = true
	}
	return inserted, rows.Err()
}

func (as *AnomalyStore) AnomalyExists(ctx context.Context, key domain.AnomalyKey) (bool, error) {
	query := `
	SELECT EXISTS (
		SELECT 1
		FROM anomalias
		WHERE COALESCE(licitacao_id, 0) = $1
			AND COALESCE(item_id, 0) = $2
			AND COALESCE(fornecedor_id, 0) = $3
			AND tipo = $4
	)`

	var exists bool
	err := as.db.GetContext(ctx, &exists, query, key.BiddingID, key.ItemID, key.SupplierID, string(key.Type))
	if err != nil {
		return false, fmt.Errorf("failed to check anomaly existence: %w", err)
	}
	return exists, nil
}

func (as *AnomalyStore) ListAnomalyScores(ctx context.Context, biddingID int64) ([]*float64, error) {
	var out []*float64
	err := as.db.SelectContext(ctx, &out, `SELECT score_risco FROM anomalias WHERE licitacao_id = $1 ORDER BY id`, biddingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomaly scores of bidding %d: %w", biddingID, err)
	}
	return out, nil
}

func (as *AnomalyStore) ListAnomalies(ctx context.Context, filter AnomalyFilter) ([]domain.Anomaly, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultAnomalyLimit
	}
	query := `
	SELECT *
	FROM anomalias
	WHERE ($1::BIGINT IS NULL OR licitacao_id = $1)
		AND ($2 = '' OR tipo = $2)
		AND ($3 = '' OR status = $3)
	ORDER BY detectado_em DESC, id DESC
	LIMIT $4`

	var out []domain.Anomaly
	err := as.db.SelectContext(ctx, &out, query, filter.BiddingID, string(filter.Type), filter.Status, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}
	return out, nil
}
