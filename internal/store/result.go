package store

import (
	"context"
	"fmt"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type ResultStore struct {
	db *sqlx.DB
}

func (rs *ResultStore) UpsertResult(ctx context.Context, r *domain.Result) error {
	query := `INSERT INTO resultados (
		item_id,
		fornecedor_id,
		data_resultado,
		sequencial_resultado,
		percentual_desconto,
		quantidade_homologada,
		valor_unitario_homologado,
		valor_total_homologado
	) VALUES (
		:item_id,
		:fornecedor_id,
		:data_resultado,
		:sequencial_resultado,
		:percentual_desconto,
		:quantidade_homologada,
		:valor_unitario_homologado,
		:valor_total_homologado
	)
	ON CONFLICT (item_id, fornecedor_id) DO UPDATE SET
		data_resultado = EXCLUDED.data_resultado,
		sequencial_resultado = EXCLUDED.sequencial_resultado,
		percentual_desconto = EXCLUDED.percentual_desconto,
		quantidade_homologada = EXCLUDED.quantidade_homologada,
		valor_unitario_homologado = EXCLUDED.valor_unitario_homologado,
		valor_total_homologado = EXCLUDED.valor_total_homologado,
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, rs.db, query, r)
	if err != nil {
		return fmt.Errorf("failed to upsert result of item %d: %w", r.ItemID, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan result id: %w", err)
		}
	}
	return rows.Err()
}

func (rs *ResultStore) CountDistinctWinners(ctx context.Context, biddingID int64) (int, error) {
	query := `
	SELECT COUNT(DISTINCT r.fornecedor_id)
	FROM resultados r
	JOIN itens i ON i.id = r.item_id
	WHERE i.licitacao_id = $1`

	var n int
	if err := rs.db.GetContext(ctx, &n, query, biddingID); err != nil {
		return 0, fmt.Errorf("failed to count winners of bidding %d: %w", biddingID, err)
	}
	return n, nil
}

// ListSupplierWins counts the results won by each supplier in the
// organization's biddings published since the given date, keeping suppliers
// with more than minWins.
func (rs *ResultStore) ListSupplierWins(ctx context.Context, organizationID int64, since time.Time, minWins int) ([]anomaly.SupplierWins, error) {
	query := `
	SELECT
		f.id AS fornecedor_id,
		f.razao_social,
		COUNT(r.id) AS total_vitorias
	FROM
		fornecedores f
	JOIN
		resultados r ON r.fornecedor_id = f.id
	JOIN
		itens i ON i.id = r.item_id
	JOIN
		licitacoes l ON l.id = i.licitacao_id
	WHERE
		l.orgao_id = $1
		AND l.data_publicacao_pncp >= $2
	GROUP BY
		f.id, f.razao_social
	HAVING
		COUNT(r.id) > $3
	ORDER BY
		total_vitorias DESC, f.id`

	var out []anomaly.SupplierWins
	if err := rs.db.SelectContext(ctx, &out, query, organizationID, since, minWins); err != nil {
		return nil, fmt.Errorf("failed to list supplier wins of organization %d: %w", organizationID, err)
	}
	return out, nil
}

func (rs *ResultStore) SupplierHomologatedTotals(ctx context.Context, municipalityID int64) ([]float64, error) {
	query := `
	SELECT SUM(r.valor_total_homologado)
	FROM resultados r
	JOIN itens i ON i.id = r.item_id
	JOIN licitacoes l ON l.id = i.licitacao_id
	WHERE l.municipio_id = $1
		AND r.valor_total_homologado IS NOT NULL
	GROUP BY r.fornecedor_id`

	var out []float64
	if err := rs.db.SelectContext(ctx, &out, query, municipalityID); err != nil {
		return nil, fmt.Errorf("failed to sum supplier totals of municipality %d: %w", municipalityID, err)
	}
	return out, nil
}

func (rs *ResultStore) CountWins(ctx context.Context, municipalityID int64) (governance.WinCounts, error) {
	query := `
	SELECT
		COUNT(r.id) AS total,
		COUNT(r.id) FILTER (WHERE f.porte_fornecedor_nome IN ('ME', 'EPP')) AS me_epp
	FROM
		resultados r
	JOIN
		fornecedores f ON f.id = r.fornecedor_id
	JOIN
		itens i ON i.id = r.item_id
	JOIN
		licitacoes l ON l.id = i.licitacao_id
	WHERE
		l.municipio_id = $1`

	var wc governance.WinCounts
	if err := rs.db.GetContext(ctx, &wc, query, municipalityID); err != nil {
		return wc, fmt.Errorf("failed to count wins of municipality %d: %w", municipalityID, err)
	}
	return wc, nil
}
