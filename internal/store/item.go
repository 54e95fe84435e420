package store

import (
	"context"
	"fmt"

	"github.com/farxc/licitacoes_analytics/internal/analysis/prices"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type ItemStore struct {
	db *sqlx.DB
}

func (is *ItemStore) UpsertItem(ctx context.Context, item *domain.Item) error {
	query := `INSERT INTO itens (
		licitacao_id,
		numero_item,
		material_ou_servico,
		descricao,
		quantidade,
		unidade_medida,
		valor_unitario_estimado,
		valor_total
	) VALUES (
		:licitacao_id,
		:numero_item,
		:material_ou_servico,
		:descricao,
		:quantidade,
		:unidade_medida,
		:valor_unitario_estimado,
		:valor_total
	)
	ON CONFLICT (licitacao_id, numero_item) DO UPDATE SET
		material_ou_servico = EXCLUDED.material_ou_servico,
		descricao = EXCLUDED.descricao,
		quantidade = EXCLUDED.quantidade,
		unidade_medida = EXCLUDED.unidade_medida,
		valor_unitario_estimado = EXCLUDED.valor_unitario_estimado,
		valor_total = EXCLUDED.valor_total,
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, is.db, query, item)
	if err != nil {
		return fmt.Errorf("failed to upsert item %d of bidding %d: %w", item.Number, item.BiddingID, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan item id: %w", err)
		}
	}
	return rows.Err()
}

func (is *ItemStore) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	var item domain.Item
	if err := is.db.GetContext(ctx, &item, `SELECT * FROM itens WHERE id = $1`, id); err != nil {
		return item, fmt.Errorf("failed to get item %d: %w", id, notFound(err))
	}
	return item, nil
}

func (is *ItemStore) ListItems(ctx context.Context, biddingID int64) ([]domain.Item, error) {
	var out []domain.Item
	err := is.db.SelectContext(ctx, &out, `SELECT * FROM itens WHERE licitacao_id = $1 ORDER BY numero_item`, biddingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items of bidding %d: %w", biddingID, err)
	}
	return out, nil
}

func (is *ItemStore) SimilarItemsMean(ctx context.Context, prefix string, excludeItemID int64) (*float64, error) {
	query := `
	SELECT AVG(valor_unitario_estimado)
	FROM itens
	WHERE descricao ILIKE $1
		AND id <> $2
		AND valor_unitario_estimado > 0`

	var mean *float64
	if err := is.db.GetContext(ctx, &mean, query, containsPattern(prefix), excludeItemID); err != nil {
		return nil, fmt.Errorf("failed to compute similar items mean: %w", err)
	}
	return mean, nil
}

// FetchPriceHistory returns the positive estimated unit prices of items whose
// description contains q.Description, ordered by publication date.
func (is *ItemStore) FetchPriceHistory(ctx context.Context, q prices.HistoryQuery) ([]domain.PricePoint, error) {
	query := `
	SELECT
		i.id AS item_id,
		i.descricao,
		i.valor_unitario_estimado AS valor_unitario,
		l.data_publicacao_pncp AS data_publicacao,
		l.numero_controle_pncp,
		COALESCE(l.municipio_id, 0) AS municipio_id
	FROM
		itens i
	JOIN
		licitacoes l ON l.id = i.licitacao_id
	WHERE
		i.descricao ILIKE $1
		AND i.valor_unitario_estimado > 0
		AND l.data_publicacao_pncp >= $2
		AND ($3::BIGINT IS NULL OR l.municipio_id = $3)
	ORDER BY
		l.data_publicacao_pncp, i.id`

	rows, err := is.db.QueryxContext(ctx, query, containsPattern(q.Description), q.Since, q.MunicipalityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var out []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.StructScan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		out = append(out, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}
