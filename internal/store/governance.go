package store

import (
	"context"
	"fmt"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type GovernanceStore struct {
	db *sqlx.DB
}

// UpsertGovernance keeps at most one record per (municipality, period).
func (gs *GovernanceStore) UpsertGovernance(ctx context.Context, rec *domain.GovernanceRecord) error {
	query := `INSERT INTO indicadores_governanca (
		municipio_id,
		periodo,
		indice_transparencia,
		taxa_sucesso,
		tempo_medio_dias,
		indice_concentracao,
		participacao_me_epp,
		economia_media,
		total_licitacoes,
		valor_total
	) VALUES (
		:municipio_id,
		:periodo,
		:indice_transparencia,
		:taxa_sucesso,
		:tempo_medio_dias,
		:indice_concentracao,
		:participacao_me_epp,
		:economia_media,
		:total_licitacoes,
		:valor_total
	)
	ON CONFLICT (municipio_id, periodo) DO UPDATE SET
		indice_transparencia = EXCLUDED.indice_transparencia,
		taxa_sucesso = EXCLUDED.taxa_sucesso,
		tempo_medio_dias = EXCLUDED.tempo_medio_dias,
		indice_concentracao = EXCLUDED.indice_concentracao,
		participacao_me_epp = EXCLUDED.participacao_me_epp,
		economia_media = EXCLUDED.economia_media,
		total_licitacoes = EXCLUDED.total_licitacoes,
		valor_total = EXCLUDED.valor_total,
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, gs.db, query, rec)
	if err != nil {
		return fmt.Errorf("failed to upsert governance %d/%s: %w", rec.MunicipalityID, rec.Period, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan governance id: %w", err)
		}
	}
	return rows.Err()
}

// ListGovernance returns the stored periods of a municipality, newest first.
func (gs *GovernanceStore) ListGovernance(ctx context.Context, municipalityID int64) ([]domain.GovernanceRecord, error) {
	query := `
	SELECT *
	FROM indicadores_governanca
	WHERE municipio_id = $1
	ORDER BY periodo DESC`

	var out []domain.GovernanceRecord
	if err := gs.db.SelectContext(ctx, &out, query, municipalityID); err != nil {
		return nil, fmt.Errorf("failed to list governance of municipality %d: %w", municipalityID, err)
	}
	return out, nil
}
