package store

import (
	"context"
	"fmt"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type SanctionStore struct {
	db *sqlx.DB
}

func (ss *SanctionStore) UpsertSanction(ctx context.Context, s *domain.Sanction) error {
	s.Document = domain.CleanDocument(s.Document)
	query := `INSERT INTO empresas_impedidas (
		cnpj_cpf,
		razao_social,
		fonte,
		tipo_sancao,
		data_inicio,
		data_fim,
		orgao_sancionador,
		uf
	) VALUES (
		:cnpj_cpf,
		:razao_social,
		:fonte,
		:tipo_sancao,
		:data_inicio,
		:data_fim,
		:orgao_sancionador,
		:uf
	)
	ON CONFLICT (cnpj_cpf, fonte) DO UPDATE SET
		razao_social = EXCLUDED.razao_social,
		tipo_sancao = EXCLUDED.tipo_sancao,
		data_inicio = EXCLUDED.data_inicio,
		data_fim = EXCLUDED.data_fim,
		orgao_sancionador = EXCLUDED.orgao_sancionador,
		uf = EXCLUDED.uf,
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, ss.db, query, s)
	if err != nil {
		return fmt.Errorf("failed to upsert sanction %s/%s: %w", s.Document, s.Source, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan sanction id: %w", err)
		}
	}
	return rows.Err()
}

func (ss *SanctionStore) ListSanctions(ctx context.Context, document string) ([]domain.Sanction, error) {
	var out []domain.Sanction
	err := ss.db.SelectContext(ctx, &out, `SELECT * FROM empresas_impedidas WHERE cnpj_cpf = $1 ORDER BY fonte`, domain.CleanDocument(document))
	if err != nil {
		return nil, fmt.Errorf("failed to list sanctions of %s: %w", document, err)
	}
	return out, nil
}
