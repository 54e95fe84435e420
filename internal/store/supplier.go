package store

import (
	"context"
	"fmt"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type SupplierStore struct {
	db *sqlx.DB
}

// UpsertSupplier is keyed by the cleaned CNPJ/CPF.
func (ss *SupplierStore) UpsertSupplier(ctx context.Context, s *domain.Supplier) error {
	s.Document = domain.CleanDocument(s.Document)
	query := `INSERT INTO fornecedores (
		cnpj_cpf,
		razao_social,
		porte_fornecedor_nome,
		tipo_pessoa
	) VALUES (
		:cnpj_cpf,
		:razao_social,
		:porte_fornecedor_nome,
		:tipo_pessoa
	)
	ON CONFLICT (cnpj_cpf) DO UPDATE SET
		razao_social = EXCLUDED.razao_social,
		porte_fornecedor_nome = COALESCE(EXCLUDED.porte_fornecedor_nome, fornecedores.porte_fornecedor_nome),
		tipo_pessoa = COALESCE(EXCLUDED.tipo_pessoa, fornecedores.tipo_pessoa),
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, ss.db, query, s)
	if err != nil {
		return fmt.Errorf("failed to upsert supplier %s: %w", s.Document, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan supplier id: %w", err)
		}
	}
	return rows.Err()
}

// ListBiddingSuppliers returns the distinct suppliers with a result on any
// item of the bidding.
func (ss *SupplierStore) ListBiddingSuppliers(ctx context.Context, biddingID int64) ([]domain.Supplier, error) {
	query := `
	SELECT DISTINCT f.*
	FROM fornecedores f
	JOIN resultados r ON r.fornecedor_id = f.id
	JOIN itens i ON i.id = r.item_id
	WHERE i.licitacao_id = $1
	ORDER BY f.id`

	var out []domain.Supplier
	if err := ss.db.SelectContext(ctx, &out, query, biddingID); err != nil {
		return nil, fmt.Errorf("failed to list suppliers of bidding %d: %w", biddingID, err)
	}
	return out, nil
}
