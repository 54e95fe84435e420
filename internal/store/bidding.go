package store

import (
	"context"
	"fmt"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type BiddingStore struct {
	db *sqlx.DB
}

// UpsertBidding is keyed by the PNCP control number. Collected fields are
// overwritten on every run.
func (bs *BiddingStore) UpsertBidding(ctx context.Context, b *domain.Bidding) error {
	query := `INSERT INTO licitacoes (
		numero_controle_pncp,
		sequencial_compra,
		numero_compra,
		processo,
		ano_compra,
		orgao_id,
		municipio_id,
		modalidade_id,
		modalidade_nome,
		amparo_legal_nome,
		objeto_compra,
		data_publicacao_pncp,
		data_abertura_proposta,
		data_encerramento_proposta,
		data_atualizacao,
		situacao_compra_id,
		situacao_compra_nome,
		valor_total_estimado,
		valor_total_homologado,
		link_sistema_origem,
		existe_resultado
	) VALUES (
		:numero_controle_pncp,
		:sequencial_compra,
		:numero_compra,
		:processo,
		:ano_compra,
		:orgao_id,
		:municipio_id,
		:modalidade_id,
		:modalidade_nome,
		:amparo_legal_nome,
		:objeto_compra,
		:data_publicacao_pncp,
		:data_abertura_proposta,
		:data_encerramento_proposta,
		:data_atualizacao,
		:situacao_compra_id,
		:situacao_compra_nome,
		:valor_total_estimado,
		:valor_total_homologado,
		:link_sistema_origem,
		:existe_resultado
	)
	ON CONFLICT (numero_controle_pncp) DO UPDATE SET
		sequencial_compra = EXCLUDED.sequencial_compra,
		numero_compra = EXCLUDED.numero_compra,
		processo = EXCLUDED.processo,
		ano_compra = EXCLUDED.ano_compra,
		orgao_id = EXCLUDED.orgao_id,
		municipio_id = EXCLUDED.municipio_id,
		modalidade_id = EXCLUDED.modalidade_id,
		modalidade_nome = EXCLUDED.modalidade_nome,
		amparo_legal_nome = EXCLUDED.amparo_legal_nome,
		objeto_compra = EXCLUDED.objeto_compra,
		data_publicacao_pncp = EXCLUDED.data_publicacao_pncp,
		data_abertura_proposta = EXCLUDED.data_abertura_proposta,
		data_encerramento_proposta = EXCLUDED.data_encerramento_proposta,
		data_atualizacao = EXCLUDED.data_atualizacao,
		situacao_compra_id = EXCLUDED.situacao_compra_id,
		situacao_compra_nome = EXCLUDED.situacao_compra_nome,
		valor_total_estimado = EXCLUDED.valor_total_estimado,
		valor_total_homologado = EXCLUDED.valor_total_homologado,
		link_sistema_origem = EXCLUDED.link_sistema_origem,
		existe_resultado = EXCLUDED.existe_resultado,
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, bs.db, query, b)
	if err != nil {
		return fmt.Errorf("failed to upsert bidding %s: %w", b.ControlNumber, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan bidding id: %w", err)
		}
	}
	return rows.Err()
}

func (bs *BiddingStore) GetBidding(ctx context.Context, id int64) (domain.Bidding, error) {
	var b domain.Bidding
	if err := bs.db.GetContext(ctx, &b, `SELECT * FROM licitacoes WHERE id = $1`, id); err != nil {
		return b, fmt.Errorf("failed to get bidding %d: %w", id, notFound(err))
	}
	return b, nil
}

func (bs *BiddingStore) ListBiddingsPublishedSince(ctx context.Context, since time.Time) ([]domain.Bidding, error) {
	query := `
	SELECT *
	FROM licitacoes
	WHERE data_publicacao_pncp >= $1
	ORDER BY data_publicacao_pncp, id`

	var out []domain.Bidding
	if err := bs.db.SelectContext(ctx, &out, query, since); err != nil {
		return nil, fmt.Errorf("failed to list biddings since %s: %w", since.Format(time.DateOnly), err)
	}
	return out, nil
}

func (bs *BiddingStore) ListMunicipalityBiddings(ctx context.Context, municipalityID int64) ([]domain.Bidding, error) {
	var out []domain.Bidding
	err := bs.db.SelectContext(ctx, &out, `SELECT * FROM licitacoes WHERE municipio_id = $1 ORDER BY id`, municipalityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list biddings of municipality %d: %w", municipalityID, err)
	}
	return out, nil
}

func (bs *BiddingStore) CountOrganizationBiddings(ctx context.Context, organizationID int64, since time.Time) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM licitacoes
	WHERE orgao_id = $1 AND data_publicacao_pncp >= $2`

	var n int
	if err := bs.db.GetContext(ctx, &n, query, organizationID, since); err != nil {
		return 0, fmt.Errorf("failed to count biddings of organization %d: %w", organizationID, err)
	}
	return n, nil
}
