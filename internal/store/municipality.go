package store

import (
	"context"
	"fmt"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/jmoiron/sqlx"
)

type MunicipalityStore struct {
	db *sqlx.DB
}

func (ms *MunicipalityStore) UpsertMunicipality(ctx context.Context, m *domain.Municipality) error {
	query := `INSERT INTO municipios (
		codigo_ibge,
		municipio,
		uf,
		distancia_km
	) VALUES (
		:codigo_ibge,
		:municipio,
		:uf,
		:distancia_km
	)
	ON CONFLICT (codigo_ibge) DO UPDATE SET
		municipio = EXCLUDED.municipio,
		uf = EXCLUDED.uf,
		distancia_km = EXCLUDED.distancia_km,
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, ms.db, query, m)
	if err != nil {
		return fmt.Errorf("failed to upsert municipality %s: %w", m.IBGECode, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan municipality id: %w", err)
		}
	}
	return rows.Err()
}

func (ms *MunicipalityStore) GetMunicipality(ctx context.Context, id int64) (domain.Municipality, error) {
	var m domain.Municipality
	err := ms.db.GetContext(ctx, &m, `SELECT * FROM municipios WHERE id = $1`, id)
	if err != nil {
		return m, fmt.Errorf("failed to get municipality %d: %w", id, notFound(err))
	}
	return m, nil
}

func (ms *MunicipalityStore) GetMunicipalityByIBGE(ctx context.Context, code string) (domain.Municipality, error) {
	var m domain.Municipality
	err := ms.db.GetContext(ctx, &m, `SELECT * FROM municipios WHERE codigo_ibge = $1`, code)
	if err != nil {
		return m, fmt.Errorf("failed to get municipality %s: %w", code, notFound(err))
	}
	return m, nil
}

func (ms *MunicipalityStore) ListMunicipalities(ctx context.Context) ([]domain.Municipality, error) {
	var out []domain.Municipality
	if err := ms.db.SelectContext(ctx, &out, `SELECT * FROM municipios ORDER BY municipio`); err != nil {
		return nil, fmt.Errorf("failed to list municipalities: %w", err)
	}
	return out, nil
}

type OrganizationStore struct {
	db *sqlx.DB
}

// GetOrCreateOrganization inserts the organization when its CNPJ is unknown and
// fills o.ID either way. Existing names are refreshed.
func (ogs *OrganizationStore) GetOrCreateOrganization(ctx context.Context, o *domain.Organization) error {
	query := `INSERT INTO orgaos (
		cnpj,
		razao_social,
		poder_id,
		esfera_id
	) VALUES (
		:cnpj,
		:razao_social,
		:poder_id,
		:esfera_id
	)
	ON CONFLICT (cnpj) DO UPDATE SET
		razao_social = EXCLUDED.razao_social,
		updated_at = NOW()
	RETURNING id, created_at, updated_at`

	rows, err := sqlx.NamedQueryContext(ctx, ogs.db, query, o)
	if err != nil {
		return fmt.Errorf("failed to upsert organization %s: %w", o.CNPJ, err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan organization id: %w", err)
		}
	}
	return rows.Err()
}

func (ogs *OrganizationStore) GetOrganization(ctx context.Context, id int64) (domain.Organization, error) {
	var o domain.Organization
	if err := ogs.db.GetContext(ctx, &o, `SELECT * FROM orgaos WHERE id = $1`, id); err != nil {
		return o, fmt.Errorf("failed to get organization %d: %w", id, notFound(err))
	}
	return o, nil
}
