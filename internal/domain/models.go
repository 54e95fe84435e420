package domain

import "time"

// Municipality represents the 'municipios' table.
type Municipality struct {
	ID         int64     `db:"id" json:"id"`
	IBGECode   string    `db:"codigo_ibge" json:"codigo_ibge" yaml:"codigo_ibge"`
	Name       string    `db:"municipio" json:"municipio" yaml:"municipio"`
	UF         string    `db:"uf" json:"uf" yaml:"uf"`
	DistanceKm *int      `db:"distancia_km" json:"distancia_km,omitempty" yaml:"distancia_km"`
	CreatedAt  time.Time `db:"created_at" json:"-" yaml:"-"`
	UpdatedAt  time.Time `db:"updated_at" json:"-" yaml:"-"`
}

// Organization represents the 'orgaos' table.
type Organization struct {
	ID        int64     `db:"id" json:"id"`
	CNPJ      string    `db:"cnpj" json:"cnpj"`
	LegalName string    `db:"razao_social" json:"razao_social"`
	PowerID   *string   `db:"poder_id" json:"poder_id,omitempty"`
	SphereID  *string   `db:"esfera_id" json:"esfera_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// Bidding represents the 'licitacoes' table. Nullable columns are pointers
// because field presence feeds the transparency index.
type Bidding struct {
	ID                int64      `db:"id" json:"id"`
	ControlNumber     string     `db:"numero_controle_pncp" json:"numero_controle_pncp"`
	PurchaseSequence  *string    `db:"sequencial_compra" json:"sequencial_compra,omitempty"`
	PurchaseNumber    *string    `db:"numero_compra" json:"numero_compra,omitempty"`
	Process           *string    `db:"processo" json:"processo,omitempty"`
	PurchaseYear      *int       `db:"ano_compra" json:"ano_compra,omitempty"`
	OrganizationID    *int64     `db:"orgao_id" json:"orgao_id,omitempty"`
	MunicipalityID    *int64     `db:"municipio_id" json:"municipio_id,omitempty"`
	ModalityID        *int       `db:"modalidade_id" json:"modalidade_id,omitempty"`
	ModalityName      *string    `db:"modalidade_nome" json:"modalidade_nome,omitempty"`
	LegalBasisName    *string    `db:"amparo_legal_nome" json:"amparo_legal_nome,omitempty"`
	Object            *string    `db:"objeto_compra" json:"objeto_compra,omitempty"`
	PublishedAt       *time.Time `db:"data_publicacao_pncp" json:"data_publicacao_pncp,omitempty"`
	ProposalOpeningAt *time.Time `db:"data_abertura_proposta" json:"data_abertura_proposta,omitempty"`
	ProposalClosingAt *time.Time `db:"data_encerramento_proposta" json:"data_encerramento_proposta,omitempty"`
	LastUpdatedAt     *time.Time `db:"data_atualizacao" json:"data_atualizacao,omitempty"`
	StatusID          *int       `db:"situacao_compra_id" json:"situacao_compra_id,omitempty"`
	StatusName        *string    `db:"situacao_compra_nome" json:"situacao_compra_nome,omitempty"`
	EstimatedTotal    *float64   `db:"valor_total_estimado" json:"valor_total_estimado,omitempty"`
	HomologatedTotal  *float64   `db:"valor_total_homologado" json:"valor_total_homologado,omitempty"`
	OriginSystemLink  *string    `db:"link_sistema_origem" json:"link_sistema_origem,omitempty"`
	HasResult         bool       `db:"existe_resultado" json:"existe_resultado"`
	CreatedAt         time.Time  `db:"created_at" json:"-"`
	UpdatedAt         time.Time  `db:"updated_at" json:"-"`
}

// Item represents the 'itens' table.
type Item struct {
	ID                int64     `db:"id" json:"id"`
	BiddingID         int64     `db:"licitacao_id" json:"licitacao_id"`
	Number            int       `db:"numero_item" json:"numero_item"`
	MaterialOrService *string   `db:"material_ou_servico" json:"material_ou_servico,omitempty"`
	Description       string    `db:"descricao" json:"descricao"`
	Quantity          *float64  `db:"quantidade" json:"quantidade,omitempty"`
	UnitOfMeasure     *string   `db:"unidade_medida" json:"unidade_medida,omitempty"`
	UnitEstimate      *float64  `db:"valor_unitario_estimado" json:"valor_unitario_estimado,omitempty"`
	TotalValue        *float64  `db:"valor_total" json:"valor_total,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"-"`
	UpdatedAt         time.Time `db:"updated_at" json:"-"`
}

// Supplier represents the 'fornecedores' table, keyed by the cleaned document.
type Supplier struct {
	ID         int64     `db:"id" json:"id"`
	Document   string    `db:"cnpj_cpf" json:"cnpj_cpf"`
	LegalName  string    `db:"razao_social" json:"razao_social"`
	SizeName   *string   `db:"porte_fornecedor_nome" json:"porte_fornecedor_nome,omitempty"`
	PersonType *string   `db:"tipo_pessoa" json:"tipo_pessoa,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"-"`
	UpdatedAt  time.Time `db:"updated_at" json:"-"`
}

// Result represents the 'resultados' table.
type Result struct {
	ID                  int64      `db:"id" json:"id"`
	ItemID              int64      `db:"item_id" json:"item_id"`
	SupplierID          int64      `db:"fornecedor_id" json:"fornecedor_id"`
	ResultDate          *time.Time `db:"data_resultado" json:"data_resultado,omitempty"`
	Sequence            *int       `db:"sequencial_resultado" json:"sequencial_resultado,omitempty"`
	DiscountPercent     *float64   `db:"percentual_desconto" json:"percentual_desconto,omitempty"`
	HomologatedQuantity *float64   `db:"quantidade_homologada" json:"quantidade_homologada,omitempty"`
	HomologatedUnit     *float64   `db:"valor_unitario_homologado" json:"valor_unitario_homologado,omitempty"`
	HomologatedTotal    *float64   `db:"valor_total_homologado" json:"valor_total_homologado,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"-"`
	UpdatedAt           time.Time  `db:"updated_at" json:"-"`
}

// Supplier size categories.
const (
	SizeME     = "ME"
	SizeEPP    = "EPP"
	SizeOthers = "DEMAIS"
)

// PricePoint is one observation of a price history window.
type PricePoint struct {
	ItemID           int64     `db:"item_id" json:"item_id"`
	Description      string    `db:"descricao" json:"descricao"`
	UnitPrice        float64   `db:"valor_unitario" json:"valor_unitario"`
	PublishedAt      time.Time `db:"data_publicacao" json:"data_publicacao"`
	BiddingControlNo string    `db:"numero_controle_pncp" json:"numero_controle_pncp"`
	MunicipalityID   int64     `db:"municipio_id" json:"municipio_id"`
}

// GovernanceRecord represents the 'indicadores_governanca' table, one row per
// (municipality, period).
type GovernanceRecord struct {
	ID                int64     `db:"id" json:"id"`
	MunicipalityID    int64     `db:"municipio_id" json:"municipio_id"`
	Period            string    `db:"periodo" json:"periodo"`
	TransparencyIndex float64   `db:"indice_transparencia" json:"indice_transparencia"`
	SuccessRate       float64   `db:"taxa_sucesso" json:"taxa_sucesso"`
	AverageCycleDays  int       `db:"tempo_medio_dias" json:"tempo_medio_dias"`
	HHI               float64   `db:"indice_concentracao" json:"indice_concentracao"`
	MEEPPShare        float64   `db:"participacao_me_epp" json:"participacao_me_epp"`
	AverageSavings    float64   `db:"economia_media" json:"economia_media"`
	TotalBiddings     int       `db:"total_licitacoes" json:"total_licitacoes"`
	TotalValue        float64   `db:"valor_total" json:"valor_total"`
	CreatedAt         time.Time `db:"created_at" json:"-"`
	UpdatedAt         time.Time `db:"updated_at" json:"-"`
}

// Sanction represents the 'empresas_impedidas' table, keyed by (document, source).
type Sanction struct {
	ID             int64      `db:"id" json:"id"`
	Document       string     `db:"cnpj_cpf" json:"cnpj_cpf"`
	Name           string     `db:"razao_social" json:"razao_social"`
	Source         string     `db:"fonte" json:"fonte"`
	SanctionType   *string    `db:"tipo_sancao" json:"tipo_sancao,omitempty"`
	StartDate      *time.Time `db:"data_inicio" json:"data_inicio,omitempty"`
	EndDate        *time.Time `db:"data_fim" json:"data_fim,omitempty"`
	SanctioningOrg *string    `db:"orgao_sancionador" json:"orgao_sancionador,omitempty"`
	UF             *string    `db:"uf" json:"uf,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"-"`
	UpdatedAt      time.Time  `db:"updated_at" json:"-"`
}

// Sanction registries.
const (
	SourceCEIS = "CEIS"
	SourceCNEP = "CNEP"
)

// Active reports whether the sanction is still in force at the given date.
func (s Sanction) Active(at time.Time) bool {
	if s.EndDate == nil {
		return true
	}
	y, m, d := at.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := s.EndDate.Date()
	end := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return !end.Before(today)
}

// Modalities maps PNCP modality codes to display names.
var Modalities = map[int]string{
	1:  "Concorrência",
	2:  "Tomada de Preços",
	3:  "Convite",
	4:  "Concurso",
	5:  "Leilão",
	6:  "Pregão",
	7:  "Dispensa de Licitação",
	8:  "Inexigibilidade",
	9:  "Credenciamento",
	10: "Pré-qualificação",
	11: "Diálogo Competitivo",
}

// PurchaseStatuses maps PNCP purchase status codes to display names.
var PurchaseStatuses = map[int]string{
	1:  "Publicada",
	2:  "Aberta",
	3:  "Em Análise",
	4:  "Homologada",
	5:  "Adjudicada",
	6:  "Revogada",
	7:  "Anulada",
	8:  "Suspensa",
	9:  "Deserta",
	10: "Fracassada",
}
