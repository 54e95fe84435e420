package pncp

import (
	"strings"

	"github.com/farxc/licitacoes_analytics/internal/domain"
)

const maxNameLength = 255

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ToOrganization returns the purchasing organization of the contract.
func ToOrganization(c Contract) domain.Organization {
	name := strings.TrimSpace(c.Organization.LegalName)
	if name == "" {
		name = "N/A"
	}
	return domain.Organization{
		CNPJ:      domain.CleanDocument(c.Organization.CNPJ),
		LegalName: truncate(name, maxNameLength),
		PowerID:   c.Organization.PowerID.Ptr(),
		SphereID:  c.Organization.SphereID.Ptr(),
	}
}

// ToBidding maps a contract to a bidding. Organization and municipality ids
// are left for the caller.
func ToBidding(c Contract) domain.Bidding {
	b := domain.Bidding{
		ControlNumber:     strings.TrimSpace(c.ControlNumber),
		PurchaseSequence:  c.PurchaseSequence.Ptr(),
		PurchaseNumber:    c.PurchaseNumber.Ptr(),
		Process:           c.Process.Ptr(),
		PurchaseYear:      c.PurchaseYear,
		ModalityID:        c.ModalityID,
		ModalityName:      optString(c.ModalityName),
		LegalBasisName:    optString(c.LegalBasis.Name),
		Object:            optString(c.Object),
		PublishedAt:       c.PublishedAt.TimePtr(),
		ProposalOpeningAt: c.ProposalOpeningAt.TimePtr(),
		ProposalClosingAt: c.ProposalClosingAt.TimePtr(),
		LastUpdatedAt:     c.UpdatedAt.TimePtr(),
		StatusID:          c.StatusID,
		StatusName:        optString(c.StatusName),
		EstimatedTotal:    c.EstimatedTotal,
		HomologatedTotal:  c.HomologatedTotal,
		OriginSystemLink:  optString(c.OriginSystemLink),
		HasResult:         c.HasResult,
	}
	if b.ModalityName == nil && b.ModalityID != nil {
		if name, ok := domain.Modalities[*b.ModalityID]; ok {
			b.ModalityName = &name
		}
	}
	if b.StatusName == nil && b.StatusID != nil {
		if name, ok := domain.PurchaseStatuses[*b.StatusID]; ok {
			b.StatusName = &name
		}
	}
	return b
}

func ToItem(biddingID int64, it Item) domain.Item {
	return domain.Item{
		BiddingID:         biddingID,
		Number:            it.Number,
		MaterialOrService: optString(it.MaterialOrService),
		Description:       strings.TrimSpace(it.Description),
		Quantity:          it.Quantity,
		UnitOfMeasure:     optString(it.UnitOfMeasure),
		UnitEstimate:      it.UnitEstimate,
		TotalValue:        it.Total,
	}
}

// ToSupplier returns the winning supplier of the result. The person type is
// derived from the document when PNCP omits it.
func ToSupplier(r Result) domain.Supplier {
	doc := domain.CleanDocument(r.SupplierDocument)
	personType := optString(r.PersonType)
	if personType == nil {
		personType = optString(domain.PersonType(doc))
	}
	name := strings.TrimSpace(r.SupplierName)
	if name == "" {
		name = doc
	}
	return domain.Supplier{
		Document:   doc,
		LegalName:  truncate(name, maxNameLength),
		SizeName:   optString(normalizeSize(r.SupplierSizeName)),
		PersonType: personType,
	}
}

func ToResult(itemID, supplierID int64, r Result) domain.Result {
	return domain.Result{
		ItemID:              itemID,
		SupplierID:          supplierID,
		ResultDate:          r.ResultDate.TimePtr(),
		Sequence:            r.Sequence,
		DiscountPercent:     r.DiscountPercent,
		HomologatedQuantity: r.HomologatedQuantity,
		HomologatedUnit:     r.HomologatedUnit,
		HomologatedTotal:    r.HomologatedTotal,
	}
}

// normalizeSize maps PNCP size names ("ME", "Microempresa", "EPP", ...) to
// the ME/EPP/DEMAIS categories.
func normalizeSize(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case n == "":
		return ""
	case n == domain.SizeME || strings.HasPrefix(n, "MICRO"):
		return domain.SizeME
	case n == domain.SizeEPP || strings.Contains(n, "PEQUENO PORTE"):
		return domain.SizeEPP
	default:
		return domain.SizeOthers
	}
}
