package jsonmigrate

import (
	"fmt"
	"time"

	"github.com/mfrits/invoicer/internal/types"
)

// purchaseDateFormats is the fixed ordered list of accepted date-time layouts
// for legacy receipt purchase dates. Tried in order; the first match wins.
var purchaseDateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parsePurchaseDate tries each accepted layout in order. A date no layout can
// parse fails only that record, never the batch.
func parsePurchaseDate(value string) (time.Time, error) {
	for _, layout := range purchaseDateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized purchase date %q", value)
}

// validateCustomer enforces per-record rules: non-empty id, first name for
// individuals, business name for businesses.
func validateCustomer(c *types.Customer) error {
	if c.ID == "" {
		return fmt.Errorf("customer has empty id")
	}
	switch c.Type {
	case types.CustomerIndividual:
		if c.FirstName == "" {
			return fmt.Errorf("individual customer %s has no first name", c.ID)
		}
	case types.CustomerBusiness:
		if c.BusinessName == "" {
			return fmt.Errorf("business customer %s has no business name", c.ID)
		}
	default:
		return fmt.Errorf("customer %s has unknown type %q", c.ID, c.Type)
	}
	return nil
}

// validateProduct enforces non-empty id and non-negative unit price.
func validateProduct(p *types.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product has empty id")
	}
	if p.UnitPrice < 0 {
		return fmt.Errorf("product %s has negative unit price %v", p.ID, p.UnitPrice)
	}
	return nil
}

// validateReceipt enforces a non-empty customer reference and at least one
// line item. Referential checks against known customers/products happen at
// insert time inside the transaction.
func validateReceipt(r *ReceiptRecord) error {
	if r.ID == "" {
		return fmt.Errorf("receipt has empty id")
	}
	if r.CustomerID == "" {
		return fmt.Errorf("receipt %s references no customer", r.ID)
	}
	if len(r.LineItems) == 0 {
		return fmt.Errorf("receipt %s has no line items", r.ID)
	}
	return nil
}
