// Package jsonmigrate imports legacy flat-file invoicing records into the
// relational schema established by the migration runner.
//
// The import is a single logical operation: seller profile, customers,
// products, then receipts with line items, all inside one transaction.
// Individual malformed records are skipped with a warning; a family-level
// failure aborts the whole import.
package jsonmigrate

import "encoding/json"

// Legacy source file names inside the configured source directory.
const (
	sellerFile    = "seller.json"
	customersFile = "customers.json"
	productsFile  = "products.json"
	receiptsFile  = "receipts.json"
)

// LineItemRecord is one line of a legacy receipt. Description and unit price
// are copies taken when the receipt was created, not live product references.
type LineItemRecord struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    float64 `json:"quantity"`
	Total       float64 `json:"total"`
}

// ReceiptRecord is a legacy receipt. Seller and Customer hold the serialized
// point-in-time snapshots captured at receipt creation; they are stored
// verbatim, never re-derived from the live tables.
type ReceiptRecord struct {
	ID           string           `json:"id"`
	CustomerID   string           `json:"customer_id"`
	PurchaseDate string           `json:"purchase_date"`
	Subtotal     float64          `json:"subtotal"`
	TaxAmount    float64          `json:"tax_amount"`
	Total        float64          `json:"total"`
	TaxInvoice   bool             `json:"tax_invoice"`
	LineItems    []LineItemRecord `json:"line_items"`
	Seller       json.RawMessage  `json:"seller"`
	Customer     json.RawMessage  `json:"customer"`
}
