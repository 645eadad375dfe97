// Package types provides domain models shared across invoicer storage components.
//
// Zero-dependency design: types.go and errors.go use only the standard library.
// ID utilities in ids.go import uuid but are isolated so callers that only
// need row types avoid the dependency.
package types

import "time"

// CustomerType discriminates the two legal customer kinds.
// String alias enables type safety while keeping plain TEXT storage.
type CustomerType string

const (
	// CustomerIndividual is a natural person; requires a first name.
	CustomerIndividual CustomerType = "individual"

	// CustomerBusiness is a company; requires a business name.
	CustomerBusiness CustomerType = "business"
)

// SellerProfile is the singleton issuer identity embedded in every receipt.
// At most one logical row exists; the primary key is fixed at 1.
type SellerProfile struct {
	Name    string `db:"name" json:"name"`
	TaxID   string `db:"tax_id" json:"tax_id"`
	Email   string `db:"email" json:"email"`
	Phone   string `db:"phone" json:"phone"`
	Address string `db:"address" json:"address"`
}

// Customer is a live customer record. Receipts embed a snapshot copy of the
// customer as it existed at creation; editing a Customer never alters history.
type Customer struct {
	ID           string       `db:"id" json:"id"`
	Type         CustomerType `db:"type" json:"type"`
	FirstName    string       `db:"first_name" json:"first_name"`
	LastName     string       `db:"last_name" json:"last_name"`
	BusinessName string       `db:"business_name" json:"business_name"`
	TaxID        string       `db:"tax_id" json:"tax_id"`
	Email        string       `db:"email" json:"email"`
	Phone        string       `db:"phone" json:"phone"`
	Address      string       `db:"address" json:"address"`
}

// Product is a live catalog entry. Line items copy its price and description
// at receipt creation rather than referencing the live row.
type Product struct {
	ID            string  `db:"id" json:"id"`
	Name          string  `db:"name" json:"name"`
	Description   string  `db:"description" json:"description"`
	UnitPrice     float64 `db:"unit_price" json:"unit_price"`
	TaxApplicable bool    `db:"tax_applicable" json:"tax_applicable"`
}

// Receipt is an issued receipt. SellerSnapshot and CustomerSnapshot hold the
// serialized point-in-time copies captured when the receipt was created.
type Receipt struct {
	ID               string    `db:"id" json:"id"`
	CustomerID       string    `db:"customer_id" json:"customer_id"`
	PurchaseDate     time.Time `db:"purchase_date" json:"purchase_date"`
	Subtotal         float64   `db:"subtotal" json:"subtotal"`
	TaxAmount        float64   `db:"tax_amount" json:"tax_amount"`
	Total            float64   `db:"total" json:"total"`
	TaxInvoice       bool      `db:"tax_invoice" json:"tax_invoice"`
	SellerSnapshot   string    `db:"seller_snapshot" json:"seller_snapshot"`
	CustomerSnapshot string    `db:"customer_snapshot" json:"customer_snapshot"`
}

// LineItem is a single line of a receipt. Description and UnitPrice are
// copies taken from the product at receipt creation.
type LineItem struct {
	ID          string  `db:"id" json:"id"`
	ReceiptID   string  `db:"receipt_id" json:"receipt_id"`
	ProductID   string  `db:"product_id" json:"product_id"`
	Description string  `db:"description" json:"description"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
	Quantity    float64 `db:"quantity" json:"quantity"`
	Total       float64 `db:"total" json:"total"`
}
