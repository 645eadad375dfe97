package jsonmigrate

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/mfrits/invoicer/internal/types"
)

func TestParsePurchaseDate(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"2024-03-15T10:30:00.5Z", false},
		{"2024-03-15T10:30:00Z", false},
		{"2024-03-15T10:30:00", false},
		{"2024-03-15 10:30:00", false},
		{"2024-03-15", false},
		{"15/03/2024", false},
		{"March 15, 2024", true},
		{"15-03-2024", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parsePurchaseDate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePurchaseDate(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if !tt.wantErr && got.IsZero() {
				t.Errorf("parsePurchaseDate(%q) returned zero time", tt.value)
			}
		})
	}
}

func TestParsePurchaseDate_DayMonthOrder(t *testing.T) {
	got, err := parsePurchaseDate("02/03/2024")
	if err != nil {
		t.Fatal(err)
	}
	// Slash layout is day/month/year.
	if got.Day() != 2 || got.Month() != time.March {
		t.Errorf("parsed %v, want 2 March 2024", got)
	}
}

// Property: any calendar date rendered in an accepted layout parses back to
// the same year, month, and day.
func TestParsePurchaseDate_PropertyRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	layouts := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02", "02/01/2006"}

	properties.Property("accepted layouts round-trip the calendar date", prop.ForAll(
		func(days int, layoutIdx int) bool {
			date := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, days)
			layout := layouts[layoutIdx%len(layouts)]

			parsed, err := parsePurchaseDate(date.Format(layout))
			if err != nil {
				return false
			}
			y1, m1, d1 := date.Date()
			y2, m2, d2 := parsed.Date()
			return y1 == y2 && m1 == m2 && d1 == d2
		},
		gen.IntRange(0, 20000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func TestValidateCustomer(t *testing.T) {
	tests := []struct {
		name     string
		customer types.Customer
		wantErr  bool
	}{
		{"valid individual", types.Customer{ID: "c1", Type: types.CustomerIndividual, FirstName: "Ana"}, false},
		{"valid business", types.Customer{ID: "c2", Type: types.CustomerBusiness, BusinessName: "Acme"}, false},
		{"empty id", types.Customer{Type: types.CustomerIndividual, FirstName: "Ana"}, true},
		{"individual without first name", types.Customer{ID: "c3", Type: types.CustomerIndividual}, true},
		{"business without business name", types.Customer{ID: "c4", Type: types.CustomerBusiness}, true},
		{"unknown type", types.Customer{ID: "c5", Type: "government", FirstName: "Ana"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCustomer(&tt.customer)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateCustomer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateProduct(t *testing.T) {
	tests := []struct {
		name    string
		product types.Product
		wantErr bool
	}{
		{"valid", types.Product{ID: "p1", Name: "Oak shelf", UnitPrice: 5.00}, false},
		{"free product", types.Product{ID: "p2", Name: "Sample"}, false},
		{"empty id", types.Product{Name: "Oak shelf"}, true},
		{"negative price", types.Product{ID: "p3", UnitPrice: -0.01}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateProduct(&tt.product)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateProduct() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReceipt(t *testing.T) {
	item := LineItemRecord{ProductID: "p1", Quantity: 1}
	tests := []struct {
		name    string
		receipt ReceiptRecord
		wantErr bool
	}{
		{"valid", ReceiptRecord{ID: "r1", CustomerID: "c1", LineItems: []LineItemRecord{item}}, false},
		{"empty id", ReceiptRecord{CustomerID: "c1", LineItems: []LineItemRecord{item}}, true},
		{"no customer", ReceiptRecord{ID: "r2", LineItems: []LineItemRecord{item}}, true},
		{"no line items", ReceiptRecord{ID: "r3", CustomerID: "c1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateReceipt(&tt.receipt)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateReceipt() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
