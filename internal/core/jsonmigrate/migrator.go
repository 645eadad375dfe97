package jsonmigrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/mfrits/invoicer/internal/core/config"
	"github.com/mfrits/invoicer/internal/core/db"
	"github.com/mfrits/invoicer/internal/types"
)

// Report accumulates the outcome of one import run: what succeeded, what was
// skipped, and why. Non-fatal problems land here instead of aborting the run.
type Report struct {
	RunID     types.ImportRunID `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Processed int               `json:"processed"`
	Skipped   int               `json:"skipped"`
	Imported  map[string]int    `json:"imported"`
	Warnings  []string          `json:"warnings"`
}

func (r *Report) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) skip(format string, args ...interface{}) {
	r.Skipped++
	r.warnf(format, args...)
}

// sources holds the decoded legacy documents for one run.
type sources struct {
	Seller    *types.SellerProfile
	Customers []types.Customer
	Products  []types.Product
	Receipts  []ReceiptRecord
}

// Migrator performs the one-time bulk import of legacy JSON records.
// All writes flow through the Manager's transaction helper; the Migrator
// never opens its own connection.
type Migrator struct {
	mgr     *db.Manager
	queries *db.Queries
	cfg     config.ImportConfig
	logger  zerolog.Logger
}

// New creates a Migrator. The target schema must already exist.
func New(mgr *db.Manager, queries *db.Queries, cfg config.ImportConfig, logger zerolog.Logger) *Migrator {
	return &Migrator{
		mgr:     mgr,
		queries: queries,
		cfg:     cfg,
		logger:  logger.With().Str("component", "jsonmigrate").Logger(),
	}
}

// Run imports the four legacy record families inside one transaction, in
// mandatory order: seller profile, customers, products, receipts.
//
// Per-record validation failures are skipped with a warning; any family-level
// failure (unreadable document, SQL error) rolls everything back. The
// returned Report is valid even when an error is returned.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		RunID:     types.NewImportRunID(),
		StartedAt: time.Now().UTC(),
		Imported:  make(map[string]int),
	}

	m.backupSources(rep)

	src, err := m.loadSources(rep)
	if err != nil {
		return rep, err
	}

	err = m.mgr.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := m.importSeller(tx, src, rep); err != nil {
			return err
		}
		customerIDs, err := m.importCustomers(tx, src, rep)
		if err != nil {
			return err
		}
		productIDs, err := m.importProducts(tx, src, rep)
		if err != nil {
			return err
		}
		return m.importReceipts(tx, src, rep, customerIDs, productIDs)
	})

	rep.Duration = time.Since(rep.StartedAt)

	if err != nil {
		return rep, fmt.Errorf("legacy import aborted, nothing committed: %w", err)
	}

	m.logger.Info().
		Str("run_id", string(rep.RunID)).
		Int("processed", rep.Processed).
		Int("skipped", rep.Skipped).
		Dur("duration", rep.Duration).
		Msg("legacy import committed")
	return rep, nil
}

// backupSources copies each present source file into the backup directory
// with a timestamp suffix. Best-effort: failures are warnings, never fatal.
func (m *Migrator) backupSources(rep *Report) {
	stamp := time.Now().UTC().Format("20060102T150405")
	for _, name := range []string{sellerFile, customersFile, productsFile, receiptsFile} {
		srcPath := filepath.Join(m.cfg.SourceDir, name)
		if _, err := os.Stat(srcPath); err != nil {
			continue
		}
		destPath := filepath.Join(m.cfg.BackupDir, fmt.Sprintf("%s.%s.bak", name, stamp))
		if err := copyFile(srcPath, destPath); err != nil {
			rep.warnf("backup of %s failed: %v", name, err)
			m.logger.Warn().Err(err).Str("file", name).Msg("source backup failed")
		}
	}
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// loadSources decodes the four legacy documents. A missing file means an
// absent family (warning); an unreadable or malformed file is a family-level
// failure that aborts the import before any write.
func (m *Migrator) loadSources(rep *Report) (*sources, error) {
	src := &sources{}

	seller := &types.SellerProfile{}
	ok, err := m.readJSON(sellerFile, seller, rep)
	if err != nil {
		return nil, err
	}
	if ok {
		src.Seller = seller
	}

	if _, err := m.readJSON(customersFile, &src.Customers, rep); err != nil {
		return nil, err
	}
	if _, err := m.readJSON(productsFile, &src.Products, rep); err != nil {
		return nil, err
	}
	if _, err := m.readJSON(receiptsFile, &src.Receipts, rep); err != nil {
		return nil, err
	}

	return src, nil
}

// readJSON decodes one source document into dest. Returns false when the file
// does not exist.
func (m *Migrator) readJSON(name string, dest interface{}, rep *Report) (bool, error) {
	path := filepath.Join(m.cfg.SourceDir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		rep.warnf("source file %s not found, family skipped", name)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decoding %s: %w", name, err)
	}
	return true, nil
}

// importSeller upserts the singleton seller profile. Running the import twice
// converges to exactly one profile row.
func (m *Migrator) importSeller(tx *sqlx.Tx, src *sources, rep *Report) error {
	if src.Seller == nil {
		return nil
	}
	rep.Processed++

	if src.Seller.Name == "" {
		rep.skip("seller profile has no name, skipped")
		src.Seller = nil
		return nil
	}

	s := src.Seller
	if _, err := m.queries.ExecTx(tx, "upsert-seller-profile",
		s.Name, s.TaxID, s.Email, s.Phone, s.Address); err != nil {
		return fmt.Errorf("seller profile: %w", err)
	}
	rep.Imported["seller_profile"] = 1
	return nil
}

func (m *Migrator) importCustomers(tx *sqlx.Tx, src *sources, rep *Report) (map[string]bool, error) {
	ids := make(map[string]bool, len(src.Customers))
	for i := range src.Customers {
		c := &src.Customers[i]
		rep.Processed++

		if err := validateCustomer(c); err != nil {
			rep.skip("customer skipped: %v", err)
			continue
		}
		if ids[c.ID] {
			rep.skip("customer %s skipped: duplicate id", c.ID)
			continue
		}

		if _, err := m.queries.ExecTx(tx, "insert-customer",
			c.ID, c.Type, c.FirstName, c.LastName, c.BusinessName,
			c.TaxID, c.Email, c.Phone, c.Address); err != nil {
			return nil, fmt.Errorf("customer %s: %w", c.ID, err)
		}
		ids[c.ID] = true
		rep.Imported["customers"]++
	}
	return ids, nil
}

func (m *Migrator) importProducts(tx *sqlx.Tx, src *sources, rep *Report) (map[string]bool, error) {
	ids := make(map[string]bool, len(src.Products))
	for i := range src.Products {
		p := &src.Products[i]
		rep.Processed++

		if err := validateProduct(p); err != nil {
			rep.skip("product skipped: %v", err)
			continue
		}
		if ids[p.ID] {
			rep.skip("product %s skipped: duplicate id", p.ID)
			continue
		}

		if _, err := m.queries.ExecTx(tx, "insert-product",
			p.ID, p.Name, p.Description, p.UnitPrice, p.TaxApplicable); err != nil {
			return nil, fmt.Errorf("product %s: %w", p.ID, err)
		}
		ids[p.ID] = true
		rep.Imported["products"]++
	}
	return ids, nil
}

// importReceipts writes receipts and their line items. The seller profile
// must exist first because every receipt embeds a seller snapshot. A receipt
// referencing an unknown customer is skipped; line items referencing unknown
// products are dropped, and a receipt losing all its items is skipped.
func (m *Migrator) importReceipts(tx *sqlx.Tx, src *sources, rep *Report, customerIDs, productIDs map[string]bool) error {
	if len(src.Receipts) == 0 {
		return nil
	}

	var sellerCount int
	if err := m.queries.GetTx(tx, "count-seller-profile", &sellerCount); err != nil {
		return fmt.Errorf("checking seller profile: %w", err)
	}
	if sellerCount == 0 {
		return types.ErrSellerProfileMissing
	}

	for i := range src.Receipts {
		r := &src.Receipts[i]
		rep.Processed++

		if err := validateReceipt(r); err != nil {
			rep.skip("receipt skipped: %v", err)
			continue
		}
		if !m.rowExists(tx, "exists-customer", r.CustomerID, customerIDs) {
			rep.skip("receipt %s skipped: unknown customer %s", r.ID, r.CustomerID)
			continue
		}

		purchaseDate, err := parsePurchaseDate(r.PurchaseDate)
		if err != nil {
			rep.skip("receipt %s skipped: %v", r.ID, err)
			continue
		}

		items := make([]LineItemRecord, 0, len(r.LineItems))
		for _, item := range r.LineItems {
			if item.ProductID == "" || !m.rowExists(tx, "exists-product", item.ProductID, productIDs) {
				rep.warnf("receipt %s: line item dropped, unknown product %q", r.ID, item.ProductID)
				continue
			}
			if item.Quantity <= 0 {
				rep.warnf("receipt %s: line item dropped, non-positive quantity", r.ID)
				continue
			}
			items = append(items, item)
		}
		if len(items) == 0 {
			rep.skip("receipt %s skipped: no valid line items", r.ID)
			continue
		}

		if _, err := m.queries.ExecTx(tx, "insert-receipt",
			r.ID, r.CustomerID, purchaseDate.UTC().Format(time.RFC3339),
			r.Subtotal, r.TaxAmount, r.Total, r.TaxInvoice,
			snapshotJSON(r.Seller), snapshotJSON(r.Customer)); err != nil {
			return fmt.Errorf("receipt %s: %w", r.ID, err)
		}

		for _, item := range items {
			id := item.ID
			if id == "" {
				id = string(types.NewLineItemID())
			}
			if _, err := m.queries.ExecTx(tx, "insert-line-item",
				id, r.ID, item.ProductID, item.Description,
				item.UnitPrice, item.Quantity, item.Total); err != nil {
				return fmt.Errorf("receipt %s line item: %w", r.ID, err)
			}
		}
		rep.Imported["receipts"]++
		rep.Imported["receipt_line_items"] += len(items)
	}

	return nil
}

// rowExists consults the ids imported in this run first, falling back to a
// lookup inside the transaction for rows that predate the import.
func (m *Migrator) rowExists(tx *sqlx.Tx, query, id string, imported map[string]bool) bool {
	if imported[id] {
		return true
	}
	var count int
	if err := m.queries.GetTx(tx, query, &count, id); err != nil {
		return false
	}
	return count > 0
}

// snapshotJSON normalizes an embedded snapshot for storage. Empty snapshots
// become an empty object so the column stays valid JSON.
func snapshotJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// ValidateMigration reports read-only row counts per target table and warns
// when a table holds fewer rows than this run claims to have imported. The
// comparison is advisory: mismatches are logged, never returned as errors.
func (m *Migrator) ValidateMigration(ctx context.Context, rep *Report) (map[string]int, error) {
	counts := make(map[string]int)
	tables := map[string]string{
		"seller_profile":     "count-seller-profile",
		"customers":          "count-customers",
		"products":           "count-products",
		"receipts":           "count-receipts",
		"receipt_line_items": "count-line-items",
	}

	for table, query := range tables {
		var n int
		if err := m.queries.GetContext(ctx, query, &n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		counts[table] = n
		m.logger.Info().Str("table", table).Int("rows", n).Msg("post-import row count")

		if rep != nil && n < rep.Imported[table] {
			m.logger.Warn().
				Str("table", table).
				Int("rows", n).
				Int("imported", rep.Imported[table]).
				Msg("table holds fewer rows than imported this run")
		}
	}

	return counts, nil
}
