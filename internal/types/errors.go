package types

import "errors"

// Sentinel errors for invoicer storage operations.
var (
	// ErrUnsupportedEngine indicates the configured database engine is unknown.
	ErrUnsupportedEngine = errors.New("unsupported database engine")

	// ErrAlreadyConnected indicates Connect was called on a connected Manager.
	ErrAlreadyConnected = errors.New("database already connected")

	// ErrNotConnected indicates an operation requires a live connection.
	ErrNotConnected = errors.New("database not connected")

	// ErrBackupUnsupported indicates online backup is not available for the engine.
	ErrBackupUnsupported = errors.New("backup not supported for this engine")

	// ErrMigrationNotFound indicates no discovered migration matches the version.
	ErrMigrationNotFound = errors.New("migration not found")

	// ErrMigrationNotApplied indicates a rollback target has never been applied.
	ErrMigrationNotApplied = errors.New("migration not applied")

	// ErrNoReverseScript indicates a rollback target has no down script.
	ErrNoReverseScript = errors.New("migration has no reverse script")

	// ErrSellerProfileMissing indicates receipts were imported without a seller profile.
	ErrSellerProfileMissing = errors.New("seller profile must exist before importing receipts")
)
