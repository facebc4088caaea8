package backend

import (
	"context"
	"time"

	"feeledger/internal/amqp"
	"feeledger/internal/cache"
	"feeledger/internal/services"
	"feeledger/internal/sheets"
	gsheet "feeledger/internal/sheets/google"
	"feeledger/internal/storage"
)

// Ledger bundles the store, the services over it and the optional outlets
// for ledger events and exports.
type Ledger struct {
	Repo *storage.SQLiteRepository

	Accounts     *services.AccountService
	Catalog      *services.CatalogService
	Fees         *services.FeeService
	Transactions *services.TransactionService
	Reports      *services.ReportService

	// Events is nil when no broker is configured.
	Events *amqp.Client

	Receipts sheets.ReceiptWriter
	Exports  sheets.ReportWriter

	caches *cache.Manager
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the ledger and the function releasing it.
type BackendResult struct {
	Ledger  *Ledger
	Cleanup CleanupFunc
}

// Factory creates ledgers based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for ledger creation
type Config struct {
	Type BackendType

	SQLiteDBPath  string
	DBBusyTimeout time.Duration

	DefaultCurrency  string
	CatalogCacheSize int
	CatalogCacheTTL  time.Duration

	// AMQP is optional; an empty URL disables ledger events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sheets is used when SheetsEnabled; otherwise exports stay in memory.
	SheetsEnabled bool
	Sheets        gsheet.Config
}

// BackendType represents the type of store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
