package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feeledger/internal/amqp"
	"feeledger/internal/cache"
	"feeledger/internal/core"
	"feeledger/internal/services"
	gsheet "feeledger/internal/sheets/google"
	"feeledger/internal/sheets/memory"
	"feeledger/internal/storage"
)

// memoryDBName names the shared in-memory database of the memory backend.
const memoryDBName = "feeledger"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the store, wires the services and connects the
// optional event broker and spreadsheet. A broker that cannot be reached is
// logged and skipped; a spreadsheet that cannot be reached is an error.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.openRepository(config)
	if err != nil {
		return nil, err
	}

	ledger := &Ledger{Repo: repo}
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
		} else {
			ledger.Events = client
			publisher = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	if config.SheetsEnabled {
		client, err := gsheet.New(ctx, config.Sheets)
		if err != nil {
			_ = closeAll(ledger)
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		ledger.Receipts, ledger.Exports = client, client
		f.logger.Info("Initialized Google Sheets export", "spreadsheet_id", config.Sheets.SpreadsheetID)
	} else {
		store := memory.New()
		ledger.Receipts, ledger.Exports = store, store
	}

	var catalogCache cache.Cache[[]core.Service]
	if config.CatalogCacheSize > 0 && config.CatalogCacheTTL > 0 {
		lru := cache.NewLRUCache[[]core.Service](config.CatalogCacheSize, config.CatalogCacheTTL)
		ledger.caches = cache.NewManager()
		ledger.caches.Register(lru)
		ledger.caches.StartCleanup(config.CatalogCacheTTL)
		catalogCache = lru
	}
	ledger.Accounts = services.NewAccountService(repo, config.DefaultCurrency)
	ledger.Catalog = services.NewCatalogService(repo, catalogCache)
	ledger.Fees = services.NewFeeService(repo, publisher)
	ledger.Transactions = services.NewTransactionService(repo)
	ledger.Reports = services.NewReportService(repo)

	f.logger.Info("Initialized ledger backend",
		"backend", config.Type,
		"amqp_enabled", ledger.Events != nil,
		"sheets_enabled", config.SheetsEnabled)

	return &BackendResult{
		Ledger:  ledger,
		Cleanup: func() error { return closeAll(ledger) },
	}, nil
}

func (f *DefaultFactory) openRepository(config Config) (*storage.SQLiteRepository, error) {
	opts := storage.Options{BusyTimeout: config.DBBusyTimeout}
	switch config.Type {
	case MemoryBackend:
		repo, err := storage.NewMemoryRepository(memoryDBName, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize in-memory repository: %w", err)
		}
		f.logger.Info("Initialized in-memory store")
		return repo, nil
	default:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return repo, nil
	}
}

func closeAll(l *Ledger) error {
	var errs []error
	if l.caches != nil {
		l.caches.Stop()
	}
	if l.Events != nil {
		errs = append(errs, l.Events.Close())
	}
	if l.Repo != nil {
		errs = append(errs, l.Repo.Close())
	}
	return errors.Join(errs...)
}
