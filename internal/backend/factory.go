package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	ports "fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
)

var _ ports.Store = (*storage.SQLiteRepository)(nil)
var _ ports.Store = (*memory.Store)(nil)
var _ Factory = (*DefaultFactory)(nil)

// SheetReaderFunc opens the spreadsheet ledger for the sheets backend.
type SheetReaderFunc func(ctx context.Context, opts gsheet.Options) (ports.LedgerReader, error)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger     *slog.Logger
	openSheet  SheetReaderFunc
	dialEvents func(url, exchange, queue string) (services.EventPublisher, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(applog.FieldComponent, applog.ComponentBackend),
		openSheet: func(ctx context.Context, opts gsheet.Options) (ports.LedgerReader, error) {
			return gsheet.New(ctx, opts)
		},
		dialEvents: func(url, exchange, queue string) (services.EventPublisher, error) {
			return amqp.NewClient(url, exchange, queue)
		},
	}
}

// WithSheetReader replaces how the sheets backend reaches the spreadsheet.
func (f *DefaultFactory) WithSheetReader(open SheetReaderFunc) *DefaultFactory {
	f.openSheet = open
	return f
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store ports.Store
		err   error
	)
	switch config.Type {
	case SQLiteBackend:
		store, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		store, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		store = f.createMemoryBackend(config)
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	publisher := f.createPublisher(config)
	return &BackendResult{
		Backend:   store,
		Publisher: publisher,
		Cleanup: func() error {
			var errs []error
			if publisher != nil {
				if err := publisher.Close(); err != nil {
					errs = append(errs, fmt.Errorf("publisher: %w", err))
				}
			}
			if err := store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("store: %w", err))
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (ports.Store, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", repo.SchemaVersion())
	return repo, nil
}

// createSheetsBackend reads the spreadsheet once into a memory store. The
// spreadsheet is never written; new transactions live in memory only.
func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (ports.Store, error) {
	reader, err := f.openSheet(ctx, gsheet.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	ledger, err := reader.Ledger(ctx)
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet ledger: %w", err)
	}

	store := memory.NewFromFiles(dataDir(config))
	n, err := store.Import(ctx, ledger)
	if err != nil {
		return nil, fmt.Errorf("import spreadsheet ledger: %w", err)
	}
	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"imported", n)
	return store, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) ports.Store {
	dir := dataDir(config)
	store := memory.NewFromFiles(dir)
	f.logger.Info("Initialized memory backend", "data_directory", dir)
	return store
}

// createPublisher connects to the broker when configured. A broker that is
// down at startup disables events rather than failing the backend.
func (f *DefaultFactory) createPublisher(config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	pub, err := f.dialEvents(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		return nil
	}
	f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange, "queue", config.AMQPQueue)
	return pub
}

func dataDir(config Config) string {
	if config.DataDirectory == "" {
		return "data"
	}
	return config.DataDirectory
}
