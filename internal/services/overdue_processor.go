package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feeledger/internal/core"
	"feeledger/internal/storage"
)

// OverdueProcessorConfig holds configuration for the overdue sweep.
type OverdueProcessorConfig struct {
	// Interval is how often installments are checked (default: 1h).
	Interval time.Duration
}

func DefaultOverdueProcessorConfig() OverdueProcessorConfig {
	return OverdueProcessorConfig{Interval: time.Hour}
}

// OverdueProcessor periodically marks unpaid installments past their due
// date as overdue, across all organizations.
type OverdueProcessor struct {
	storage *storage.SQLiteRepository
	config  OverdueProcessorConfig
	now     func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewOverdueProcessor(storage *storage.SQLiteRepository, config OverdueProcessorConfig) *OverdueProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultOverdueProcessorConfig().Interval
	}
	return &OverdueProcessor{storage: storage, config: config, now: time.Now}
}

// ProcessOverdue runs one sweep as of now and returns how many
// installments became overdue.
func (p *OverdueProcessor) ProcessOverdue(ctx context.Context, now time.Time) (int64, error) {
	today := core.DateOf(now.UTC())
	var n int64
	err := p.storage.WithTx(ctx, func(q *storage.Queries) (err error) {
		n, err = q.MarkOverdueInstallments(ctx, today)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("mark overdue installments: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Installments marked overdue", "count", n, "as_of", today.String())
	}
	return n, nil
}

// Start begins the sweep loop. Returns an error if already running.
func (p *OverdueProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("overdue processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Overdue processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current sweep to finish.
func (p *OverdueProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Overdue processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Overdue processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *OverdueProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *OverdueProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.sweep(ctx)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *OverdueProcessor) sweep(ctx context.Context) {
	if _, err := p.ProcessOverdue(ctx, p.now()); err != nil {
		slog.ErrorContext(ctx, "Overdue sweep failed", "error", err)
	}
}
