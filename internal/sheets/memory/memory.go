package memory

import (
	"context"
	"fmt"
	"sync"

	"feeledger/internal/core"
	ports "feeledger/internal/sheets"
)

// Store keeps exported rows in memory. Receipts are keyed by kind and
// reference so a redelivered event appends nothing.
type Store struct {
	mu       sync.Mutex
	receipts []ports.ReceiptRow
	seen     map[string]int
	reports  map[string]ports.YearReport
}

var (
	_ ports.ReceiptWriter = (*Store)(nil)
	_ ports.ReportWriter  = (*Store)(nil)
)

func New() *Store {
	return &Store{
		seen:    make(map[string]int),
		reports: make(map[string]ports.YearReport),
	}
}

// AppendReceipt stores the row and returns a synthetic row reference.
func (s *Store) AppendReceipt(_ context.Context, r ports.ReceiptRow) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(r.Kind) + ":" + r.Reference
	if n, ok := s.seen[key]; ok {
		return fmt.Sprintf("mem:%d", n), nil
	}
	s.receipts = append(s.receipts, r)
	s.seen[key] = len(s.receipts)
	return fmt.Sprintf("mem:%d", len(s.receipts)), nil
}

func (s *Store) WriteYearReport(_ context.Context, r ports.YearReport) (string, error) {
	if r.OrganizationID == "" {
		return "", fmt.Errorf("report has no organization")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reportKey(r.OrganizationID, r.Summary.Year)
	r.Trends = append([]core.MonthTrend(nil), r.Trends...)
	s.reports[key] = r
	return "mem:" + key, nil
}

// Receipts returns a copy of the journal in append order.
func (s *Store) Receipts() []ports.ReceiptRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.ReceiptRow(nil), s.receipts...)
}

// Report returns the last report written for the organization and year.
func (s *Store) Report(orgID string, year int) (ports.YearReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[reportKey(orgID, year)]
	return r, ok
}

func reportKey(orgID string, year int) string {
	return fmt.Sprintf("%s/%d", orgID, year)
}
