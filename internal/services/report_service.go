package services

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"feeledger/internal/core"
	"feeledger/internal/storage"
)

const (
	// FeeIncomeBucket collects fee payment income in the category breakdown.
	FeeIncomeBucket = "Eğitim Hizmetleri"
	// UncategorisedBucket collects entries without a category.
	UncategorisedBucket = "Other"
)

// ReportService computes read-only aggregates over one calendar year.
type ReportService struct {
	storage *storage.SQLiteRepository
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage}
}

func yearRange(year int) (core.Date, core.Date, error) {
	if year < 1900 || year > 9999 {
		return core.Date{}, core.Date{}, core.Invalid("year", "year must be between 1900 and 9999")
	}
	return core.NewDate(year, 1, 1), core.NewDate(year+1, 1, 1), nil
}

// FinancialSummary totals income, expenses and fee collection for year.
func (s *ReportService) FinancialSummary(ctx context.Context, p core.Principal, year int) (core.FinancialSummary, error) {
	if err := p.Validate(); err != nil {
		return core.FinancialSummary{}, core.NewValidationError(err)
	}
	from, to, err := yearRange(year)
	if err != nil {
		return core.FinancialSummary{}, err
	}

	q := s.storage.Queries()
	var (
		manualIncome, feeIncome, expense core.Money
		installments                     []storage.InstallmentTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		manualIncome, err = q.SumTransactions(gctx, p.OrganizationID, core.Income, from, to, true)
		return err
	})
	g.Go(func() (err error) {
		feeIncome, err = q.SumFeePayments(gctx, p.OrganizationID, from, to)
		return err
	})
	g.Go(func() (err error) {
		expense, err = q.SumTransactions(gctx, p.OrganizationID, core.Expense, from, to, false)
		return err
	})
	g.Go(func() (err error) {
		installments, err = q.InstallmentTotals(gctx, p.OrganizationID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.FinancialSummary{}, fmt.Errorf("financial summary: %w", err)
	}

	sum := core.FinancialSummary{
		Year:         year,
		TotalIncome:  manualIncome.Add(feeIncome),
		TotalExpense: expense,
		FeeIncome:    feeIncome,
	}
	sum.NetIncome = sum.TotalIncome.Sub(sum.TotalExpense)
	for _, t := range installments {
		switch t.Status {
		case core.InstallmentPaid:
			sum.CollectedAmount = sum.CollectedAmount.Add(t.Paid)
		case core.InstallmentPending, core.InstallmentPartial:
			sum.PendingAmount = sum.PendingAmount.Add(t.Amount.Sub(t.Paid))
		case core.InstallmentOverdue:
			sum.OverdueAmount = sum.OverdueAmount.Add(t.Amount.Sub(t.Paid))
		}
	}
	sum.CollectionRate = core.CollectionRate(sum.CollectedAmount, sum.PendingAmount, sum.OverdueAmount)
	return sum, nil
}

// MonthlyTrends returns twelve monthly buckets of income and expense.
// Fee payments count as income in the month they were received.
func (s *ReportService) MonthlyTrends(ctx context.Context, p core.Principal, year int) ([]core.MonthTrend, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	from, to, err := yearRange(year)
	if err != nil {
		return nil, err
	}

	q := s.storage.Queries()
	var manual, payments []storage.MonthAmount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		manual, err = q.MonthlyTransactionTotals(gctx, p.OrganizationID, from, to)
		return err
	})
	g.Go(func() (err error) {
		payments, err = q.MonthlyFeePayments(gctx, p.OrganizationID, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("monthly trends: %w", err)
	}

	trends := make([]core.MonthTrend, 12)
	for i := range trends {
		trends[i].Month = i + 1
	}
	for _, m := range append(manual, payments...) {
		if m.Month < 1 || m.Month > 12 {
			continue
		}
		b := &trends[m.Month-1]
		if m.Type == core.Expense {
			b.Expense = b.Expense.Add(m.Amount)
		} else {
			b.Income = b.Income.Add(m.Amount)
		}
	}
	return trends, nil
}

// CategoryDistribution breaks the year's entries of one type down by
// category, largest first, with each bucket's share of the total. Income
// includes one bucket for fee payments. No data gives an empty list.
func (s *ReportService) CategoryDistribution(ctx context.Context, p core.Principal, typ core.EntryType, year int) ([]core.CategoryShare, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	if !typ.Valid() {
		return nil, core.Invalid("type", "type must be one of [income expense]")
	}
	from, to, err := yearRange(year)
	if err != nil {
		return nil, err
	}

	q := s.storage.Queries()
	amounts, err := q.CategoryTotals(ctx, p.OrganizationID, typ, from, to)
	if err != nil {
		return nil, fmt.Errorf("category distribution: %w", err)
	}
	if typ == core.Income {
		fees, err := q.SumFeePayments(ctx, p.OrganizationID, from, to)
		if err != nil {
			return nil, fmt.Errorf("category distribution: %w", err)
		}
		amounts = append(amounts, core.CategoryAmount{Name: FeeIncomeBucket, Amount: fees})
	}
	return shares(amounts), nil
}

func shares(amounts []core.CategoryAmount) []core.CategoryShare {
	var total core.Money
	kept := make([]core.CategoryAmount, 0, len(amounts))
	for _, a := range amounts {
		if !a.Amount.IsPositive() {
			continue
		}
		if a.Name == "" {
			a.Name = UncategorisedBucket
		}
		total = total.Add(a.Amount)
		kept = append(kept, a)
	}

	out := make([]core.CategoryShare, 0, len(kept))
	if total.IsZero() {
		return out
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Amount.Cents > kept[j].Amount.Cents })
	for _, a := range kept {
		out = append(out, core.CategoryShare{
			CategoryAmount: a,
			Percentage:     core.Percentage(a.Amount, total),
		})
	}
	return out
}

// OverdueInstallments lists unpaid installments due before today, oldest first.
func (s *ReportService) OverdueInstallments(ctx context.Context, p core.Principal, today core.Date) ([]core.OverdueInstallment, error) {
	if err := p.Validate(); err != nil {
		return nil, core.NewValidationError(err)
	}
	rows, err := s.storage.Queries().OverdueInstallmentRows(ctx, p.OrganizationID, today)
	if err != nil {
		return nil, fmt.Errorf("overdue installments: %w", err)
	}
	out := make([]core.OverdueInstallment, 0, len(rows))
	for _, o := range rows {
		o.Remaining = o.Installment.Remaining()
		o.DaysOverdue = o.DueDate.DaysSince(today)
		out = append(out, o)
	}
	return out, nil
}
