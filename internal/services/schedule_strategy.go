// Package services holds the ledger operations and their orchestration.
//
// This file implements the strategies that spread installment due dates
// over time. Each frequency has its own strategy; month based schedules
// clamp to the last day of shorter months.
package services

import (
	"fmt"
	"time"

	"feeledger/internal/core"
)

type Frequency string

const (
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Yearly    Frequency = "yearly"
)

// ScheduleStrategy computes the due date of the n-th installment (zero based)
// of a schedule starting at first.
type ScheduleStrategy interface {
	DueDate(first core.Date, n int) core.Date
}

// WeeklySchedule spaces installments seven days apart.
type WeeklySchedule struct{}

func (WeeklySchedule) DueDate(first core.Date, n int) core.Date {
	return core.Date{Time: first.AddDate(0, 0, 7*n)}
}

// MonthSchedule spaces installments Months apart on the day of month of the
// first due date, or the last day of the month when that day does not exist.
type MonthSchedule struct {
	Months int
}

func (s MonthSchedule) DueDate(first core.Date, n int) core.Date {
	return addMonthsClamped(first, s.Months*n)
}

func addMonthsClamped(d core.Date, months int) core.Date {
	start := time.Date(d.Year(), time.Month(d.Month())+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	lastDay := start.AddDate(0, 1, -1).Day()
	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(start.Year(), int(start.Month()), day)
}

var scheduleStrategies = map[Frequency]ScheduleStrategy{
	Weekly:    WeeklySchedule{},
	Monthly:   MonthSchedule{Months: 1},
	Quarterly: MonthSchedule{Months: 3},
	Yearly:    MonthSchedule{Months: 12},
}

// GetScheduleStrategy returns the strategy for a frequency.
func GetScheduleStrategy(f Frequency) (ScheduleStrategy, error) {
	s, ok := scheduleStrategies[f]
	if !ok {
		return nil, fmt.Errorf("unknown schedule frequency: %s", f)
	}
	return s, nil
}

// BuildSchedule returns n due dates starting at first.
func BuildSchedule(first core.Date, n int, f Frequency) ([]core.Date, error) {
	if f == "" {
		f = Monthly
	}
	strategy, err := GetScheduleStrategy(f)
	if err != nil {
		return nil, err
	}
	dates := make([]core.Date, n)
	for i := range dates {
		dates[i] = strategy.DueDate(first, i)
	}
	return dates, nil
}
