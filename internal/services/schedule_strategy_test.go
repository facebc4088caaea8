package services

import (
	"testing"

	"feeledger/internal/core"
)

func TestMonthSchedule_DueDate(t *testing.T) {
	tests := []struct {
		name   string
		months int
		first  core.Date
		n      int
		want   string
	}{
		{"first installment", 1, core.NewDate(2025, 1, 15), 0, "2025-01-15"},
		{"next month", 1, core.NewDate(2025, 1, 15), 1, "2025-02-15"},
		{"clamps to end of february", 1, core.NewDate(2025, 1, 31), 1, "2025-02-28"},
		{"leap year february", 1, core.NewDate(2024, 1, 31), 1, "2024-02-29"},
		{"returns to day 31 after short month", 1, core.NewDate(2025, 1, 31), 2, "2025-03-31"},
		{"crosses the year", 1, core.NewDate(2025, 11, 30), 3, "2026-02-28"},
		{"quarterly", 3, core.NewDate(2025, 1, 31), 1, "2025-04-30"},
		{"yearly from leap day", 12, core.NewDate(2024, 2, 29), 1, "2025-02-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthSchedule{Months: tt.months}.DueDate(tt.first, tt.n)
			if got.String() != tt.want {
				t.Errorf("DueDate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWeeklySchedule_DueDate(t *testing.T) {
	got := WeeklySchedule{}.DueDate(core.NewDate(2025, 12, 24), 2)
	if got.String() != "2026-01-07" {
		t.Errorf("DueDate() = %s, want 2026-01-07", got)
	}
}

func TestBuildSchedule(t *testing.T) {
	t.Run("defaults to monthly", func(t *testing.T) {
		dates, err := BuildSchedule(core.NewDate(2025, 9, 1), 3, "")
		if err != nil {
			t.Fatalf("BuildSchedule() error = %v", err)
		}
		want := []string{"2025-09-01", "2025-10-01", "2025-11-01"}
		for i, d := range dates {
			if d.String() != want[i] {
				t.Errorf("dates[%d] = %s, want %s", i, d, want[i])
			}
		}
	})

	t.Run("unknown frequency", func(t *testing.T) {
		if _, err := BuildSchedule(core.NewDate(2025, 9, 1), 3, "daily"); err == nil {
			t.Error("expected error for unknown frequency")
		}
	})
}

func TestGetScheduleStrategy(t *testing.T) {
	for _, f := range []Frequency{Weekly, Monthly, Quarterly, Yearly} {
		if _, err := GetScheduleStrategy(f); err != nil {
			t.Errorf("GetScheduleStrategy(%s) error = %v", f, err)
		}
	}
}
