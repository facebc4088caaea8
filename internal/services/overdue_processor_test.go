package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger/internal/core"
)

func TestDefaultOverdueProcessorConfig(t *testing.T) {
	if got := DefaultOverdueProcessorConfig().Interval; got != time.Hour {
		t.Errorf("expected Interval 1h, got %v", got)
	}
	if got := NewOverdueProcessor(nil, OverdueProcessorConfig{}).config.Interval; got != time.Hour {
		t.Errorf("zero interval should fall back to 1h, got %v", got)
	}
}

func TestOverdueProcessor_ProcessOverdue(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	cash := env.account(t, "Cash", 0)
	fee := env.fee(t, "", 300000, 3) // due Apr 15, May 15, Jun 15
	_, err := env.pay(cash.ID, fee.Installments[0].ID, 100000, core.Date{})
	require.NoError(t, err)
	_, err = env.pay(cash.ID, fee.Installments[1].ID, 100, core.Date{})
	require.NoError(t, err)

	cancelled := env.fee(t, "", 10000, 1)
	_, err = env.fees.CancelStudentFee(ctx, principal, cancelled.ID, CancelStudentFeeInput{})
	require.NoError(t, err)

	p := NewOverdueProcessor(env.repo, DefaultOverdueProcessorConfig())

	n, err := p.ProcessOverdue(ctx, time.Date(2025, 4, 15, 23, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n, "due today is not overdue yet")

	n, err = p.ProcessOverdue(ctx, time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, core.InstallmentPaid, env.installment(t, fee.Installments[0].ID).Status)
	assert.Equal(t, core.InstallmentOverdue, env.installment(t, fee.Installments[1].ID).Status)
	assert.Equal(t, core.InstallmentPending, env.installment(t, fee.Installments[2].ID).Status)
	assert.Equal(t, core.InstallmentCancelled, env.installment(t, cancelled.Installments[0].ID).Status)

	// An overdue installment can still be paid off.
	r, err := env.pay(cash.ID, fee.Installments[1].ID, 99900, core.Date{})
	require.NoError(t, err)
	assert.Equal(t, core.InstallmentPaid, r.Installment.Status)
}

func TestOverdueProcessor_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	p := NewOverdueProcessor(env.repo, OverdueProcessorConfig{Interval: 10 * time.Millisecond})

	if p.IsRunning() {
		t.Fatal("processor should not be running initially")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop on idle processor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx), "second start should fail")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
}
