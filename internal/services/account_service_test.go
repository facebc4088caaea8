package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feeledger/internal/core"
)

func TestAccountService_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	a, err := env.accounts.CreateAccount(ctx, principal, CreateAccountInput{
		Name: " Main bank ", Type: core.AccountBank, OpeningBalance: core.Money{Cents: 250000},
	})
	require.NoError(t, err)
	assert.Equal(t, "Main bank", a.Name)
	assert.Equal(t, "TRY", a.Currency)
	assert.Equal(t, a.OpeningBalance, a.Balance)
	assert.True(t, a.IsActive)

	name, currency := "POS terminal", "eur"
	typ := core.AccountPOS
	updated, err := env.accounts.UpdateAccount(ctx, principal, a.ID, UpdateAccountInput{Name: &name, Type: &typ, Currency: &currency})
	require.NoError(t, err)
	assert.Equal(t, "POS terminal", updated.Name)
	assert.Equal(t, core.AccountPOS, updated.Type)
	assert.Equal(t, "EUR", updated.Currency)
	assert.Equal(t, int64(250000), updated.Balance.Cents)

	env.account(t, "Petty cash", 0)
	list, err := env.accounts.ListAccounts(ctx, principal)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)

	_, err = env.accounts.CreateAccount(ctx, principal, CreateAccountInput{Name: "Safe", Type: "vault"})
	assert.True(t, isValidation(err))

	_, err = env.accounts.GetAccount(ctx, outsider, a.ID)
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestAccountService_DeleteGuard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	used := env.account(t, "Cash", 0)
	unused := env.account(t, "Spare", 0)
	fee := env.fee(t, "", 10000, 1)
	_, err := env.pay(used.ID, fee.Installments[0].ID, 5000, core.Date{})
	require.NoError(t, err)

	err = env.accounts.DeleteAccount(ctx, principal, used.ID)
	var re *core.ReferencedEntityError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Error(), "1 transactions and 1 fee payments")
	assert.Contains(t, re.Error(), "deactivate it instead")

	require.NoError(t, env.accounts.DeleteAccount(ctx, principal, unused.ID))
	_, err = env.accounts.GetAccount(ctx, principal, unused.ID)
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
