package vault_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketvault/ledger-engine/ledger"
	"github.com/pocketvault/ledger-engine/vault"
)

func TestAddBank_FirstIsDefault(t *testing.T) {
	// GIVEN: No registered banks
	// WHEN: Adding two accounts
	// THEN: The first is the default, the second is not

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	first, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "First National", AccountNumber: "0123456789",
	})
	require.NoError(t, err)
	assert.True(t, first.IsDefault)

	second, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "Second City", AccountNumber: "9876543210",
	})
	require.NoError(t, err)
	assert.False(t, second.IsDefault)

	def, err := h.Banks.DefaultBank(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, first.ID, def.ID)
}

func TestAddBank_SetDefaultDisplacesPrevious(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	first, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "First National", AccountNumber: "0123456789",
	})
	require.NoError(t, err)

	second, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "Second City", AccountNumber: "9876543210", SetDefault: true,
	})
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	def, err := h.Banks.DefaultBank(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, second.ID, def.ID)
	assert.NotEqual(t, first.ID, def.ID)
}

func TestAddBank_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	_, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{AccountNumber: "0123456789"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = h.Banks.AddBank(ctx, userID, vault.AddBankRequest{BankName: "First National"})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestSetDefaultBank_MovesFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	_, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "First National", AccountNumber: "0123456789",
	})
	require.NoError(t, err)
	second, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "Second City", AccountNumber: "9876543210",
	})
	require.NoError(t, err)

	require.NoError(t, h.Banks.SetDefaultBank(ctx, userID, second.ID))

	banks, err := h.Banks.ListBanks(ctx, userID)
	require.NoError(t, err)
	require.Len(t, banks, 2)
	for _, b := range banks {
		assert.Equal(t, b.ID == second.ID, b.IsDefault, "only the chosen bank may be default")
	}
}

func TestDeleteBank_PromotesOldestRemaining(t *testing.T) {
	// GIVEN: Two banks, the first (older) one default
	// WHEN: Deleting the default
	// THEN: The remaining account inherits the flag

	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	first, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "First National", AccountNumber: "0123456789",
	})
	require.NoError(t, err)
	second, err := h.Banks.AddBank(ctx, userID, vault.AddBankRequest{
		BankName: "Second City", AccountNumber: "9876543210",
	})
	require.NoError(t, err)

	require.NoError(t, h.Banks.DeleteBank(ctx, userID, first.ID))

	def, err := h.Banks.DefaultBank(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, second.ID, def.ID)
}

func TestDeleteBank_Unknown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.newFundedUser(t, 0)

	err := h.Banks.DeleteBank(ctx, userID, "missing")
	assert.True(t, ledger.IsNotFound(err))
}
