package govern_test

import (
	"context"
	"testing"

	govern "github.com/goliatone/go-govern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedIdentity(t *testing.T, sim *govern.Simulator, email string) *govern.Identity {
	t.Helper()

	_, err := sim.CreateAccount(context.Background(), "test-source", map[string]string{
		"mail":      email,
		"givenName": "Test",
		"sn":        "User",
	})
	require.NoError(t, err)

	identity, err := sim.Directory().FindIdentityByEmail(email)
	require.NoError(t, err)
	return identity
}

func TestDirectoryFindIdentityByEmailIsCaseInsensitive(t *testing.T) {
	sim := govern.NewSimulator()
	seedIdentity(t, sim, "Casey.Jones@Example.COM")

	identity, err := sim.Directory().FindIdentityByEmail("casey.jones@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Casey.Jones@Example.COM", identity.Email)
}

func TestDirectoryFindIdentityFallsBackToAccountID(t *testing.T) {
	sim := govern.NewSimulator()
	identity := seedIdentity(t, sim, "april@example.com")
	require.Len(t, identity.Accounts, 1)

	byAccount, err := sim.Directory().FindIdentity(identity.Accounts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, byAccount.ID)
}

func TestDirectoryUnknownLookupsReturnNotFound(t *testing.T) {
	dir := govern.NewDirectory()

	_, err := dir.FindIdentity("nope")
	require.Error(t, err)
	assert.True(t, govern.IsNotFound(err))

	_, err = dir.FindIdentityByEmail("nobody@example.com")
	require.Error(t, err)
	assert.True(t, govern.IsNotFound(err))

	_, err = dir.FindIdentityByAccountID("nope")
	require.Error(t, err)
	assert.True(t, govern.IsNotFound(err))
}

func TestDirectoryLookupsReturnDefensiveCopies(t *testing.T) {
	sim := govern.NewSimulator()
	identity := seedIdentity(t, sim, "donny@example.com")

	identity.DisplayName = "mutated"
	identity.Accounts[0].Status = govern.AccountDisabled
	identity.SetAttribute("injected", "value")

	fresh, err := sim.Directory().FindIdentity(identity.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", fresh.DisplayName)
	assert.Equal(t, govern.AccountEnabled, fresh.Accounts[0].Status)
	assert.NotContains(t, fresh.Attributes, "injected")
}

func TestDirectoryIdentitiesSnapshotKeepsCreationOrder(t *testing.T) {
	sim := govern.NewSimulator()
	first := seedIdentity(t, sim, "first@example.com")
	second := seedIdentity(t, sim, "second@example.com")

	all := sim.Directory().Identities()
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	assert.Equal(t, 2, sim.Directory().Len())
}

func TestDirectoryRejectsDuplicateEmail(t *testing.T) {
	sim := govern.NewSimulator()
	seedIdentity(t, sim, "dup@example.com")

	_, err := sim.CreateAccount(context.Background(), "test-source", map[string]string{
		"mail": "dup@example.com",
	})
	require.Error(t, err)
}
