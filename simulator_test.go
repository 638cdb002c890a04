package govern_test

import (
	"context"
	"testing"
	"time"

	govern "github.com/goliatone/go-govern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatorCreateAccountCorrelatesIdentity(t *testing.T) {
	sink := &recordingSink{}
	sim := govern.NewSimulator(govern.WithSimulatorActivitySink(sink))
	ctx := context.Background()

	taskID, err := sim.CreateAccount(ctx, "hr-system", map[string]string{
		"mail":      "leo.hamato@example.com",
		"givenName": "Leo",
		"sn":        "Hamato",
		"phone":     "(212) 555-0147",
	})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	// drive the task to completion the way an API client would
	var task *govern.Task
	for i := 0; i < 3; i++ {
		task, err = sim.GetTaskStatus(ctx, taskID)
		require.NoError(t, err)
		if task.IsTerminal() {
			break
		}
	}
	require.True(t, task.IsTerminal())
	require.NotNil(t, task.Result)
	assert.Equal(t, govern.TaskResultSuccess, task.Result.Status)
	require.NotEmpty(t, task.Result.AccountID)

	matches, err := sim.SearchIdentity(ctx, govern.SearchFilter{AccountID: task.Result.AccountID})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	identity := matches[0]
	assert.Equal(t, task.Result.IdentityID, identity.ID)
	assert.Equal(t, "Leo Hamato", identity.DisplayName)
	assert.Equal(t, govern.LifecycleActive, identity.LifecycleState)
	require.Len(t, identity.Accounts, 1)
	assert.Equal(t, govern.AccountEnabled, identity.Accounts[0].Status)
	assert.Equal(t, "+12125550147", identity.Attributes["phone"])

	created := sink.byType(govern.ActivityEventAccountCreated)
	require.Len(t, created, 1)
	assert.Equal(t, identity.ID, created[0].IdentityID)
}

func TestSimulatorCreateAccountRequiresSource(t *testing.T) {
	sim := govern.NewSimulator()

	_, err := sim.CreateAccount(context.Background(), "", map[string]string{"mail": "x@example.com"})
	require.Error(t, err)
	assert.True(t, govern.IsValidation(err))
}

func TestSimulatorStoredCredentialIsNeverPlaintext(t *testing.T) {
	sim := govern.NewSimulator()
	ctx := context.Background()

	_, err := sim.CreateAccount(ctx, "hr-system", map[string]string{
		"mail":     "mikey@example.com",
		"password": "pizza-time",
	})
	require.NoError(t, err)

	identity, err := sim.Directory().FindIdentityByEmail("mikey@example.com")
	require.NoError(t, err)
	require.Len(t, identity.Accounts, 1)

	assert.NotContains(t, identity.Attributes, "password")
	assert.NotEqual(t, "pizza-time", identity.Accounts[0].PasswordHash)
	assert.NoError(t, govern.CompareCredentialAndHash("pizza-time", identity.Accounts[0].PasswordHash))
}

func TestSimulatorDisableAccountMarksBothViews(t *testing.T) {
	sim := govern.NewSimulator()
	ctx := context.Background()

	identity := seedIdentity(t, sim, "raph@example.com")
	accountID := identity.Accounts[0].ID

	taskID, err := sim.DisableAccount(ctx, accountID)
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	// disable is effective immediately, before the task confirms
	byAccount, err := sim.Directory().FindIdentityByAccountID(accountID)
	require.NoError(t, err)
	assert.Equal(t, govern.AccountDisabled, byAccount.Accounts[0].Status)

	accounts, err := sim.ListAccountsByIdentity(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, govern.AccountDisabled, accounts[0].Status)
}

func TestSimulatorDisableUnknownAccountFails(t *testing.T) {
	sim := govern.NewSimulator()

	_, err := sim.DisableAccount(context.Background(), "no-such-account")
	require.Error(t, err)
	assert.True(t, govern.IsNotFound(err))
	assert.ErrorIs(t, err, govern.ErrAccountNotFound)
	assert.Equal(t, 0, sim.Ledger().Len())
}

func TestSimulatorTerminateCascadesAccountDisable(t *testing.T) {
	sim := govern.NewSimulator()
	ctx := context.Background()

	identity := seedIdentity(t, sim, "splinter@example.com")

	_, err := sim.SetLifecycleState(ctx, identity.ID, govern.LifecycleTerminated)
	require.NoError(t, err)

	terminated, err := sim.GetUserDetails(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, govern.LifecycleTerminated, terminated.LifecycleState)
	for _, account := range terminated.Accounts {
		assert.Equal(t, govern.AccountDisabled, account.Status)
	}

	// terminal state rejects further transitions
	_, err = sim.SetLifecycleState(ctx, identity.ID, govern.LifecycleActive)
	require.Error(t, err)
	assert.ErrorIs(t, err, govern.ErrTerminalState)
}

func TestSimulatorProviderDefinedStatePassesThrough(t *testing.T) {
	sim := govern.NewSimulator()
	ctx := context.Background()

	identity := seedIdentity(t, sim, "leave@example.com")

	_, err := sim.SetLifecycleState(ctx, identity.ID, "leaveOfAbsence")
	require.NoError(t, err)

	details, err := sim.GetUserDetails(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "leaveOfAbsence", details.LifecycleState)
}

func TestSimulatorRequestAccessAppendsEntitlement(t *testing.T) {
	sim := govern.NewSimulator()
	ctx := context.Background()

	identity := seedIdentity(t, sim, "casey@example.com")

	taskID, err := sim.RequestAccess(ctx, identity.ID, govern.AccessRequest{ID: "vpn-access"})
	require.NoError(t, err)
	require.NotEmpty(t, taskID)

	items, err := sim.GetUserEntitlements(ctx, identity.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "vpn-access", items[0].ID)
	assert.Equal(t, govern.AccessTypeProfile, items[0].Type)
}

func TestSimulatorSearchRequiresExactlyOneDiscriminator(t *testing.T) {
	sim := govern.NewSimulator()
	ctx := context.Background()

	_, err := sim.SearchIdentity(ctx, govern.SearchFilter{})
	require.Error(t, err)
	assert.True(t, govern.IsValidation(err))

	_, err = sim.SearchIdentity(ctx, govern.SearchFilter{
		Email:     "x@example.com",
		AccountID: "acc-1",
	})
	require.Error(t, err)
	assert.True(t, govern.IsValidation(err))
}

func TestSimulatorSearchMissReturnsEmptyAndNotFound(t *testing.T) {
	sim := govern.NewSimulator()

	matches, err := sim.SearchIdentity(context.Background(), govern.SearchFilter{Email: "ghost@example.com"})
	require.Error(t, err)
	assert.True(t, govern.IsNotFound(err))
	assert.Empty(t, matches)
}

func TestSimulatorListAccountsUnknownIdentityIsEmptyNotError(t *testing.T) {
	sim := govern.NewSimulator()

	accounts, err := sim.ListAccountsByIdentity(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSimulatorEntitlementsUnknownIdentityFails(t *testing.T) {
	sim := govern.NewSimulator()

	_, err := sim.GetUserEntitlements(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, govern.IsNotFound(err))
}

func TestSimulatorGetTaskStatusUnknownTaskFails(t *testing.T) {
	sim := govern.NewSimulator()

	_, err := sim.GetTaskStatus(context.Background(), "missing-task")
	require.Error(t, err)
	assert.True(t, govern.IsNotFound(err))
	assert.ErrorIs(t, err, govern.ErrTaskNotFound)
}

func TestSimulatorManagerResolution(t *testing.T) {
	sim := govern.NewSimulator()
	ctx := context.Background()

	manager := seedIdentity(t, sim, "shredder@example.com")

	_, err := sim.CreateAccount(ctx, "hr-system", map[string]string{
		"mail":    "foot.soldier@example.com",
		"manager": manager.ID,
	})
	require.NoError(t, err)

	report, err := sim.Directory().FindIdentityByEmail("foot.soldier@example.com")
	require.NoError(t, err)
	require.NotNil(t, report.Manager)
	assert.Equal(t, manager.ID, report.Manager.ID)
	assert.Equal(t, manager.DisplayName, report.Manager.DisplayName)
}

func TestSimulatorDeterministicIdentityIDFromEmail(t *testing.T) {
	first := govern.NewSimulator()
	second := govern.NewSimulator()
	ctx := context.Background()

	_, err := first.CreateAccount(ctx, "hr-system", map[string]string{"mail": "stable@example.com"})
	require.NoError(t, err)
	_, err = second.CreateAccount(ctx, "other-source", map[string]string{"mail": "stable@example.com"})
	require.NoError(t, err)

	a, err := first.Directory().FindIdentityByEmail("stable@example.com")
	require.NoError(t, err)
	b, err := second.Directory().FindIdentityByEmail("stable@example.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestSimulatorRoundTripHonorsCancellation(t *testing.T) {
	sim := govern.NewSimulator(govern.WithRoundTripDelay(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.CreateAccount(ctx, "hr-system", map[string]string{"mail": "late@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
