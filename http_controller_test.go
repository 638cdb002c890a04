package govern_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/gofiber/fiber/v2"
	govern "github.com/goliatone/go-govern"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// bodyContext overrides Bind() from our base MockContext so POST
// handlers can receive a request payload.
type bodyContext struct {
	*router.MockContext
	body    any
	bindErr error
}

func (c *bodyContext) Bind(target any) error {
	if c.bindErr != nil {
		return c.bindErr
	}
	if c.body == nil {
		return nil
	}
	raw, err := json.Marshal(c.body)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func newTestController(provisioner govern.Provisioner) *govern.HTTPController {
	poller := govern.NewPoller(provisioner, govern.WithPollerSleep(noSleep))
	onboard := govern.NewOnboardContractorHandler(provisioner, poller)
	offboard := govern.NewOffboardContractorHandler(provisioner, poller)
	return govern.NewHTTPController(provisioner, onboard, offboard, govern.HTTPConfig{}, nil)
}

func TestHTTPControllerCreateAccountRespondsAccepted(t *testing.T) {
	provisioner := &MockProvisioner{}
	provisioner.On("CreateAccount", mock.Anything, "hr-system", mock.Anything).
		Return("task-1", nil).Once()

	controller := newTestController(provisioner)

	ctx := &bodyContext{
		MockContext: router.NewMockContext(),
		body: govern.CreateAccountRequest{
			SourceID:   "hr-system",
			Attributes: map[string]string{"mail": "x@example.com"},
		},
	}
	ctx.On("Context").Return(context.Background())

	var body map[string]string
	ctx.On("JSON", fiber.StatusAccepted, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]string)
	}).Return(nil)

	err := controller.CreateAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "task-1", body["task_id"])
	provisioner.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestHTTPControllerCreateAccountRejectsMissingSource(t *testing.T) {
	provisioner := &MockProvisioner{}
	controller := newTestController(provisioner)

	ctx := &bodyContext{
		MockContext: router.NewMockContext(),
		body:        govern.CreateAccountRequest{},
	}

	var body map[string]any
	ctx.On("JSON", router.StatusBadRequest, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	err := controller.CreateAccount(ctx)
	require.NoError(t, err)
	require.NotNil(t, body)
	assert.Contains(t, body, "error")
	provisioner.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
}

func TestHTTPControllerTaskStatusRendersTask(t *testing.T) {
	provisioner := &MockProvisioner{}
	provisioner.On("GetTaskStatus", mock.Anything, "task-7").
		Return(&govern.Task{ID: "task-7", Status: govern.TaskProcessing}, nil).Once()

	controller := newTestController(provisioner)

	ctx := router.NewMockContext()
	ctx.ParamsM["id"] = "task-7"
	ctx.On("Context").Return(context.Background())

	var payload *govern.Task
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(*govern.Task)
	}).Return(nil)

	err := controller.TaskStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, govern.TaskProcessing, payload.Status)
	provisioner.AssertExpectations(t)
	ctx.AssertExpectations(t)
}

func TestHTTPControllerUnknownTaskRenders404(t *testing.T) {
	provisioner := &MockProvisioner{}
	provisioner.On("GetTaskStatus", mock.Anything, "missing").
		Return(nil, govern.ErrTaskNotFound).Once()

	controller := newTestController(provisioner)

	ctx := router.NewMockContext()
	ctx.ParamsM["id"] = "missing"
	ctx.On("Context").Return(context.Background())

	var body map[string]any
	ctx.On("JSON", fiber.StatusNotFound, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	err := controller.TaskStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, body)
	assert.Equal(t, "TASK_NOT_FOUND", body["text_code"])
}

func TestHTTPControllerSearchIdentity(t *testing.T) {
	provisioner := &MockProvisioner{}
	provisioner.On("SearchIdentity", mock.Anything, govern.SearchFilter{Email: "x@example.com"}).
		Return([]*govern.Identity{{ID: "id-1", Email: "x@example.com"}}, nil).Once()

	controller := newTestController(provisioner)

	ctx := &bodyContext{
		MockContext: router.NewMockContext(),
		body:        govern.SearchFilter{Email: "x@example.com"},
	}
	ctx.On("Context").Return(context.Background())

	var body map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	err := controller.SearchIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, body["count"])
	provisioner.AssertExpectations(t)
}

func TestHTTPControllerIdentityAccountsEmptyIsOK(t *testing.T) {
	provisioner := &MockProvisioner{}
	provisioner.On("ListAccountsByIdentity", mock.Anything, "id-1").
		Return([]govern.Account{}, nil).Once()

	controller := newTestController(provisioner)

	ctx := router.NewMockContext()
	ctx.ParamsM["id"] = "id-1"
	ctx.On("Context").Return(context.Background())

	var body map[string]any
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	err := controller.IdentityAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, body["count"])
}

func TestHTTPControllerMalformedBodyRendersBadRequest(t *testing.T) {
	provisioner := &MockProvisioner{}
	controller := newTestController(provisioner)

	ctx := &bodyContext{
		MockContext: router.NewMockContext(),
		bindErr:     assert.AnError,
	}

	var body map[string]any
	ctx.On("JSON", router.StatusBadRequest, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	err := controller.SearchIdentity(ctx)
	require.NoError(t, err)
	require.NotNil(t, body)
	assert.Contains(t, body, "error")
	provisioner.AssertNotCalled(t, "SearchIdentity", mock.Anything, mock.Anything)
}

func TestHTTPControllerCustomErrorHandlerWins(t *testing.T) {
	provisioner := &MockProvisioner{}
	provisioner.On("GetUserDetails", mock.Anything, "missing").
		Return(nil, govern.ErrIdentityNotFound).Once()

	var handled error
	controller := govern.NewHTTPController(provisioner, nil, nil, govern.HTTPConfig{
		ErrorHandler: func(ctx router.Context, err error) error {
			handled = err
			return nil
		},
	}, nil)

	ctx := router.NewMockContext()
	ctx.ParamsM["id"] = "missing"
	ctx.On("Context").Return(context.Background())

	err := controller.UserDetails(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, handled, govern.ErrIdentityNotFound)
}

func TestHTTPControllerOffboardEndToEnd(t *testing.T) {
	sim := govern.NewSimulator()
	identity := seedIdentity(t, sim, "end2end@example.com")

	controller := newTestController(sim)

	ctx := &bodyContext{
		MockContext: router.NewMockContext(),
		body:        govern.OffboardContractorMessage{IdentityID: identity.ID},
	}
	ctx.On("Context").Return(context.Background())

	var receipt *govern.OffboardingReceipt
	ctx.On("JSON", router.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
		receipt = args.Get(1).(*govern.OffboardingReceipt)
	}).Return(nil)

	err := controller.OffboardContractor(ctx)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, identity.ID, receipt.IdentityID)

	state, err := sim.Lifecycle().CurrentState(identity.ID)
	require.NoError(t, err)
	assert.Equal(t, govern.LifecycleTerminated, state)
}
