package govern

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// Debug dumps request payloads to stdout
	Debug bool

	// ErrorHandler handles errors (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController exposes the provisioning surface over JSON routes. It
// is a thin shell: request shaping and status mapping only, every rule
// lives behind the Provisioner and the workflow handlers.
type HTTPController struct {
	provisioner Provisioner
	onboard     *OnboardContractorHandler
	offboard    *OffboardContractorHandler
	logger      Logger
	config      HTTPConfig
}

// NewHTTPController creates a provisioning HTTP controller.
func NewHTTPController(provisioner Provisioner, onboard *OnboardContractorHandler, offboard *OffboardContractorHandler, cfg HTTPConfig, logger Logger) *HTTPController {
	if logger == nil {
		logger = defLogger{}
	}

	return &HTTPController{
		provisioner: provisioner,
		onboard:     onboard,
		offboard:    offboard,
		logger:      logger,
		config:      cfg,
	}
}

// RegisterRoutes registers the provisioning routes on the given group.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar, mw ...router.MiddlewareFunc) {
	group.Post("/accounts", c.CreateAccount, mw...)
	group.Post("/accounts/:id/disable", c.DisableAccount, mw...)
	group.Get("/tasks/:id", c.TaskStatus, mw...)
	group.Post("/identities/search", c.SearchIdentity, mw...)
	group.Get("/identities/:id", c.UserDetails, mw...)
	group.Get("/identities/:id/accounts", c.IdentityAccounts, mw...)
	group.Get("/identities/:id/entitlements", c.UserEntitlements, mw...)
	group.Post("/identities/:id/lifecycle", c.SetLifecycleState, mw...)
	group.Post("/identities/:id/access-requests", c.RequestAccess, mw...)
	group.Post("/workflows/contractors", c.OnboardContractor, mw...)
	group.Post("/workflows/contractors/offboard", c.OffboardContractor, mw...)
}

// CreateAccountRequest payload
type CreateAccountRequest struct {
	SourceID   string            `json:"source_id"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Validate will run validation rules
func (r CreateAccountRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.SourceID,
			validation.Required,
		),
	)
}

// CreateAccount accepts an account provisioning request and responds 202
// with the tracking task id.
func (c *HTTPController) CreateAccount(ctx router.Context) error {
	payload := new(CreateAccountRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, ValidationError(err, "invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return c.renderError(ctx, ValidationError(err, "invalid account request"))
	}

	c.debugDump("create account", payload)

	taskID, err := c.provisioner.CreateAccount(ctx.Context(), payload.SourceID, payload.Attributes)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusAccepted, map[string]string{"task_id": taskID})
}

// DisableAccount disables the account and responds 202 with the task id.
func (c *HTTPController) DisableAccount(ctx router.Context) error {
	accountID := ctx.Param("id")

	taskID, err := c.provisioner.DisableAccount(ctx.Context(), accountID)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusAccepted, map[string]string{"task_id": taskID})
}

// TaskStatus reports (and, provider-style, advances) the task status.
func (c *HTTPController) TaskStatus(ctx router.Context) error {
	task, err := c.provisioner.GetTaskStatus(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, task)
}

// SearchIdentity resolves an identity by exactly one discriminator.
func (c *HTTPController) SearchIdentity(ctx router.Context) error {
	payload := new(SearchFilter)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, ValidationError(err, "invalid request body"))
	}

	matches, err := c.provisioner.SearchIdentity(ctx.Context(), *payload)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"count":      len(matches),
		"identities": matches,
	})
}

// UserDetails returns the identity record.
func (c *HTTPController) UserDetails(ctx router.Context) error {
	identity, err := c.provisioner.GetUserDetails(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, identity)
}

// IdentityAccounts lists the identity's accounts; unknown identities get
// an empty list.
func (c *HTTPController) IdentityAccounts(ctx router.Context) error {
	accounts, err := c.provisioner.ListAccountsByIdentity(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"count":    len(accounts),
		"accounts": accounts,
	})
}

// UserEntitlements lists the identity's access items.
func (c *HTTPController) UserEntitlements(ctx router.Context) error {
	items, err := c.provisioner.GetUserEntitlements(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"count":        len(items),
		"entitlements": items,
	})
}

// LifecycleRequest payload
type LifecycleRequest struct {
	State string `json:"state"`
}

// Validate will run validation rules
func (r LifecycleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.State,
			validation.Required,
		),
	)
}

// SetLifecycleState transitions the identity and responds 202 with the
// task id.
func (c *HTTPController) SetLifecycleState(ctx router.Context) error {
	payload := new(LifecycleRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, ValidationError(err, "invalid request body"))
	}

	if err := payload.Validate(); err != nil {
		return c.renderError(ctx, ValidationError(err, "invalid lifecycle request"))
	}

	taskID, err := c.provisioner.SetLifecycleState(ctx.Context(), ctx.Param("id"), LifecycleState(payload.State))
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusAccepted, map[string]string{"task_id": taskID})
}

// RequestAccess submits one access grant request for the identity.
func (c *HTTPController) RequestAccess(ctx router.Context) error {
	payload := new(AccessRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, ValidationError(err, "invalid request body"))
	}

	taskID, err := c.provisioner.RequestAccess(ctx.Context(), ctx.Param("id"), *payload)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(fiber.StatusAccepted, map[string]string{"task_id": taskID})
}

// OnboardContractor runs the onboarding workflow end to end.
func (c *HTTPController) OnboardContractor(ctx router.Context) error {
	payload := new(OnboardContractorMessage)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, ValidationError(err, "invalid request body"))
	}

	c.debugDump("onboard contractor", payload)

	receipt, err := c.onboard.Execute(ctx.Context(), *payload)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, receipt)
}

// OffboardContractor runs the offboarding workflow end to end.
func (c *HTTPController) OffboardContractor(ctx router.Context) error {
	payload := new(OffboardContractorMessage)
	if err := ctx.Bind(payload); err != nil {
		return c.renderError(ctx, ValidationError(err, "invalid request body"))
	}

	c.debugDump("offboard contractor", payload)

	receipt, err := c.offboard.Execute(ctx.Context(), *payload)
	if err != nil {
		return c.renderError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, receipt)
}

func (c *HTTPController) renderError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	status := fiber.StatusInternalServerError
	body := map[string]any{"error": err.Error()}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		status = statusFromError(richErr)
		body["error"] = richErr.Message
		if richErr.TextCode != "" {
			body["text_code"] = richErr.TextCode
		}
		if len(richErr.Metadata) > 0 {
			body["metadata"] = richErr.Metadata
		}
	}

	return ctx.JSON(status, body)
}

func statusFromError(richErr *goerrors.Error) int {
	if richErr.Code > 0 {
		return int(richErr.Code)
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func (c *HTTPController) debugDump(label string, payload any) {
	if !c.config.Debug {
		return
	}
	fmt.Println("======= GOVERN " + label + " ======")
	fmt.Println(print.MaybePrettyJSON(payload))
	fmt.Println("===============================")
}
