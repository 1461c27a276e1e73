// Package authform validates and submits login/registration input.
// Submission is an explicit two-phase operation: synchronous
// validation producing field errors, then - only when clean - an
// asynchronous submit through the session store. Schema violations and
// business-rule violations never issue a network call.
package authform

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/compareai/compare-client/identity"
	errs "github.com/compareai/compare-client/internal/errors"
	"github.com/compareai/compare-client/session"
)

// Form field names used in error maps
const (
	FieldUsername     = "username"
	FieldPassword     = "password"
	FieldAcceptPolicy = "acceptPolicy"
)

const (
	policyMessage      = "You must accept the privacy policy to register"
	credentialsMessage = "invalid credentials"
	takenMessage       = "username already taken"
	unavailableMessage = "service unavailable - check your connection and try again"
	internalMessage    = "something went wrong, please try again"
)

// ErrSubmitInFlight rejects a submit while a previous one is pending
var ErrSubmitInFlight = errors.New("a submission is already in flight")

// LoginForm is the login variant's input
type LoginForm struct {
	Username string
	Password string
}

// RegisterForm is the registration variant's input. AcceptPolicy is a
// client-only consent gate: it is validated here and stripped from the
// payload sent to the service.
type RegisterForm struct {
	Username     string
	Password     string
	AcceptPolicy bool
}

// Result reports one submit attempt. Exactly one of Identity,
// FieldErrors or FormError is meaningful; Err carries the underlying
// error for programmatic checks.
type Result struct {
	Identity    *identity.Identity
	FieldErrors map[string]string // field name -> message
	FormError   string            // form-level message (server rejection)
	Err         error
}

// OK reports whether the submit succeeded
func (r *Result) OK() bool {
	return r.Identity != nil
}

// Controller drives both form variants against the session store. One
// submission at a time: the submit control is disabled while a
// mutation is in flight.
type Controller struct {
	mu       sync.Mutex
	inFlight bool
	store    *session.Store
}

// NewController initializes a Controller with its session store
func NewController(store *session.Store) (*Controller, error) {
	if store == nil {
		return nil, errors.New("[authform.NewController] session store is required")
	}
	return &Controller{store: store}, nil
}

// InFlight reports whether a submission is currently pending
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// ValidateLogin checks the login form against the shared identity
// schema. Returns nil when the form is clean.
func ValidateLogin(form LoginForm) *errs.ValidationError {
	verr := errs.NewValidationError()
	if err := identity.ValidateUsername(form.Username); err != nil {
		verr.Add(FieldUsername, err.Error())
	}
	if err := identity.ValidatePassword(form.Password); err != nil {
		verr.Add(FieldPassword, err.Error())
	}
	if !verr.HasErrors() {
		return nil
	}
	return verr
}

// ValidateRegister checks schema first, then the policy-acceptance
// business rule. The business rule is evaluated only once the schema
// passes, and blocks submission with an error on the acceptPolicy
// field.
func ValidateRegister(form RegisterForm) *errs.ValidationError {
	if verr := ValidateLogin(LoginForm{Username: form.Username, Password: form.Password}); verr != nil {
		return verr
	}
	if !form.AcceptPolicy {
		verr := errs.NewValidationError()
		verr.Add(FieldAcceptPolicy, policyMessage)
		return verr
	}
	return nil
}

// SubmitLogin validates and submits the login form. Errors previously
// attached are implicitly cleared: each attempt produces a fresh
// Result. Entered values are never cleared by a failure - the form is
// caller-owned.
func (c *Controller) SubmitLogin(ctx context.Context, form LoginForm) (*Result, error) {
	if !c.begin() {
		return nil, ErrSubmitInFlight
	}
	defer c.end()

	if verr := ValidateLogin(form); verr != nil {
		return &Result{FieldErrors: verr.Fields, Err: verr}, nil
	}

	ident, err := c.store.Login(ctx, identity.Credentials{
		Username: strings.TrimSpace(form.Username),
		Password: form.Password,
	})
	if err != nil {
		return failure(err), nil
	}
	// No navigation here: the session transition drives the route
	// guard's redirect.
	return &Result{Identity: ident}, nil
}

// SubmitRegister validates and submits the registration form. The
// acceptPolicy flag is stripped from the payload - it is not part of
// the identity schema.
func (c *Controller) SubmitRegister(ctx context.Context, form RegisterForm) (*Result, error) {
	if !c.begin() {
		return nil, ErrSubmitInFlight
	}
	defer c.end()

	if verr := ValidateRegister(form); verr != nil {
		return &Result{FieldErrors: verr.Fields, Err: verr}, nil
	}

	ident, err := c.store.Register(ctx, identity.Credentials{
		Username: strings.TrimSpace(form.Username),
		Password: form.Password,
	})
	if err != nil {
		return failure(err), nil
	}
	return &Result{Identity: ident}, nil
}

func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

func (c *Controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
}

// failure maps a service rejection to form- or field-level messages
func failure(err error) *Result {
	switch {
	case errs.Is(err, errs.ErrInvalidCredentials):
		return &Result{FormError: credentialsMessage, Err: err}
	case errs.Is(err, errs.ErrUsernameTaken):
		return &Result{FieldErrors: map[string]string{FieldUsername: takenMessage}, Err: err}
	case errs.Is(err, errs.ErrUnavailable):
		return &Result{FormError: unavailableMessage, Err: err}
	default:
		return &Result{FormError: internalMessage, Err: err}
	}
}
