// Package portal provides the typed API surface of the university
// application portal: registration, login, application submission, status
// retrieval, and payment checkout. Every call classifies its outcome and
// reports it to the configured recorders; a failed step is data for the
// metrics layer, never a panic or an aborted test.
package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/portal/loadgen/internal/client"
	"github.com/example/portal/loadgen/internal/metrics"
)

// Errors returned by the portal package.
var (
	// ErrUnexpectedStatus is returned when a call completes with a status
	// code outside the expected set.
	ErrUnexpectedStatus = errors.New("portal: unexpected status code")
	// ErrMissingField is returned when an expected field is absent from a
	// response body.
	ErrMissingField = errors.New("portal: missing response field")
)

// Payment constants for application checkout: $75.00 in cents.
const (
	PaymentAmountCents = 7500
	PaymentCurrency    = "usd"
)

// Endpoint names used in metrics and reports.
const (
	EndpointRegister = "register"
	EndpointLogin    = "login"
	EndpointSubmit   = "submit_application"
	EndpointGet      = "get_application"
	EndpointCheckout = "checkout"
)

// Endpoint describes one driven portal endpoint.
type Endpoint struct {
	Name   string
	Method string
	Path   string
}

// Endpoints returns the portal endpoints this tool drives. The
// get_application path contains an {id} template segment.
func Endpoints() []Endpoint {
	return []Endpoint{
		{Name: EndpointRegister, Method: http.MethodPost, Path: "/auth/register"},
		{Name: EndpointLogin, Method: http.MethodPost, Path: "/auth/login"},
		{Name: EndpointSubmit, Method: http.MethodPost, Path: "/applications"},
		{Name: EndpointGet, Method: http.MethodGet, Path: "/applications/{id}"},
		{Name: EndpointCheckout, Method: http.MethodPost, Path: "/payments/checkout"},
	}
}

// Recorder receives the outcome of every portal action.
type Recorder interface {
	Record(metrics.Result)
}

// Credentials is one virtual user's registration credential set.
type Credentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// loginRequest is the login payload; registration reuses Credentials.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// submitRequest is the application submission payload.
type submitRequest struct {
	PersonalStatement string `json:"personalStatement"`
}

// checkoutRequest is the payment initiation payload.
type checkoutRequest struct {
	ApplicationID string `json:"applicationId"`
	Amount        int    `json:"amount"`
	Currency      string `json:"currency"`
}

// API issues requests against the portal and reports their outcomes.
// Safe for concurrent use by many virtual users.
type API struct {
	client    *client.Client
	recorders []Recorder
	limiter   *rate.Limiter
}

// NewAPI creates the portal API layer. The limiter may be nil to disable
// global rate capping; recorders may be empty.
func NewAPI(c *client.Client, limiter *rate.Limiter, recorders ...Recorder) *API {
	return &API{
		client:    c,
		recorders: recorders,
		limiter:   limiter,
	}
}

// Register creates a new portal account. Expects 201.
func (a *API) Register(ctx context.Context, creds Credentials) error {
	_, err := a.do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   creds,
	}, EndpointRegister, http.StatusCreated)
	return err
}

// Login authenticates and returns the access token. Expects 200 with an
// access_token field in the body.
func (a *API) Login(ctx context.Context, creds Credentials) (string, error) {
	resp, err := a.do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Email: creds.Email, Password: creds.Password},
	}, EndpointLogin, http.StatusOK)
	if err != nil {
		return "", err
	}

	token, err := resp.JSONField("access_token")
	if err != nil {
		return "", fmt.Errorf("%w: access_token", ErrMissingField)
	}
	return token, nil
}

// SubmitApplication posts a new application and returns its id.
// Expects 201 or 202 with an id field in the body.
func (a *API) SubmitApplication(ctx context.Context, token, personalStatement string) (string, error) {
	resp, err := a.do(ctx, client.Request{
		Method:      http.MethodPost,
		Path:        "/applications",
		Body:        submitRequest{PersonalStatement: personalStatement},
		BearerToken: token,
	}, EndpointSubmit, http.StatusCreated, http.StatusAccepted)
	if err != nil {
		return "", err
	}

	id, err := resp.JSONField("id")
	if err != nil {
		return "", fmt.Errorf("%w: id", ErrMissingField)
	}
	return id, nil
}

// GetApplication fetches an application and returns its status field.
// Expects 200.
func (a *API) GetApplication(ctx context.Context, token, id string) (string, error) {
	resp, err := a.do(ctx, client.Request{
		Method:      http.MethodGet,
		Path:        "/applications/" + id,
		BearerToken: token,
	}, EndpointGet, http.StatusOK)
	if err != nil {
		return "", err
	}

	// Status is informational; a 200 without it still counts as success.
	status, _ := resp.JSONField("status")
	return status, nil
}

// Checkout initiates payment for an application. Expects 200.
func (a *API) Checkout(ctx context.Context, token, applicationID string) error {
	_, err := a.do(ctx, client.Request{
		Method: http.MethodPost,
		Path:   "/payments/checkout",
		Body: checkoutRequest{
			ApplicationID: applicationID,
			Amount:        PaymentAmountCents,
			Currency:      PaymentCurrency,
		},
		BearerToken: token,
	}, EndpointCheckout, http.StatusOK)
	return err
}

// RecordSkip reports that an action was not attempted because its
// preconditions were unmet (no token, no recorded application).
func (a *API) RecordSkip(endpoint, reason string) {
	a.record(metrics.Result{
		Endpoint: endpoint,
		Class:    metrics.ClassSkipped,
		Message:  reason,
	})
}

// do executes one request, waits on the global limiter when configured,
// classifies the outcome against the expected status codes, and reports it.
func (a *API) do(ctx context.Context, req client.Request, endpoint string, expected ...int) (*client.Response, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("portal: rate limiter: %w", err)
		}
	}

	start := time.Now()
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// The run is shutting down; an aborted in-flight request is not
			// a backend failure and must not skew the error counters.
			return nil, err
		}
		a.record(metrics.Result{
			Endpoint: endpoint,
			Method:   req.Method,
			Path:     req.Path,
			Latency:  time.Since(start),
			Class:    metrics.ClassError,
			Message:  err.Error(),
		})
		return nil, err
	}

	result := metrics.Result{
		Endpoint:   endpoint,
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Latency:    resp.Latency,
	}

	if statusExpected(resp.StatusCode, expected) {
		result.Class = metrics.ClassOK
		a.record(result)
		return resp, nil
	}

	result.Class = metrics.ClassFailed
	result.Message = fmt.Sprintf("%s failed with status %d", endpoint, resp.StatusCode)
	a.record(result)
	return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, endpoint, resp.StatusCode)
}

func statusExpected(code int, expected []int) bool {
	for _, e := range expected {
		if code == e {
			return true
		}
	}
	return false
}

func (a *API) record(result metrics.Result) {
	for _, r := range a.recorders {
		r.Record(result)
	}
}
