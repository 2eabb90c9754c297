// Package behavior defines the action policies simulated users execute.
// A Behavior performs one unit of simulated work per scheduling turn, using
// the session's credentials and recorded application ids. Four variants
// exist: the simple combined profile (weighted task table) and the advanced
// normal / heavy / statusChecker profiles.
package behavior

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/example/portal/loadgen/internal/config"
	"github.com/example/portal/loadgen/internal/portal"
	"github.com/example/portal/loadgen/internal/session"
)

// Errors returned by the behavior package.
var (
	// ErrUnknownProfile is returned when a profile name has no behavior.
	ErrUnknownProfile = errors.New("behavior: unknown profile")
)

// Profile names understood by New.
const (
	ProfileSimple        = "simple"
	ProfileNormal        = "normal"
	ProfileHeavy         = "heavy"
	ProfileStatusChecker = "statusChecker"
)

// Behavior performs one unit of simulated work for a session.
// Run returns an error only for context cancellation or transport
// failures; a step whose status code misses expectations is recorded by
// the portal layer and the behavior moves on.
type Behavior interface {
	// Name returns the profile name.
	Name() string

	// Run executes one scheduling turn against the session.
	Run(ctx context.Context, s *session.Session) error
}

// New returns the behavior for a profile name. The config supplies task
// weights (simple mode) and the time unit scaling intra-chain pauses.
func New(name string, cfg *config.Config) (Behavior, error) {
	switch name {
	case ProfileSimple:
		return NewSimple(cfg.Tasks)
	case ProfileNormal:
		return NewNormal(cfg.TimeUnit), nil
	case ProfileHeavy:
		return NewHeavy(cfg.TimeUnit), nil
	case ProfileStatusChecker:
		return NewStatusPoller(cfg.TimeUnit), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
}

// NewMix builds the weighted population mix from the configured profiles.
func NewMix(profiles []config.ProfileConfig) (*WeightedSet, error) {
	items := make([]WeightedItem, len(profiles))
	for i, p := range profiles {
		items[i] = WeightedItem{Name: p.Name, Weight: p.Weight}
	}
	return NewWeightedSet(items)
}

// statement generates a personal statement for the nth application of a
// session, in the style of the portal's real applicants.
func statement(n int) string {
	return fmt.Sprintf("This is application #%d. %s", n, gofakeit.Paragraph(1, 3, 12, " "))
}

// sleep waits for d or until the context is cancelled.
// Returns false when the context ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// submit posts one application and records the returned id on the session.
// Returns the id and whether the submission succeeded.
func submit(ctx context.Context, s *session.Session) (string, bool) {
	id, err := s.API().SubmitApplication(ctx, s.Token(), statement(s.ApplicationCount()+1))
	if err != nil {
		return "", false
	}
	s.RecordApplication(id)
	return id, true
}

// Simple is the single-profile traffic model: three independent weighted
// tasks (submit / get-details / pay) sharing one session.
type Simple struct {
	tasks *WeightedSet
}

// Task names used by the simple profile.
const (
	taskSubmit = "submit"
	taskGet    = "get"
	taskPay    = "pay"
)

// NewSimple creates the simple combined behavior from the task weights.
func NewSimple(weights config.TaskWeights) (*Simple, error) {
	tasks, err := NewWeightedSet([]WeightedItem{
		{Name: taskSubmit, Weight: weights.Submit},
		{Name: taskGet, Weight: weights.Get},
		{Name: taskPay, Weight: weights.Pay},
	})
	if err != nil {
		return nil, err
	}
	return &Simple{tasks: tasks}, nil
}

// Name returns the profile name.
func (b *Simple) Name() string { return ProfileSimple }

// Run selects one task by weight and executes it.
func (b *Simple) Run(ctx context.Context, s *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	task := b.tasks.Pick()
	api := s.API()

	if !s.Authenticated() {
		api.RecordSkip(endpointForTask(task), "session unauthenticated")
		return nil
	}

	switch task {
	case taskSubmit:
		submit(ctx, s)

	case taskGet:
		id, ok := s.LatestApplication()
		if !ok {
			api.RecordSkip(portal.EndpointGet, "no application submitted yet")
			return nil
		}
		_, _ = api.GetApplication(ctx, s.Token(), id)

	case taskPay:
		id, ok := s.LatestApplication()
		if !ok {
			api.RecordSkip(portal.EndpointCheckout, "no application submitted yet")
			return nil
		}
		_ = api.Checkout(ctx, s.Token(), id)
	}

	return nil
}

func endpointForTask(task string) string {
	switch task {
	case taskGet:
		return portal.EndpointGet
	case taskPay:
		return portal.EndpointCheckout
	default:
		return portal.EndpointSubmit
	}
}

// Normal runs the end-to-end application flow: submit, wait one time unit,
// check status, wait two time units, initiate payment. Dependent steps are
// never invoked when the submission fails.
type Normal struct {
	unit time.Duration
}

// NewNormal creates the normal end-to-end behavior.
func NewNormal(unit time.Duration) *Normal {
	return &Normal{unit: unit}
}

// Name returns the profile name.
func (b *Normal) Name() string { return ProfileNormal }

// Run executes one end-to-end application chain.
func (b *Normal) Run(ctx context.Context, s *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	api := s.API()
	if !s.Authenticated() {
		api.RecordSkip(portal.EndpointSubmit, "session unauthenticated")
		return nil
	}

	id, ok := submit(ctx, s)
	if !ok {
		// Chain is abandoned; the failure is already recorded.
		return nil
	}

	if !sleep(ctx, b.unit) {
		return ctx.Err()
	}
	_, _ = api.GetApplication(ctx, s.Token(), id)

	if !sleep(ctx, 2*b.unit) {
		return ctx.Err()
	}
	_ = api.Checkout(ctx, s.Token(), id)

	return nil
}

// Heavy submits several applications in rapid succession with a short
// fixed pause between submissions; it never chains to status or payment.
type Heavy struct {
	unit time.Duration

	// pick returns the number of submissions per turn; overridable in tests.
	pick func() int
}

// Heavy burst bounds: 3 to 5 submissions per turn, uniformly chosen.
const (
	heavyBurstMin = 3
	heavyBurstMax = 5
)

// NewHeavy creates the heavy bulk-submission behavior.
func NewHeavy(unit time.Duration) *Heavy {
	return &Heavy{
		unit: unit,
		pick: func() int { return heavyBurstMin + randomInt(heavyBurstMax-heavyBurstMin+1) },
	}
}

// Name returns the profile name.
func (b *Heavy) Name() string { return ProfileHeavy }

// Run submits a burst of applications.
func (b *Heavy) Run(ctx context.Context, s *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !s.Authenticated() {
		s.API().RecordSkip(portal.EndpointSubmit, "session unauthenticated")
		return nil
	}

	count := b.pick()
	for i := 0; i < count; i++ {
		submit(ctx, s)
		if i < count-1 && !sleep(ctx, b.unit/2) {
			return ctx.Err()
		}
	}
	return nil
}

// StatusPoller repeatedly polls the status of one previously submitted
// application. It requires at least one recorded application id and picks
// one at random, polling it a fixed number of times per turn.
type StatusPoller struct {
	unit time.Duration
}

// pollCount is the number of status polls per scheduling turn.
const pollCount = 5

// NewStatusPoller creates the status-polling behavior.
func NewStatusPoller(unit time.Duration) *StatusPoller {
	return &StatusPoller{unit: unit}
}

// Name returns the profile name.
func (b *StatusPoller) Name() string { return ProfileStatusChecker }

// Run polls one recorded application id five times.
func (b *StatusPoller) Run(ctx context.Context, s *session.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	api := s.API()
	if !s.Authenticated() {
		api.RecordSkip(portal.EndpointGet, "session unauthenticated")
		return nil
	}

	id, ok := s.RandomApplication()
	if !ok {
		api.RecordSkip(portal.EndpointGet, "no application submitted yet")
		return nil
	}

	for i := 0; i < pollCount; i++ {
		_, _ = api.GetApplication(ctx, s.Token(), id)
		if i < pollCount-1 && !sleep(ctx, b.unit) {
			return ctx.Err()
		}
	}
	return nil
}
