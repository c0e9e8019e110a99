package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/marlonsc/mcb/internal/errors"
	"github.com/marlonsc/mcb/internal/events"
)

// Orchestrator applies triggers to workflow sessions: it consults the FSM
// table, persists the transition at the expected version, appends history,
// and publishes a state-changed event. Optimistic concurrency is the only
// mechanism guarding session consistency.
type Orchestrator struct {
	repo      Repo
	publisher events.Publisher
	now       func() time.Time
}

// NewOrchestrator creates the orchestrator.
func NewOrchestrator(repo Repo, publisher events.Publisher) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{repo: repo, publisher: publisher, now: time.Now}
}

// CreateSession creates a session in the initial state with an empty
// history and announces it.
func (o *Orchestrator) CreateSession(ctx context.Context, projectID string) (*Session, error) {
	s, err := o.repo.CreateSession(ctx, projectID)
	if err != nil {
		return nil, err
	}

	o.publish(ctx, events.SessionStateChanged{
		SessionID: s.ID,
		To:        string(s.CurrentState),
	})
	return s, nil
}

// ApplyTrigger validates and persists one transition, returning the new
// state. On InvalidTransition or ConcurrencyConflict nothing is appended
// and the stored state is unchanged.
func (o *Orchestrator) ApplyTrigger(ctx context.Context, sessionID string, trigger Trigger) (State, error) {
	s, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}

	next, ok := NextState(s.CurrentState, trigger.Tag)
	if !ok {
		return "", errors.InvalidTransition(string(s.CurrentState), string(trigger.Tag))
	}

	if err := o.repo.UpdateState(ctx, sessionID, next, s.Version); err != nil {
		return "", err
	}

	transition := Transition{
		SessionID: sessionID,
		Trigger:   trigger.String(),
		FromState: s.CurrentState,
		ToState:   next,
		At:        o.now(),
	}
	if err := o.repo.AppendTransition(ctx, transition); err != nil {
		return "", err
	}

	o.publish(ctx, events.SessionStateChanged{
		SessionID: sessionID,
		From:      string(s.CurrentState),
		To:        string(next),
		Trigger:   string(trigger.Tag),
	})

	return next, nil
}

// GetSession loads one session.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (*Session, error) {
	return o.repo.GetSession(ctx, id)
}

// GetHistory returns a session's transition history in append order.
func (o *Orchestrator) GetHistory(ctx context.Context, sessionID string) ([]Transition, error) {
	return o.repo.GetHistory(ctx, sessionID)
}

// publish is fire-and-forget; a failed publish never fails the transition.
func (o *Orchestrator) publish(ctx context.Context, payload events.SessionStateChanged) {
	err := o.publisher.Publish(ctx, events.Event{
		Kind:                events.KindSessionStateChanged,
		SessionStateChanged: &payload,
	})
	if err != nil {
		slog.Warn("workflow_event_publish_failed",
			slog.String("session_id", payload.SessionID),
			slog.String("error", err.Error()))
	}
}
