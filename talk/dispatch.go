// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/chatsync/gateway"
)

// CycleKind classifies the result of one dispatcher cycle.
type CycleKind int

const (
	// CycleNoOperation: the fetch returned nothing. Revision cursor
	// untouched.
	CycleNoOperation CycleKind = iota

	// CycleOperation: an operation the engine does not interpret (an
	// unclassified kind, or a message kind with no payload). Passed
	// through raw; directory and revision untouched.
	CycleOperation

	// CycleMessage: a message operation was resolved and the revision
	// cursor advanced past it.
	CycleMessage
)

func (k CycleKind) String() string {
	switch k {
	case CycleNoOperation:
		return "no-operation"
	case CycleOperation:
		return "operation"
	case CycleMessage:
		return "message"
	default:
		return fmt.Sprintf("cycle(%d)", int(k))
	}
}

// Cycle is the result of one dispatcher cycle: exactly one of the
// payload fields is set, per Kind. ResolveErr carries an
// *UnresolvedReferenceError when a message cycle produced a partially
// resolved message; the Message is still populated best-effort.
type Cycle struct {
	Kind       CycleKind
	Operation  *gateway.Operation // CycleOperation
	Message    *Message           // CycleMessage
	Revision   int64              // cursor after this cycle
	ResolveErr error
}

// DispatcherConfig holds configuration for creating a Dispatcher.
type DispatcherConfig struct {
	// Session is the authenticated session to sync. Required.
	Session *Session

	// BatchSize bounds how many operations one fetch may return.
	// Defaults to 50.
	BatchSize int

	// Logger is used for structured logging. If nil, the session's
	// logger.
	Logger *slog.Logger
}

// Dispatcher drives the incremental sync loop. Each RunCycle returns
// exactly one Cycle; a fetched batch is queued internally so every
// operation gets its own cycle. Run one dispatcher per session — the
// pending queue is not safe for concurrent RunCycle calls.
type Dispatcher struct {
	session   *Session
	logger    *slog.Logger
	batchSize int
	pending   []gateway.Operation
}

// NewDispatcher creates a dispatcher for the session.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("talk: DispatcherConfig.Session is required")
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultPageSize
	}
	logger := config.Logger
	if logger == nil {
		logger = config.Session.logger
	}
	return &Dispatcher{
		session:   config.Session,
		logger:    logger,
		batchSize: batchSize,
	}, nil
}

// RunCycle performs one sync cycle: fetch a batch if the queue is
// empty, then classify and process the next queued operation.
//
// A fetch rejected with CONCURRENT_LOGIN returns *SessionConflictError;
// the caller must not retry, another device owns the session now.
// Other fetch errors are returned as-is with the cursor untouched, so
// re-invoking is safe.
func (d *Dispatcher) RunCycle(ctx context.Context) (Cycle, error) {
	if len(d.pending) == 0 {
		operations, err := d.session.fetchOperations(ctx, d.batchSize)
		if err != nil {
			if gateway.IsServiceError(err, gateway.ErrCodeConcurrentLogin) {
				return Cycle{}, &SessionConflictError{Cause: err}
			}
			return Cycle{}, fmt.Errorf("talk: fetching operations: %w", err)
		}
		if len(operations) == 0 {
			return Cycle{Kind: CycleNoOperation, Revision: d.session.Revision()}, nil
		}
		d.pending = operations
	}

	operation := d.pending[0]

	switch operation.Type {
	case gateway.OpSendMessage, gateway.OpReceiveMessage, gateway.OpEndOfOperation:
		if operation.Message == nil {
			// END_OF_OPERATION batch terminators (and malformed
			// message operations) carry no payload. Nothing to
			// process, cursor stays put.
			d.logger.Debug("operation without message payload",
				"type", operation.Type.String(),
				"revision", operation.Revision,
			)
			d.pending = d.pending[1:]
			return Cycle{Kind: CycleOperation, Operation: &operation, Revision: d.session.Revision()}, nil
		}
		cycle, err := d.processMessage(ctx, operation)
		if err != nil {
			// The operation stays queued: it was not processed and
			// the cursor did not move.
			return Cycle{}, err
		}
		d.pending = d.pending[1:]
		return cycle, nil
	default:
		d.logger.Debug("passing through unclassified operation",
			"type", operation.Type.String(),
			"revision", operation.Revision,
		)
		d.pending = d.pending[1:]
		return Cycle{Kind: CycleOperation, Operation: &operation, Revision: d.session.Revision()}, nil
	}
}

// processMessage resolves a message-bearing operation against the
// directory, with at most one repair pass, then advances the cursor
// past it. A session conflict surfaced by the repair pass is fatal:
// the operation is not consumed and the cursor does not move.
func (d *Dispatcher) processMessage(ctx context.Context, operation gateway.Operation) (Cycle, error) {
	raw := operation.Message
	profile := d.session.Profile()

	message, resolved := resolveMessage(raw, d.session.directory, profile)
	if !resolved {
		d.logger.Info("message references unresolved, refreshing directory",
			"message_id", raw.ID,
			"from", raw.From,
			"to", raw.To,
		)
		if err := d.repair(ctx); err != nil {
			return Cycle{}, &SessionConflictError{Cause: err}
		}
		message, resolved = resolveMessage(raw, d.session.directory, profile)
	}

	d.session.AdvanceRevision(operation.Revision)
	cycle := Cycle{
		Kind:     CycleMessage,
		Message:  message,
		Revision: d.session.Revision(),
	}
	if !resolved {
		resolveErr := &UnresolvedReferenceError{MessageID: raw.ID}
		if message.Sender == nil {
			resolveErr.SenderID = raw.From
		}
		if message.Receiver == nil {
			resolveErr.ReceiverID = raw.To
		}
		cycle.ResolveErr = resolveErr
	}
	return cycle, nil
}

// repair refreshes the directory after a failed resolution: groups,
// contacts, then rooms. Individual refresh failures are logged and
// skipped; the retry works with whatever did refresh. The one
// exception is a concurrent-login rejection, which is returned — the
// session is dead and no refresh outcome matters. Called at most once
// per cycle.
func (d *Dispatcher) repair(ctx context.Context) error {
	if err := d.session.RefreshGroups(ctx); err != nil {
		if gateway.IsServiceError(err, gateway.ErrCodeConcurrentLogin) {
			return err
		}
		d.logger.Warn("group refresh during repair failed", "error", err)
	}
	if err := d.session.RefreshContacts(ctx); err != nil {
		if gateway.IsServiceError(err, gateway.ErrCodeConcurrentLogin) {
			return err
		}
		d.logger.Warn("contact refresh during repair failed", "error", err)
	}
	if err := d.session.RefreshActiveRooms(ctx); err != nil {
		if gateway.IsServiceError(err, gateway.ErrCodeConcurrentLogin) {
			return err
		}
		d.logger.Warn("room refresh during repair failed", "error", err)
	}
	return nil
}

// maxFetchFailures bounds consecutive RunCycle errors before Run gives
// up. Any successful cycle resets the count.
const maxFetchFailures = 5

// fetchRetryDelay spaces retries after a transient fetch error.
const fetchRetryDelay = 2 * time.Second

// Run loops RunCycle and sends message and raw-operation cycles to the
// channel until ctx is cancelled or a fatal error occurs. No-operation
// cycles are not forwarded. Transient fetch errors are retried with a
// delay; maxFetchFailures consecutive failures, a session conflict, or
// an invalidated auth state stop the loop.
func (d *Dispatcher) Run(ctx context.Context, cycles chan<- Cycle) error {
	failures := 0
	for {
		cycle, err := d.RunCycle(ctx)
		if err != nil {
			var conflict *SessionConflictError
			if errors.As(err, &conflict) {
				return conflict
			}
			if errors.Is(err, ErrAuthRequired) || ctx.Err() != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			failures++
			if failures >= maxFetchFailures {
				return fmt.Errorf("talk: giving up after %d consecutive sync failures: %w", failures, err)
			}
			d.logger.Warn("sync cycle failed, retrying",
				"error", err,
				"consecutive_failures", failures,
			)
			select {
			case <-time.After(fetchRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		failures = 0

		if cycle.Kind == CycleNoOperation {
			continue
		}
		select {
		case cycles <- cycle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
