// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/chatsync/gateway"
	"github.com/bureau-foundation/chatsync/lib/testutil"
)

func newTestDispatcher(t *testing.T, fake *fakeGateway) (*Dispatcher, *Session) {
	t.Helper()
	session := newAuthedSession(t, fake)
	dispatcher, err := NewDispatcher(DispatcherConfig{Session: session})
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	return dispatcher, session
}

func messageOp(revision int64, from, to string, toType gateway.ToType) gateway.Operation {
	return gateway.Operation{
		Revision: revision,
		Type:     gateway.OpReceiveMessage,
		Message: &gateway.RawMessage{
			ID:     "m1",
			From:   from,
			To:     to,
			ToType: toType,
			Text:   "hello",
		},
	}
}

func TestRunCycleEmptyFetch(t *testing.T) {
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			return nil, nil
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)
	session.AdvanceRevision(5)

	cycle, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if cycle.Kind != CycleNoOperation {
		t.Errorf("kind = %v, want no-operation", cycle.Kind)
	}
	if session.Revision() != 5 {
		t.Errorf("empty fetch moved the cursor to %d", session.Revision())
	}
}

func TestRunCycleResolvesMessage(t *testing.T) {
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			if since != 0 {
				t.Errorf("fetch started at %d, want 0", since)
			}
			return []gateway.Operation{messageOp(7, "c-bob", "u-self", gateway.ToUser)}, nil
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)
	session.Directory().ReplaceContacts([]*Contact{{ID: "c-bob", DisplayName: "Bob"}})

	cycle, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if cycle.Kind != CycleMessage {
		t.Fatalf("kind = %v, want message", cycle.Kind)
	}
	if cycle.ResolveErr != nil {
		t.Errorf("unexpected resolve error: %v", cycle.ResolveErr)
	}
	if cycle.Message.Sender.PeerID() != "c-bob" {
		t.Errorf("sender = %v", cycle.Message.Sender)
	}
	if cycle.Message.Receiver.PeerID() != "u-self" {
		t.Errorf("receiver = %v", cycle.Message.Receiver)
	}
	if session.Revision() != 7 {
		t.Errorf("cursor = %d, want 7", session.Revision())
	}
}

func TestRunCycleQueuesBatch(t *testing.T) {
	// One fetch returns two operations; each must get its own cycle
	// with no second fetch in between.
	fetches := 0
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			fetches++
			if fetches > 1 {
				t.Fatal("second fetch before the queue drained")
			}
			first := messageOp(1, "c-bob", "u-self", gateway.ToUser)
			second := messageOp(2, "c-bob", "u-self", gateway.ToUser)
			second.Message.ID = "m2"
			return []gateway.Operation{first, second}, nil
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)
	session.Directory().ReplaceContacts([]*Contact{{ID: "c-bob"}})

	first, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("first cycle failed: %v", err)
	}
	if first.Message.ID != "m1" || session.Revision() != 1 {
		t.Errorf("first cycle: message %s, cursor %d", first.Message.ID, session.Revision())
	}

	second, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle failed: %v", err)
	}
	if second.Message.ID != "m2" || session.Revision() != 2 {
		t.Errorf("second cycle: message %s, cursor %d", second.Message.ID, session.Revision())
	}
}

func TestRunCycleGroupMemberFallback(t *testing.T) {
	// The sender is not a contact, but the receiving group's member
	// list has them. No repair must run: the fake has no refresh
	// functions, so a repair attempt would log (not fail), but the
	// resolution must already succeed via the member list.
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			return []gateway.Operation{messageOp(3, "c-stranger", "g1", gateway.ToGroup)}, nil
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)
	session.Directory().UpsertGroups([]*Group{{
		ID:      "g1",
		Name:    "Team",
		Joined:  true,
		Members: []*Contact{{ID: "c-stranger", DisplayName: "Stranger"}},
	}})

	cycle, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if cycle.ResolveErr != nil {
		t.Fatalf("unexpected resolve error: %v", cycle.ResolveErr)
	}
	if cycle.Message.Sender.PeerID() != "c-stranger" {
		t.Errorf("sender = %v, want group member c-stranger", cycle.Message.Sender)
	}
	if cycle.Message.Receiver.Kind() != KindGroup {
		t.Errorf("receiver kind = %v, want group", cycle.Message.Receiver.Kind())
	}
	if cycle.Message.ToType != KindGroup {
		t.Errorf("ToType = %v, want group", cycle.Message.ToType)
	}
}

func TestRunCycleSingleRepairPass(t *testing.T) {
	// The sender is unknown; the repair pass pulls in the contact and
	// the retry resolves. Each refresh endpoint must be hit exactly
	// once.
	refreshCalls := map[string]int{}
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			return []gateway.Operation{messageOp(4, "c-new", "u-self", gateway.ToUser)}, nil
		},
		joinedGroupIDs: func(context.Context) ([]string, error) {
			refreshCalls["groups"]++
			return nil, nil
		},
		invitedGroupIDs: func(context.Context) ([]string, error) { return nil, nil },
		allContactIDs: func(context.Context) ([]string, error) {
			refreshCalls["contacts"]++
			return []string{"c-new"}, nil
		},
		contacts: func(_ context.Context, ids []string) ([]gateway.RawContact, error) {
			return []gateway.RawContact{{MID: "c-new", DisplayName: "New"}}, nil
		},
		messageBoxList: func(_ context.Context, start, count int) ([]gateway.MessageBox, error) {
			refreshCalls["rooms"]++
			return nil, nil
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)

	cycle, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if cycle.ResolveErr != nil {
		t.Fatalf("repair pass did not resolve: %v", cycle.ResolveErr)
	}
	if cycle.Message.Sender.PeerID() != "c-new" {
		t.Errorf("sender = %v", cycle.Message.Sender)
	}
	for endpoint, calls := range refreshCalls {
		if calls != 1 {
			t.Errorf("%s refreshed %d times, want exactly 1", endpoint, calls)
		}
	}
	if session.Revision() != 4 {
		t.Errorf("cursor = %d, want 4", session.Revision())
	}
}

func TestRunCycleUnresolvedAfterRepair(t *testing.T) {
	// Repair finds nothing; the cycle still emits the best-effort
	// message alongside the typed error, and the cursor advances so
	// the poison operation is not re-fetched forever.
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			return []gateway.Operation{messageOp(9, "c-ghost", "u-self", gateway.ToUser)}, nil
		},
		joinedGroupIDs:  func(context.Context) ([]string, error) { return nil, nil },
		invitedGroupIDs: func(context.Context) ([]string, error) { return nil, nil },
		allContactIDs:   func(context.Context) ([]string, error) { return nil, nil },
		messageBoxList: func(_ context.Context, start, count int) ([]gateway.MessageBox, error) {
			return nil, nil
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)

	cycle, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	var unresolved *UnresolvedReferenceError
	if !errors.As(cycle.ResolveErr, &unresolved) {
		t.Fatalf("expected UnresolvedReferenceError, got: %v", cycle.ResolveErr)
	}
	if unresolved.SenderID != "c-ghost" {
		t.Errorf("unresolved sender = %q", unresolved.SenderID)
	}
	if unresolved.ReceiverID != "" {
		t.Errorf("receiver should have resolved to the own profile, got unresolved %q", unresolved.ReceiverID)
	}
	if cycle.Message == nil || cycle.Message.Text != "hello" {
		t.Error("best-effort message missing")
	}
	// The addressing kind survives even though resolution failed.
	if cycle.Message.ToType != KindContact {
		t.Errorf("ToType = %v, want contact", cycle.Message.ToType)
	}
	if session.Revision() != 9 {
		t.Errorf("cursor = %d, want 9", session.Revision())
	}
}

func TestRunCycleRepairSessionConflict(t *testing.T) {
	// The message's sender is unknown, and by the time the repair pass
	// refreshes the directory another device has taken the session.
	// The conflict must surface as fatal: no message cycle, no cursor
	// advance, and the operation stays queued (no refetch).
	fetches := 0
	conflicted := func(context.Context) ([]string, error) {
		return nil, serviceError(gateway.ErrCodeConcurrentLogin)
	}
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			fetches++
			return []gateway.Operation{messageOp(6, "c-ghost", "u-self", gateway.ToUser)}, nil
		},
		joinedGroupIDs:  conflicted,
		invitedGroupIDs: conflicted,
		allContactIDs:   conflicted,
		messageBoxList: func(_ context.Context, start, count int) ([]gateway.MessageBox, error) {
			return nil, serviceError(gateway.ErrCodeConcurrentLogin)
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)

	_, err := dispatcher.RunCycle(context.Background())
	var conflict *SessionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SessionConflictError from repair pass, got: %v", err)
	}
	if session.Revision() != 0 {
		t.Errorf("fatal repair advanced the cursor to %d", session.Revision())
	}

	// The queued operation is still there: a second cycle retries it
	// without fetching again.
	_, err = dispatcher.RunCycle(context.Background())
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SessionConflictError on retry, got: %v", err)
	}
	if fetches != 1 {
		t.Errorf("operation was refetched %d times, want 1 fetch total", fetches)
	}
}

func TestRunCyclePassesThroughUnclassifiedOps(t *testing.T) {
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			return []gateway.Operation{
				{Revision: 12, Type: gateway.OpType(40)}, // notification kind
			}, nil
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)
	session.AdvanceRevision(5)

	cycle, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if cycle.Kind != CycleOperation {
		t.Fatalf("kind = %v, want operation", cycle.Kind)
	}
	if cycle.Operation.Revision != 12 {
		t.Errorf("raw operation not carried: %+v", cycle.Operation)
	}
	if session.Revision() != 5 {
		t.Errorf("unclassified operation moved the cursor to %d", session.Revision())
	}
}

func TestRunCycleEndOfOperationWithoutPayload(t *testing.T) {
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			return []gateway.Operation{{Revision: 20, Type: gateway.OpEndOfOperation}}, nil
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)

	cycle, err := dispatcher.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if cycle.Kind != CycleOperation {
		t.Errorf("kind = %v, want operation", cycle.Kind)
	}
	if session.Revision() != 0 {
		t.Errorf("payload-less terminator moved the cursor to %d", session.Revision())
	}
}

func TestRunCycleSessionConflict(t *testing.T) {
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			return nil, serviceError(gateway.ErrCodeConcurrentLogin)
		},
	}
	dispatcher, _ := newTestDispatcher(t, fake)

	_, err := dispatcher.RunCycle(context.Background())
	var conflict *SessionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SessionConflictError, got: %v", err)
	}
}

func TestRunStopsOnSessionConflict(t *testing.T) {
	// One message, then the service reports a concurrent login. Run
	// must forward the message and stop with the conflict, never
	// retrying the fatal fetch.
	fetches := 0
	fake := &fakeGateway{
		fetchOperations: func(_ context.Context, since int64, max int) ([]gateway.Operation, error) {
			fetches++
			switch fetches {
			case 1:
				return []gateway.Operation{messageOp(1, "c-bob", "u-self", gateway.ToUser)}, nil
			case 2:
				return nil, serviceError(gateway.ErrCodeConcurrentLogin)
			default:
				t.Error("fetch retried after session conflict")
				return nil, serviceError(gateway.ErrCodeConcurrentLogin)
			}
		},
	}
	dispatcher, session := newTestDispatcher(t, fake)
	session.Directory().ReplaceContacts([]*Contact{{ID: "c-bob"}})

	cycles := make(chan Cycle, 1)
	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Run(context.Background(), cycles)
	}()

	cycle := testutil.RequireReceive(t, cycles, 5*time.Second, "first message cycle")
	if cycle.Kind != CycleMessage {
		t.Errorf("kind = %v, want message", cycle.Kind)
	}

	err := testutil.RequireReceive(t, done, 5*time.Second, "run loop exit")
	var conflict *SessionConflictError
	if !errors.As(err, &conflict) {
		t.Errorf("expected SessionConflictError, got: %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	fake := &fakeGateway{
		fetchOperations: func(ctx context.Context, since int64, max int) ([]gateway.Operation, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	dispatcher, _ := newTestDispatcher(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- dispatcher.Run(ctx, make(chan Cycle))
	}()

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "run loop exit"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}
