// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/chatsync/gateway"
)

// ErrAuthRequired is returned by session operations invoked before a
// successful login or after the auth state has been invalidated. No
// remote call is made.
var ErrAuthRequired = errors.New("talk: session is not authenticated")

// ErrAlreadyJoined is returned by AcceptGroupInvitation when the local
// directory already records the group as joined. No remote call is
// made.
var ErrAlreadyJoined = errors.New("talk: group is already joined")

// SessionConflictError indicates the service reported that another
// device logged in and took over the session. It is fatal to the sync
// loop: continuing to poll would fight the other device for the
// session.
type SessionConflictError struct {
	Cause error
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("talk: session taken over by a concurrent login: %v", e.Cause)
}

func (e *SessionConflictError) Unwrap() error { return e.Cause }

// UnresolvedReferenceError records which side of a message could not
// be resolved against the directory after the repair pass. It is
// surfaced alongside the best-effort Message, not instead of it.
type UnresolvedReferenceError struct {
	MessageID  string
	SenderID   string // empty if the sender resolved
	ReceiverID string // empty if the receiver resolved
}

func (e *UnresolvedReferenceError) Error() string {
	switch {
	case e.SenderID != "" && e.ReceiverID != "":
		return fmt.Sprintf("talk: message %s references unknown sender %s and receiver %s", e.MessageID, e.SenderID, e.ReceiverID)
	case e.SenderID != "":
		return fmt.Sprintf("talk: message %s references unknown sender %s", e.MessageID, e.SenderID)
	default:
		return fmt.Sprintf("talk: message %s references unknown receiver %s", e.MessageID, e.ReceiverID)
	}
}

// IsAuthInvalid reports whether err is the service's rejection of the
// session's credentials or token.
func IsAuthInvalid(err error) bool {
	return gateway.IsServiceError(err, gateway.ErrCodeAuthFailed)
}
