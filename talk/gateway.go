// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"context"
	"io"

	"github.com/bureau-foundation/chatsync/gateway"
	"github.com/bureau-foundation/chatsync/lib/secret"
)

// Gateway is the remote surface the session engine depends on. It is
// satisfied by *gateway.Client; tests substitute function-field fakes.
// The gateway is stateless with respect to authentication: the session
// passes its token on every authenticated call.
type Gateway interface {
	LoginWithPassword(ctx context.Context, userID string, password *secret.Buffer) (*gateway.AuthResponse, error)
	LoginWithToken(ctx context.Context, token *secret.Buffer, certificate string) (*gateway.AuthResponse, error)

	LastOperationRevision(ctx context.Context, token *secret.Buffer) (int64, error)
	Profile(ctx context.Context, token *secret.Buffer) (*gateway.RawContact, error)
	AllContactIDs(ctx context.Context, token *secret.Buffer) ([]string, error)
	Contacts(ctx context.Context, token *secret.Buffer, ids []string) ([]gateway.RawContact, error)
	JoinedGroupIDs(ctx context.Context, token *secret.Buffer) ([]string, error)
	InvitedGroupIDs(ctx context.Context, token *secret.Buffer) ([]string, error)
	Groups(ctx context.Context, token *secret.Buffer, ids []string) ([]gateway.RawGroup, error)
	Room(ctx context.Context, token *secret.Buffer, roomID string) (*gateway.RawRoom, error)
	MessageBoxList(ctx context.Context, token *secret.Buffer, start, count int) ([]gateway.MessageBox, error)

	CreateGroup(ctx context.Context, token *secret.Buffer, name string, contactIDs []string) (*gateway.RawGroup, error)
	InviteIntoGroup(ctx context.Context, token *secret.Buffer, groupID string, contactIDs []string) error
	AcceptGroupInvitation(ctx context.Context, token *secret.Buffer, groupID string) error
	LeaveGroup(ctx context.Context, token *secret.Buffer, groupID string) error
	CreateRoom(ctx context.Context, token *secret.Buffer, contactIDs []string) (*gateway.RawRoom, error)
	InviteIntoRoom(ctx context.Context, token *secret.Buffer, roomID string, contactIDs []string) error
	LeaveRoom(ctx context.Context, token *secret.Buffer, roomID string) error

	SendMessage(ctx context.Context, token *secret.Buffer, message gateway.RawMessage, seq int) (*gateway.RawMessage, error)
	FetchOperations(ctx context.Context, token *secret.Buffer, sinceRevision int64, maxCount int) ([]gateway.Operation, error)
	RecentMessages(ctx context.Context, token *secret.Buffer, messageBoxID string, count int) ([]gateway.RawMessage, error)
	UploadContent(ctx context.Context, token *secret.Buffer, contentType string, payload io.Reader) (string, error)
}

var _ Gateway = (*gateway.Client)(nil)
