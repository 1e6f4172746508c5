// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/bureau-foundation/chatsync/gateway"
	"github.com/bureau-foundation/chatsync/lib/secret"
)

// fakeGateway implements Gateway with function fields. Calls to an
// unset field fail with a recognizable error so a test exercising an
// unexpected remote path fails loudly instead of hanging or panicking.
type fakeGateway struct {
	loginWithPassword     func(ctx context.Context, userID string, password *secret.Buffer) (*gateway.AuthResponse, error)
	loginWithToken        func(ctx context.Context, token *secret.Buffer, certificate string) (*gateway.AuthResponse, error)
	lastOperationRevision func(ctx context.Context) (int64, error)
	profile               func(ctx context.Context) (*gateway.RawContact, error)
	allContactIDs         func(ctx context.Context) ([]string, error)
	contacts              func(ctx context.Context, ids []string) ([]gateway.RawContact, error)
	joinedGroupIDs        func(ctx context.Context) ([]string, error)
	invitedGroupIDs       func(ctx context.Context) ([]string, error)
	groups                func(ctx context.Context, ids []string) ([]gateway.RawGroup, error)
	room                  func(ctx context.Context, roomID string) (*gateway.RawRoom, error)
	messageBoxList        func(ctx context.Context, start, count int) ([]gateway.MessageBox, error)
	createGroup           func(ctx context.Context, name string, contactIDs []string) (*gateway.RawGroup, error)
	inviteIntoGroup       func(ctx context.Context, groupID string, contactIDs []string) error
	acceptGroupInvitation func(ctx context.Context, groupID string) error
	leaveGroup            func(ctx context.Context, groupID string) error
	createRoom            func(ctx context.Context, contactIDs []string) (*gateway.RawRoom, error)
	inviteIntoRoom        func(ctx context.Context, roomID string, contactIDs []string) error
	leaveRoom             func(ctx context.Context, roomID string) error
	sendMessage           func(ctx context.Context, message gateway.RawMessage, seq int) (*gateway.RawMessage, error)
	fetchOperations       func(ctx context.Context, sinceRevision int64, maxCount int) ([]gateway.Operation, error)
	recentMessages        func(ctx context.Context, messageBoxID string, count int) ([]gateway.RawMessage, error)
	uploadContent         func(ctx context.Context, contentType string, payload io.Reader) (string, error)
}

func errUnexpectedCall(method string) error {
	return fmt.Errorf("unexpected gateway call: %s", method)
}

func (f *fakeGateway) LoginWithPassword(ctx context.Context, userID string, password *secret.Buffer) (*gateway.AuthResponse, error) {
	if f.loginWithPassword == nil {
		return nil, errUnexpectedCall("LoginWithPassword")
	}
	return f.loginWithPassword(ctx, userID, password)
}

func (f *fakeGateway) LoginWithToken(ctx context.Context, token *secret.Buffer, certificate string) (*gateway.AuthResponse, error) {
	if f.loginWithToken == nil {
		return nil, errUnexpectedCall("LoginWithToken")
	}
	return f.loginWithToken(ctx, token, certificate)
}

func (f *fakeGateway) LastOperationRevision(ctx context.Context, _ *secret.Buffer) (int64, error) {
	if f.lastOperationRevision == nil {
		return 0, errUnexpectedCall("LastOperationRevision")
	}
	return f.lastOperationRevision(ctx)
}

func (f *fakeGateway) Profile(ctx context.Context, _ *secret.Buffer) (*gateway.RawContact, error) {
	if f.profile == nil {
		return nil, errUnexpectedCall("Profile")
	}
	return f.profile(ctx)
}

func (f *fakeGateway) AllContactIDs(ctx context.Context, _ *secret.Buffer) ([]string, error) {
	if f.allContactIDs == nil {
		return nil, errUnexpectedCall("AllContactIDs")
	}
	return f.allContactIDs(ctx)
}

func (f *fakeGateway) Contacts(ctx context.Context, _ *secret.Buffer, ids []string) ([]gateway.RawContact, error) {
	if f.contacts == nil {
		return nil, errUnexpectedCall("Contacts")
	}
	return f.contacts(ctx, ids)
}

func (f *fakeGateway) JoinedGroupIDs(ctx context.Context, _ *secret.Buffer) ([]string, error) {
	if f.joinedGroupIDs == nil {
		return nil, errUnexpectedCall("JoinedGroupIDs")
	}
	return f.joinedGroupIDs(ctx)
}

func (f *fakeGateway) InvitedGroupIDs(ctx context.Context, _ *secret.Buffer) ([]string, error) {
	if f.invitedGroupIDs == nil {
		return nil, errUnexpectedCall("InvitedGroupIDs")
	}
	return f.invitedGroupIDs(ctx)
}

func (f *fakeGateway) Groups(ctx context.Context, _ *secret.Buffer, ids []string) ([]gateway.RawGroup, error) {
	if f.groups == nil {
		return nil, errUnexpectedCall("Groups")
	}
	return f.groups(ctx, ids)
}

func (f *fakeGateway) Room(ctx context.Context, _ *secret.Buffer, roomID string) (*gateway.RawRoom, error) {
	if f.room == nil {
		return nil, errUnexpectedCall("Room")
	}
	return f.room(ctx, roomID)
}

func (f *fakeGateway) MessageBoxList(ctx context.Context, _ *secret.Buffer, start, count int) ([]gateway.MessageBox, error) {
	if f.messageBoxList == nil {
		return nil, errUnexpectedCall("MessageBoxList")
	}
	return f.messageBoxList(ctx, start, count)
}

func (f *fakeGateway) CreateGroup(ctx context.Context, _ *secret.Buffer, name string, contactIDs []string) (*gateway.RawGroup, error) {
	if f.createGroup == nil {
		return nil, errUnexpectedCall("CreateGroup")
	}
	return f.createGroup(ctx, name, contactIDs)
}

func (f *fakeGateway) InviteIntoGroup(ctx context.Context, _ *secret.Buffer, groupID string, contactIDs []string) error {
	if f.inviteIntoGroup == nil {
		return errUnexpectedCall("InviteIntoGroup")
	}
	return f.inviteIntoGroup(ctx, groupID, contactIDs)
}

func (f *fakeGateway) AcceptGroupInvitation(ctx context.Context, _ *secret.Buffer, groupID string) error {
	if f.acceptGroupInvitation == nil {
		return errUnexpectedCall("AcceptGroupInvitation")
	}
	return f.acceptGroupInvitation(ctx, groupID)
}

func (f *fakeGateway) LeaveGroup(ctx context.Context, _ *secret.Buffer, groupID string) error {
	if f.leaveGroup == nil {
		return errUnexpectedCall("LeaveGroup")
	}
	return f.leaveGroup(ctx, groupID)
}

func (f *fakeGateway) CreateRoom(ctx context.Context, _ *secret.Buffer, contactIDs []string) (*gateway.RawRoom, error) {
	if f.createRoom == nil {
		return nil, errUnexpectedCall("CreateRoom")
	}
	return f.createRoom(ctx, contactIDs)
}

func (f *fakeGateway) InviteIntoRoom(ctx context.Context, _ *secret.Buffer, roomID string, contactIDs []string) error {
	if f.inviteIntoRoom == nil {
		return errUnexpectedCall("InviteIntoRoom")
	}
	return f.inviteIntoRoom(ctx, roomID, contactIDs)
}

func (f *fakeGateway) LeaveRoom(ctx context.Context, _ *secret.Buffer, roomID string) error {
	if f.leaveRoom == nil {
		return errUnexpectedCall("LeaveRoom")
	}
	return f.leaveRoom(ctx, roomID)
}

func (f *fakeGateway) SendMessage(ctx context.Context, _ *secret.Buffer, message gateway.RawMessage, seq int) (*gateway.RawMessage, error) {
	if f.sendMessage == nil {
		return nil, errUnexpectedCall("SendMessage")
	}
	return f.sendMessage(ctx, message, seq)
}

func (f *fakeGateway) FetchOperations(ctx context.Context, _ *secret.Buffer, sinceRevision int64, maxCount int) ([]gateway.Operation, error) {
	if f.fetchOperations == nil {
		return nil, errUnexpectedCall("FetchOperations")
	}
	return f.fetchOperations(ctx, sinceRevision, maxCount)
}

func (f *fakeGateway) RecentMessages(ctx context.Context, _ *secret.Buffer, messageBoxID string, count int) ([]gateway.RawMessage, error) {
	if f.recentMessages == nil {
		return nil, errUnexpectedCall("RecentMessages")
	}
	return f.recentMessages(ctx, messageBoxID, count)
}

func (f *fakeGateway) UploadContent(ctx context.Context, _ *secret.Buffer, contentType string, payload io.Reader) (string, error) {
	if f.uploadContent == nil {
		return "", errUnexpectedCall("UploadContent")
	}
	return f.uploadContent(ctx, contentType, payload)
}

var _ Gateway = (*fakeGateway)(nil)

// newAuthedSession creates a session holding a token, with a profile
// in place, skipping the login flow.
func newAuthedSession(t *testing.T, fake *fakeGateway) *Session {
	t.Helper()
	token, err := secret.NewFromBytes([]byte("tok"))
	if err != nil {
		t.Fatalf("creating token buffer: %v", err)
	}
	session, err := NewSession(SessionConfig{
		Gateway:     fake,
		Token:       token,
		Certificate: "cert",
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	session.profile = &Contact{ID: "u-self", DisplayName: "Self"}
	session.userID = "u-self"
	return session
}

func serviceError(code string) *gateway.ServiceError {
	return &gateway.ServiceError{Code: code, Message: "test", StatusCode: 400}
}
