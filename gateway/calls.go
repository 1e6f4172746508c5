// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/chatsync/lib/secret"
)

// LoginWithPassword authenticates with user ID and password. The
// password buffer is read but not closed — the caller retains
// ownership. The password crosses to the heap only at the JSON
// serialization boundary, for the duration of the HTTP call.
func (c *Client) LoginWithPassword(ctx context.Context, userID string, password *secret.Buffer) (*AuthResponse, error) {
	if userID == "" {
		return nil, fmt.Errorf("gateway: user ID is required for login")
	}
	if password == nil {
		return nil, fmt.Errorf("gateway: password is required for login")
	}

	var response AuthResponse
	err := c.call(ctx, "loginWithIdentityCredential", nil, map[string]any{
		"user_id":  userID,
		"password": password.String(),
	}, &response)
	if err != nil {
		return nil, err
	}

	c.logger.Info("logged in to talk service", "user_id", response.UserID)
	return &response, nil
}

// LoginWithToken re-authenticates with a previously issued auth token
// and device certificate. The token buffer is read but not closed.
func (c *Client) LoginWithToken(ctx context.Context, token *secret.Buffer, certificate string) (*AuthResponse, error) {
	if token == nil {
		return nil, fmt.Errorf("gateway: token is required for token login")
	}

	var response AuthResponse
	err := c.call(ctx, "loginWithAuthToken", nil, map[string]any{
		"auth_token":  token.String(),
		"certificate": certificate,
	}, &response)
	if err != nil {
		return nil, err
	}

	c.logger.Info("token login accepted", "user_id", response.UserID)
	return &response, nil
}

// LastOperationRevision returns the head revision of the account's
// operation log. A fresh session starts its cursor here.
func (c *Client) LastOperationRevision(ctx context.Context, token *secret.Buffer) (int64, error) {
	var response struct {
		Revision int64 `json:"revision"`
	}
	if err := c.call(ctx, "getLastOpRevision", token, struct{}{}, &response); err != nil {
		return 0, err
	}
	return response.Revision, nil
}

// Profile returns the contact record for the authenticated account.
func (c *Client) Profile(ctx context.Context, token *secret.Buffer) (*RawContact, error) {
	var response RawContact
	if err := c.call(ctx, "getProfile", token, struct{}{}, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// AllContactIDs returns the MIDs of every contact on the account.
func (c *Client) AllContactIDs(ctx context.Context, token *secret.Buffer) ([]string, error) {
	var response struct {
		IDs []string `json:"ids"`
	}
	if err := c.call(ctx, "getAllContactIds", token, struct{}{}, &response); err != nil {
		return nil, err
	}
	return response.IDs, nil
}

// Contacts returns full contact records for the given MIDs.
func (c *Client) Contacts(ctx context.Context, token *secret.Buffer, ids []string) ([]RawContact, error) {
	var response struct {
		Contacts []RawContact `json:"contacts"`
	}
	err := c.call(ctx, "getContacts", token, map[string]any{"ids": ids}, &response)
	if err != nil {
		return nil, err
	}
	return response.Contacts, nil
}

// JoinedGroupIDs returns the MIDs of groups the account has joined.
func (c *Client) JoinedGroupIDs(ctx context.Context, token *secret.Buffer) ([]string, error) {
	var response struct {
		IDs []string `json:"ids"`
	}
	if err := c.call(ctx, "getGroupIdsJoined", token, struct{}{}, &response); err != nil {
		return nil, err
	}
	return response.IDs, nil
}

// InvitedGroupIDs returns the MIDs of groups the account has a pending
// invitation to.
func (c *Client) InvitedGroupIDs(ctx context.Context, token *secret.Buffer) ([]string, error) {
	var response struct {
		IDs []string `json:"ids"`
	}
	if err := c.call(ctx, "getGroupIdsInvited", token, struct{}{}, &response); err != nil {
		return nil, err
	}
	return response.IDs, nil
}

// Groups returns full group records for the given MIDs.
func (c *Client) Groups(ctx context.Context, token *secret.Buffer, ids []string) ([]RawGroup, error) {
	var response struct {
		Groups []RawGroup `json:"groups"`
	}
	err := c.call(ctx, "getGroups", token, map[string]any{"ids": ids}, &response)
	if err != nil {
		return nil, err
	}
	return response.Groups, nil
}

// Room returns the full room record for the given MID.
func (c *Client) Room(ctx context.Context, token *secret.Buffer, roomID string) (*RawRoom, error) {
	var response RawRoom
	err := c.call(ctx, "getRoom", token, map[string]any{"id": roomID}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// MessageBoxList returns one page of the account's message-box
// listing, starting at the given offset. The server returns at most
// count entries; fewer means the listing is exhausted.
func (c *Client) MessageBoxList(ctx context.Context, token *secret.Buffer, start, count int) ([]MessageBox, error) {
	var response struct {
		Boxes []MessageBox `json:"boxes"`
	}
	err := c.call(ctx, "getMessageBoxCompactWrapUpList", token, map[string]any{
		"start": start,
		"count": count,
	}, &response)
	if err != nil {
		return nil, err
	}
	return response.Boxes, nil
}

// CreateGroup creates a group with the given name and invites the
// given contact MIDs. Returns the new group record.
func (c *Client) CreateGroup(ctx context.Context, token *secret.Buffer, name string, contactIDs []string) (*RawGroup, error) {
	var response RawGroup
	err := c.call(ctx, "createGroup", token, map[string]any{
		"name": name,
		"ids":  contactIDs,
	}, &response)
	if err != nil {
		return nil, err
	}

	c.logger.Info("created group", "group_id", response.MID, "name", name)
	return &response, nil
}

// InviteIntoGroup invites the given contact MIDs into a group.
func (c *Client) InviteIntoGroup(ctx context.Context, token *secret.Buffer, groupID string, contactIDs []string) error {
	return c.call(ctx, "inviteIntoGroup", token, map[string]any{
		"group_id": groupID,
		"ids":      contactIDs,
	}, nil)
}

// AcceptGroupInvitation accepts a pending invitation to the group.
func (c *Client) AcceptGroupInvitation(ctx context.Context, token *secret.Buffer, groupID string) error {
	return c.call(ctx, "acceptGroupInvitation", token, map[string]any{
		"group_id": groupID,
	}, nil)
}

// LeaveGroup leaves the group.
func (c *Client) LeaveGroup(ctx context.Context, token *secret.Buffer, groupID string) error {
	return c.call(ctx, "leaveGroup", token, map[string]any{
		"group_id": groupID,
	}, nil)
}

// CreateRoom creates an ad-hoc room with the given contact MIDs.
// Returns the new room record.
func (c *Client) CreateRoom(ctx context.Context, token *secret.Buffer, contactIDs []string) (*RawRoom, error) {
	var response RawRoom
	err := c.call(ctx, "createRoom", token, map[string]any{
		"ids": contactIDs,
	}, &response)
	if err != nil {
		return nil, err
	}

	c.logger.Info("created room", "room_id", response.MID)
	return &response, nil
}

// InviteIntoRoom invites the given contact MIDs into a room.
func (c *Client) InviteIntoRoom(ctx context.Context, token *secret.Buffer, roomID string, contactIDs []string) error {
	return c.call(ctx, "inviteIntoRoom", token, map[string]any{
		"room_id": roomID,
		"ids":     contactIDs,
	}, nil)
}

// LeaveRoom leaves the room.
func (c *Client) LeaveRoom(ctx context.Context, token *secret.Buffer, roomID string) error {
	return c.call(ctx, "leaveRoom", token, map[string]any{
		"room_id": roomID,
	}, nil)
}

// SendMessage sends a message. seq is a client-chosen sequence number
// for idempotent retries. The server echoes the message record back
// with its assigned ID and creation time.
func (c *Client) SendMessage(ctx context.Context, token *secret.Buffer, message RawMessage, seq int) (*RawMessage, error) {
	var response RawMessage
	err := c.call(ctx, "sendMessage", token, map[string]any{
		"seq":     seq,
		"message": message,
	}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// FetchOperations long-polls the operation log for entries strictly
// after sinceRevision, returning at most maxCount. The server holds
// the connection until operations are available or its own poll
// timeout elapses, in which case the result is empty. Bounded by ctx.
func (c *Client) FetchOperations(ctx context.Context, token *secret.Buffer, sinceRevision int64, maxCount int) ([]Operation, error) {
	var response struct {
		Operations []Operation `json:"operations"`
	}
	err := c.call(ctx, "fetchOperations", token, map[string]any{
		"since": sinceRevision,
		"count": maxCount,
	}, &response)
	if err != nil {
		return nil, err
	}
	return response.Operations, nil
}

// RecentMessages returns the most recent messages of a message box,
// newest first.
func (c *Client) RecentMessages(ctx context.Context, token *secret.Buffer, messageBoxID string, count int) ([]RawMessage, error) {
	var response struct {
		Messages []RawMessage `json:"messages"`
	}
	err := c.call(ctx, "getRecentMessages", token, map[string]any{
		"box_id": messageBoxID,
		"count":  count,
	}, &response)
	if err != nil {
		return nil, err
	}
	return response.Messages, nil
}
