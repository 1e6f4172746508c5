// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import "fmt"

// AuthResponse is returned by LoginWithPassword and LoginWithToken.
// Certificate is only issued on the first credential login from a
// device; subsequent token logins echo it back.
type AuthResponse struct {
	UserID      string `json:"user_id"`
	AuthToken   string `json:"auth_token"`
	Certificate string `json:"certificate,omitempty"`
}

// RawContact is the wire record for a contact. The MID is the
// service-wide opaque identifier used for every entity kind.
type RawContact struct {
	MID         string `json:"mid"`
	DisplayName string `json:"display_name"`
	StatusText  string `json:"status_text,omitempty"`
	IconURL     string `json:"icon_url,omitempty"`
}

// RawGroup is the wire record for a group. Members and invitees are
// full contact records — the server denormalizes them so a client can
// resolve group messages without a separate contact fetch.
type RawGroup struct {
	MID      string       `json:"mid"`
	Name     string       `json:"name"`
	Creator  *RawContact  `json:"creator,omitempty"`
	Members  []RawContact `json:"members"`
	Invitees []RawContact `json:"invitees,omitempty"`
}

// RawRoom is the wire record for an ad-hoc multi-user room. Rooms have
// members but no name.
type RawRoom struct {
	MID      string       `json:"mid"`
	Contacts []RawContact `json:"contacts"`
}

// ToType identifies what kind of peer a message is addressed to.
type ToType string

const (
	ToUser  ToType = "USER"
	ToRoom  ToType = "ROOM"
	ToGroup ToType = "GROUP"
)

// RawMessage is the wire record for a message. CreatedTime is
// milliseconds since the Unix epoch. ContentType is only meaningful
// when HasContent is set.
type RawMessage struct {
	ID              string            `json:"id,omitempty"`
	From            string            `json:"from"`
	To              string            `json:"to"`
	ToType          ToType            `json:"to_type"`
	Text            string            `json:"text,omitempty"`
	CreatedTime     int64             `json:"created_time,omitempty"`
	HasContent      bool              `json:"has_content,omitempty"`
	ContentType     int               `json:"content_type,omitempty"`
	ContentPreview  []byte            `json:"content_preview,omitempty"`
	ContentMetadata map[string]string `json:"content_metadata,omitempty"`
}

// OpType is the kind of an entry in the server's operation log. The
// numeric values are protocol constants assigned by the service.
type OpType int

const (
	// OpEndOfOperation terminates a fetch batch. It carries the head
	// revision and, on some server versions, an echo of the last
	// message payload.
	OpEndOfOperation OpType = 0

	// OpSendMessage is a message sent by this account from another
	// device.
	OpSendMessage OpType = 25

	// OpReceiveMessage is a message delivered to this account.
	OpReceiveMessage OpType = 26
)

// String returns the protocol name of the operation type. Kinds the
// engine does not classify are formatted numerically.
func (t OpType) String() string {
	switch t {
	case OpEndOfOperation:
		return "END_OF_OPERATION"
	case OpSendMessage:
		return "SEND_MESSAGE"
	case OpReceiveMessage:
		return "RECEIVE_MESSAGE"
	default:
		return fmt.Sprintf("OPERATION(%d)", int(t))
	}
}

// Operation is one entry of the remote operation log. Message is set
// only for message-bearing kinds.
type Operation struct {
	Revision int64       `json:"revision"`
	Type     OpType      `json:"type"`
	Message  *RawMessage `json:"message,omitempty"`
}

// BoxType identifies what kind of conversation a message box belongs to.
type BoxType string

const (
	BoxUser  BoxType = "USER"
	BoxRoom  BoxType = "ROOM"
	BoxGroup BoxType = "GROUP"
)

// MessageBox is one entry of the paged message-box listing. The ID is
// the MID of the peer the box belongs to (contact, room, or group).
type MessageBox struct {
	ID      string  `json:"id"`
	BoxType BoxType `json:"box_type"`
}
