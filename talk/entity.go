// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"fmt"

	"github.com/bureau-foundation/chatsync/gateway"
)

// PeerKind discriminates the Peer variant. Every entity that can send
// or receive a message carries exactly one kind.
type PeerKind int

const (
	KindContact PeerKind = iota + 1
	KindGroup
	KindRoom
)

func (k PeerKind) String() string {
	switch k {
	case KindContact:
		return "contact"
	case KindGroup:
		return "group"
	case KindRoom:
		return "room"
	default:
		return fmt.Sprintf("peer(%d)", int(k))
	}
}

// Peer is the closed variant over Contact, Group, and Room: anything a
// message can be addressed to or attributed to. Callers switch on
// Kind() rather than type-asserting.
type Peer interface {
	PeerID() string
	Kind() PeerKind
}

// Contact is a person on the service. The ID is the service-wide
// opaque MID.
type Contact struct {
	ID          string `cbor:"id"`
	DisplayName string `cbor:"display_name"`
	StatusText  string `cbor:"status_text,omitempty"`
	IconURL     string `cbor:"icon_url,omitempty"`
}

func (c *Contact) PeerID() string { return c.ID }
func (c *Contact) Kind() PeerKind { return KindContact }

// Group is a named, persistent conversation with explicit membership.
// Joined distinguishes groups the account belongs to from groups it
// has only been invited to.
type Group struct {
	ID       string     `cbor:"id"`
	Name     string     `cbor:"name"`
	Creator  *Contact   `cbor:"creator,omitempty"`
	Members  []*Contact `cbor:"members"`
	Invitees []*Contact `cbor:"invitees,omitempty"`
	Joined   bool       `cbor:"joined"`
}

func (g *Group) PeerID() string { return g.ID }
func (g *Group) Kind() PeerKind { return KindGroup }

// HasMember reports whether the contact is a current member of the
// group. Invitees do not count.
func (g *Group) HasMember(contactID string) bool {
	return g.memberByID(contactID) != nil
}

func (g *Group) memberByID(contactID string) *Contact {
	for _, member := range g.Members {
		if member.ID == contactID {
			return member
		}
	}
	return nil
}

// Room is an ad-hoc multi-user conversation. Rooms have members but no
// name.
type Room struct {
	ID      string     `cbor:"id"`
	Members []*Contact `cbor:"members"`
}

func (r *Room) PeerID() string { return r.ID }
func (r *Room) Kind() PeerKind { return KindRoom }

// HasMember reports whether the contact is a member of the room.
func (r *Room) HasMember(contactID string) bool {
	for _, member := range r.Members {
		if member.ID == contactID {
			return true
		}
	}
	return false
}

func newContact(raw gateway.RawContact) *Contact {
	return &Contact{
		ID:          raw.MID,
		DisplayName: raw.DisplayName,
		StatusText:  raw.StatusText,
		IconURL:     raw.IconURL,
	}
}

func newContacts(raws []gateway.RawContact) []*Contact {
	if len(raws) == 0 {
		return nil
	}
	contacts := make([]*Contact, len(raws))
	for i, raw := range raws {
		contacts[i] = newContact(raw)
	}
	return contacts
}

func newGroup(raw gateway.RawGroup, joined bool) *Group {
	group := &Group{
		ID:       raw.MID,
		Name:     raw.Name,
		Members:  newContacts(raw.Members),
		Invitees: newContacts(raw.Invitees),
		Joined:   joined,
	}
	if raw.Creator != nil {
		group.Creator = newContact(*raw.Creator)
	}
	return group
}

func newRoom(raw gateway.RawRoom) *Room {
	return &Room{
		ID:      raw.MID,
		Members: newContacts(raw.Contacts),
	}
}
