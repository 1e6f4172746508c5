// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"time"

	"github.com/bureau-foundation/chatsync/gateway"
)

// Message is a fully resolved chat message. Sender and Receiver are
// resolved against the directory exactly once, at construction; a side
// that could not be resolved is nil and the construction reports it.
// ToType carries the wire addressing kind independently of Receiver,
// so a message emitted with an unresolved receiver still tells the
// caller what kind of peer it was addressed to.
type Message struct {
	ID              string
	Text            string
	HasContent      bool
	ContentType     ContentType
	ContentPreview  []byte
	ContentMetadata map[string]string
	Sender          Peer
	Receiver        Peer
	ToType          PeerKind
	CreatedAt       time.Time
}

// resolveMessage builds a Message from the wire record, resolving
// sender and receiver against the directory. self is the session's own
// profile, which the directory does not hold but which messages
// routinely reference on both sides. If the sender is not a known
// contact and the receiver is a group, the group's member list is
// scanned as a fallback (group records denormalize member contacts, so
// a group message can resolve without the sender being a direct
// contact).
//
// The second return reports whether both sides resolved. The
// constructor performs no fetches and no repair; that is the
// dispatcher's job.
func resolveMessage(raw *gateway.RawMessage, directory *Directory, self *Contact) (*Message, bool) {
	message := &Message{
		ID:              raw.ID,
		Text:            raw.Text,
		HasContent:      raw.HasContent,
		ContentType:     ContentType(raw.ContentType),
		ContentPreview:  raw.ContentPreview,
		ContentMetadata: raw.ContentMetadata,
		ToType:          peerKindOf(raw.ToType),
	}
	if raw.CreatedTime != 0 {
		message.CreatedAt = time.UnixMilli(raw.CreatedTime)
	}

	message.Receiver = resolvePeer(raw.To, raw.ToType, directory, self)
	message.Sender = resolveSender(raw.From, message.Receiver, directory, self)

	return message, message.Sender != nil && message.Receiver != nil
}

// peerKindOf maps the wire addressing kind to the Peer variant kind.
// Unrecognized wire values map to KindContact, matching the USER
// default in resolution.
func peerKindOf(toType gateway.ToType) PeerKind {
	switch toType {
	case gateway.ToGroup:
		return KindGroup
	case gateway.ToRoom:
		return KindRoom
	default:
		return KindContact
	}
}

func resolvePeer(id string, toType gateway.ToType, directory *Directory, self *Contact) Peer {
	switch toType {
	case gateway.ToGroup:
		if group := directory.GroupByID(id); group != nil {
			return group
		}
	case gateway.ToRoom:
		if room := directory.RoomByID(id); room != nil {
			return room
		}
	default:
		if self != nil && id == self.ID {
			return self
		}
		if contact := directory.ContactByID(id); contact != nil {
			return contact
		}
	}
	return nil
}

func resolveSender(id string, receiver Peer, directory *Directory, self *Contact) Peer {
	if self != nil && id == self.ID {
		return self
	}
	if contact := directory.ContactByID(id); contact != nil {
		return contact
	}
	if group, ok := receiver.(*Group); ok {
		if member := group.memberByID(id); member != nil {
			return member
		}
	}
	return nil
}
