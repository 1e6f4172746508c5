// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"slices"
	"strings"
	"sync"
)

// Directory is the local mirror of the account's contacts, groups, and
// rooms. Each store is kept sorted ascending by ID with at most one
// entry per ID; upserting an existing ID replaces the entry in place.
//
// The directory is pure storage: it never talks to the service. The
// session performs the fetches and applies the results here, building
// each batch fully before touching the store so a failed refresh
// leaves the mirror untouched.
//
// All methods are safe for concurrent use.
type Directory struct {
	mu       sync.RWMutex
	contacts []*Contact
	groups   []*Group
	rooms    []*Room
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{}
}

func compareContactID(c *Contact, id string) int { return strings.Compare(c.ID, id) }
func compareGroupID(g *Group, id string) int     { return strings.Compare(g.ID, id) }
func compareRoomID(r *Room, id string) int       { return strings.Compare(r.ID, id) }

// ReplaceContacts swaps the contact store for the given set.
func (d *Directory) ReplaceContacts(contacts []*Contact) {
	sorted := slices.Clone(contacts)
	slices.SortFunc(sorted, func(a, b *Contact) int { return strings.Compare(a.ID, b.ID) })
	sorted = slices.CompactFunc(sorted, func(a, b *Contact) bool { return a.ID == b.ID })

	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = sorted
}

// UpsertContacts inserts or replaces contacts by ID.
func (d *Directory) UpsertContacts(contacts []*Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, contact := range contacts {
		i, found := slices.BinarySearchFunc(d.contacts, contact.ID, compareContactID)
		if found {
			d.contacts[i] = contact
		} else {
			d.contacts = slices.Insert(d.contacts, i, contact)
		}
	}
}

// UpsertGroups inserts or replaces groups by ID. Joined and invited
// refresh paths both land here; they are additive with respect to each
// other.
func (d *Directory) UpsertGroups(groups []*Group) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, group := range groups {
		i, found := slices.BinarySearchFunc(d.groups, group.ID, compareGroupID)
		if found {
			d.groups[i] = group
		} else {
			d.groups = slices.Insert(d.groups, i, group)
		}
	}
}

// UpsertRooms inserts or replaces rooms by ID.
func (d *Directory) UpsertRooms(rooms []*Room) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, room := range rooms {
		i, found := slices.BinarySearchFunc(d.rooms, room.ID, compareRoomID)
		if found {
			d.rooms[i] = room
		} else {
			d.rooms = slices.Insert(d.rooms, i, room)
		}
	}
}

// RemoveGroup removes the group with the given ID, if present.
func (d *Directory) RemoveGroup(groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, found := slices.BinarySearchFunc(d.groups, groupID, compareGroupID); found {
		d.groups = slices.Delete(d.groups, i, i+1)
	}
}

// RemoveRoom removes the room with the given ID, if present.
func (d *Directory) RemoveRoom(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, found := slices.BinarySearchFunc(d.rooms, roomID, compareRoomID); found {
		d.rooms = slices.Delete(d.rooms, i, i+1)
	}
}

// ContactByID returns the contact with the given ID, or nil.
func (d *Directory) ContactByID(contactID string) *Contact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i, found := slices.BinarySearchFunc(d.contacts, contactID, compareContactID); found {
		return d.contacts[i]
	}
	return nil
}

// GroupByID returns the group with the given ID, or nil.
func (d *Directory) GroupByID(groupID string) *Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i, found := slices.BinarySearchFunc(d.groups, groupID, compareGroupID); found {
		return d.groups[i]
	}
	return nil
}

// RoomByID returns the room with the given ID, or nil.
func (d *Directory) RoomByID(roomID string) *Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if i, found := slices.BinarySearchFunc(d.rooms, roomID, compareRoomID); found {
		return d.rooms[i]
	}
	return nil
}

// ContactByName returns the first contact whose display name matches,
// in store order (ascending ID). Display names are not unique; callers
// needing determinism should use IDs.
func (d *Directory) ContactByName(name string) *Contact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, contact := range d.contacts {
		if contact.DisplayName == name {
			return contact
		}
	}
	return nil
}

// GroupByName returns the first group whose name matches, in store
// order.
func (d *Directory) GroupByName(name string) *Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, group := range d.groups {
		if group.Name == name {
			return group
		}
	}
	return nil
}

// Contacts returns a copy of the contact store, sorted by ID.
func (d *Directory) Contacts() []*Contact {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.contacts)
}

// Groups returns a copy of the group store, sorted by ID.
func (d *Directory) Groups() []*Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.groups)
}

// Rooms returns a copy of the room store, sorted by ID.
func (d *Directory) Rooms() []*Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.rooms)
}

// GroupsWith returns the groups the contact is a member of. The view
// is computed on demand from current membership, never stored.
func (d *Directory) GroupsWith(contactID string) []*Group {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var matches []*Group
	for _, group := range d.groups {
		if group.HasMember(contactID) {
			matches = append(matches, group)
		}
	}
	return matches
}

// RoomsWith returns the rooms the contact is a member of, computed on
// demand.
func (d *Directory) RoomsWith(contactID string) []*Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var matches []*Room
	for _, room := range d.rooms {
		if room.HasMember(contactID) {
			matches = append(matches, room)
		}
	}
	return matches
}
