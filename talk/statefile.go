// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/bureau-foundation/chatsync/lib/codec"
	"github.com/bureau-foundation/chatsync/lib/secret"
)

// stateMagic prefixes the state file: deterministic CBOR compressed
// with zstd. The trailing byte is the format version.
var stateMagic = []byte{'C', 'S', 'Z', 1}

// SessionState is a snapshot of a session: auth material, revision
// cursor, profile, and directory contents. A restored session resumes
// syncing from its revision cursor instead of re-bootstrapping.
type SessionState struct {
	UserID      string     `cbor:"user_id"`
	AuthToken   string     `cbor:"auth_token"`
	Certificate string     `cbor:"certificate,omitempty"`
	Revision    int64      `cbor:"revision"`
	Profile     *Contact   `cbor:"profile,omitempty"`
	Contacts    []*Contact `cbor:"contacts,omitempty"`
	Groups      []*Group   `cbor:"groups,omitempty"`
	Rooms       []*Room    `cbor:"rooms,omitempty"`
	SavedAt     int64      `cbor:"saved_at"` // unix seconds
}

// ExportState snapshots the session. Fails with ErrAuthRequired if the
// session holds no token: an unauthenticated snapshot is useless for
// resumption.
func (s *Session) ExportState() (*SessionState, error) {
	s.mu.Lock()
	if s.token == nil {
		s.mu.Unlock()
		return nil, ErrAuthRequired
	}
	state := &SessionState{
		UserID:      s.userID,
		AuthToken:   s.token.String(),
		Certificate: s.certificate,
		Profile:     s.profile,
		SavedAt:     time.Now().Unix(),
	}
	s.mu.Unlock()

	state.Revision = s.Revision()
	state.Contacts = s.directory.Contacts()
	state.Groups = s.directory.Groups()
	state.Rooms = s.directory.Rooms()
	return state, nil
}

// RestoreSession creates a session from a saved state. The token and
// certificate from the state take effect; config.Token and
// config.Password are ignored. The directory is seeded from the
// snapshot and the revision cursor resumes where the save left off.
// Login must still be called to re-authenticate the token with the
// service.
func RestoreSession(config SessionConfig, state *SessionState) (*Session, error) {
	if state.AuthToken == "" {
		return nil, fmt.Errorf("talk: saved state holds no auth token")
	}
	token, err := secret.NewFromBytes([]byte(state.AuthToken))
	if err != nil {
		return nil, fmt.Errorf("talk: restoring token: %w", err)
	}

	config.UserID = state.UserID
	config.Password = nil
	config.Token = token
	config.Certificate = state.Certificate

	session, err := NewSession(config)
	if err != nil {
		token.Close()
		return nil, err
	}

	session.profile = state.Profile
	session.AdvanceRevision(state.Revision)
	session.directory.ReplaceContacts(state.Contacts)
	session.directory.UpsertGroups(state.Groups)
	session.directory.UpsertRooms(state.Rooms)
	return session, nil
}

// SaveState writes the snapshot to path, creating parent directories
// as needed. The file holds an auth token, so it is written 0600 via a
// temp file in the same directory and an atomic rename.
func SaveState(path string, state *SessionState) error {
	encoded, err := codec.Marshal(state)
	if err != nil {
		return fmt.Errorf("talk: encoding session state: %w", err)
	}

	var buffer bytes.Buffer
	buffer.Write(stateMagic)
	compressor, err := zstd.NewWriter(&buffer)
	if err != nil {
		return fmt.Errorf("talk: creating compressor: %w", err)
	}
	if _, err := compressor.Write(encoded); err != nil {
		compressor.Close()
		return fmt.Errorf("talk: compressing session state: %w", err)
	}
	if err := compressor.Close(); err != nil {
		return fmt.Errorf("talk: compressing session state: %w", err)
	}

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("talk: creating state directory: %w", err)
	}
	temp, err := os.CreateTemp(directory, ".state-*")
	if err != nil {
		return fmt.Errorf("talk: creating temp state file: %w", err)
	}
	defer os.Remove(temp.Name())

	if err := temp.Chmod(0o600); err != nil {
		temp.Close()
		return fmt.Errorf("talk: setting state file mode: %w", err)
	}
	if _, err := temp.Write(buffer.Bytes()); err != nil {
		temp.Close()
		return fmt.Errorf("talk: writing state file: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("talk: closing state file: %w", err)
	}
	if err := os.Rename(temp.Name(), path); err != nil {
		return fmt.Errorf("talk: replacing state file: %w", err)
	}
	return nil
}

// LoadState reads a snapshot written by SaveState.
func LoadState(path string) (*SessionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("talk: reading state file: %w", err)
	}
	if len(data) < len(stateMagic) || !bytes.Equal(data[:len(stateMagic)], stateMagic) {
		return nil, fmt.Errorf("talk: %s is not a session state file", path)
	}

	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("talk: creating decompressor: %w", err)
	}
	defer decompressor.Close()

	decoded, err := decompressor.DecodeAll(data[len(stateMagic):], nil)
	if err != nil {
		return nil, fmt.Errorf("talk: decompressing state file: %w", err)
	}

	var state SessionState
	if err := codec.Unmarshal(decoded, &state); err != nil {
		return nil, fmt.Errorf("talk: decoding session state: %w", err)
	}
	return &state, nil
}
