// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package talk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/chatsync/gateway"
	"github.com/bureau-foundation/chatsync/lib/secret"
)

// defaultPageSize is the fixed batch size for paged listings (contact
// records, group records, message boxes) and for operation fetches.
const defaultPageSize = 50

// SessionConfig holds configuration for creating a Session.
type SessionConfig struct {
	// Gateway is the remote service client. Required.
	Gateway Gateway

	// UserID is the account identifier for credential login. Ignored
	// when Token is set.
	UserID string

	// Password is the credential for first login. The session reads it
	// during Login but does not take ownership; the caller closes it.
	Password *secret.Buffer

	// Token is a previously issued auth token. When set, Login uses
	// the token path and Password is ignored. The session takes
	// ownership and closes it when the auth state is invalidated.
	Token *secret.Buffer

	// Certificate is the device certificate issued alongside the
	// token. Only meaningful with Token.
	Certificate string

	// PageSize overrides the paging batch size. Defaults to 50.
	PageSize int

	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Session is the authenticated facade over the service. It owns the
// auth token, the revision cursor, the account profile, and a
// Directory that it keeps reconciled. Every remote call goes through
// the session so the auth gate and auth-invalidation logic live in one
// place.
type Session struct {
	gateway   Gateway
	logger    *slog.Logger
	directory *Directory
	pageSize  int

	userID   string
	password *secret.Buffer

	mu          sync.Mutex
	token       *secret.Buffer
	certificate string
	profile     *Contact

	revision atomic.Int64
	sendSeq  atomic.Int64
}

// NewSession creates a session. It performs no remote calls; call
// Login to authenticate and bootstrap the directory.
func NewSession(config SessionConfig) (*Session, error) {
	if config.Gateway == nil {
		return nil, fmt.Errorf("talk: SessionConfig.Gateway is required")
	}
	if config.Token == nil && (config.UserID == "" || config.Password == nil) {
		return nil, fmt.Errorf("talk: session needs either a token or user ID plus password")
	}

	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		gateway:     config.Gateway,
		logger:      logger,
		directory:   NewDirectory(),
		pageSize:    pageSize,
		userID:      config.UserID,
		password:    config.Password,
		token:       config.Token,
		certificate: config.Certificate,
	}, nil
}

// Directory returns the session's directory.
func (s *Session) Directory() *Directory { return s.directory }

// Profile returns the account's own contact record, or nil before
// login.
func (s *Session) Profile() *Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Authenticated reports whether the session holds an auth token.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// Revision returns the current operation-log cursor.
func (s *Session) Revision() int64 { return s.revision.Load() }

// AdvanceRevision moves the cursor forward to r. The cursor is a
// running maximum: a smaller or equal r is a no-op, so replayed or
// reordered operations can never move it backward.
func (s *Session) AdvanceRevision(r int64) {
	for {
		current := s.revision.Load()
		if r <= current {
			return
		}
		if s.revision.CompareAndSwap(current, r) {
			return
		}
	}
}

// authToken returns the held token, or ErrAuthRequired. Every remote
// operation passes through here; an unauthenticated session fails
// locally without a remote call.
func (s *Session) authToken() (*secret.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, ErrAuthRequired
	}
	return s.token, nil
}

// invalidateAuth drops the token and certificate. Subsequent remote
// operations fail with ErrAuthRequired until the next Login.
func (s *Session) invalidateAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		s.token.Close()
		s.token = nil
	}
	s.certificate = ""
	s.logger.Warn("session auth invalidated")
}

// remoteErr post-processes an error from an authenticated call: a
// service-side auth rejection invalidates the held token so the
// session drops back to the unauthenticated state.
func (s *Session) remoteErr(err error) error {
	if IsAuthInvalid(err) {
		s.invalidateAuth()
	}
	return err
}

// Login authenticates and bootstraps the directory. If the session
// holds a token it re-authenticates with it; otherwise it performs a
// credential login and keeps the issued token and certificate.
//
// After authentication the bootstrap runs: revision cursor, profile,
// contacts, joined and invited groups, active rooms. A bootstrap
// failure is returned but leaves the session authenticated; the
// directory can be completed later by the dispatcher's repair pass or
// explicit refreshes.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	certificate := s.certificate
	s.mu.Unlock()

	var response *gateway.AuthResponse
	var err error
	if token != nil {
		response, err = s.gateway.LoginWithToken(ctx, token, certificate)
	} else {
		response, err = s.gateway.LoginWithPassword(ctx, s.userID, s.password)
	}
	if err != nil {
		return fmt.Errorf("talk: login failed: %w", err)
	}

	s.mu.Lock()
	s.userID = response.UserID
	if s.token == nil && response.AuthToken != "" {
		issued, bufErr := secret.NewFromBytes([]byte(response.AuthToken))
		if bufErr != nil {
			s.mu.Unlock()
			return fmt.Errorf("talk: storing issued token: %w", bufErr)
		}
		s.token = issued
	}
	if s.certificate == "" {
		s.certificate = response.Certificate
	}
	s.mu.Unlock()

	s.logger.Info("logged in", "user_id", response.UserID)
	return s.bootstrap(ctx)
}

// bootstrap seeds the revision cursor, profile, and directory after a
// successful authentication.
func (s *Session) bootstrap(ctx context.Context) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}

	head, err := s.gateway.LastOperationRevision(ctx, token)
	if err != nil {
		return s.remoteErr(fmt.Errorf("talk: fetching head revision: %w", err))
	}
	s.AdvanceRevision(head)

	rawProfile, err := s.gateway.Profile(ctx, token)
	if err != nil {
		return s.remoteErr(fmt.Errorf("talk: fetching profile: %w", err))
	}
	s.mu.Lock()
	s.profile = newContact(*rawProfile)
	s.mu.Unlock()

	if err := s.RefreshContacts(ctx); err != nil {
		return err
	}
	if err := s.RefreshGroups(ctx); err != nil {
		return err
	}
	if err := s.RefreshActiveRooms(ctx); err != nil {
		return err
	}

	s.logger.Info("session bootstrapped",
		"revision", s.Revision(),
		"contacts", len(s.directory.Contacts()),
		"groups", len(s.directory.Groups()),
		"rooms", len(s.directory.Rooms()),
	)
	return nil
}

// RefreshContacts fetches the full contact list and replaces the
// directory's contact store. The batch is built completely before the
// store is touched: a failed fetch leaves the previous contacts in
// place.
func (s *Session) RefreshContacts(ctx context.Context) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}

	ids, err := s.gateway.AllContactIDs(ctx, token)
	if err != nil {
		return s.remoteErr(fmt.Errorf("talk: fetching contact IDs: %w", err))
	}

	var contacts []*Contact
	for start := 0; start < len(ids); start += s.pageSize {
		end := min(start+s.pageSize, len(ids))
		raws, err := s.gateway.Contacts(ctx, token, ids[start:end])
		if err != nil {
			return s.remoteErr(fmt.Errorf("talk: fetching contacts: %w", err))
		}
		for _, raw := range raws {
			contacts = append(contacts, newContact(raw))
		}
	}

	s.directory.ReplaceContacts(contacts)
	return nil
}

// AddGroupsWithIDs fetches the given groups and upserts them with the
// given joined flag. The joined and invited refresh paths are both
// additive; neither evicts groups the other added.
func (s *Session) AddGroupsWithIDs(ctx context.Context, ids []string, joined bool) error {
	if len(ids) == 0 {
		return nil
	}
	token, err := s.authToken()
	if err != nil {
		return err
	}

	var groups []*Group
	for start := 0; start < len(ids); start += s.pageSize {
		end := min(start+s.pageSize, len(ids))
		raws, err := s.gateway.Groups(ctx, token, ids[start:end])
		if err != nil {
			return s.remoteErr(fmt.Errorf("talk: fetching groups: %w", err))
		}
		for _, raw := range raws {
			groups = append(groups, newGroup(raw, joined))
		}
	}

	s.directory.UpsertGroups(groups)
	return nil
}

// RefreshGroups fetches the joined and invited group ID lists and
// upserts both sets.
func (s *Session) RefreshGroups(ctx context.Context) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}

	joinedIDs, err := s.gateway.JoinedGroupIDs(ctx, token)
	if err != nil {
		return s.remoteErr(fmt.Errorf("talk: fetching joined group IDs: %w", err))
	}
	if err := s.AddGroupsWithIDs(ctx, joinedIDs, true); err != nil {
		return err
	}

	invitedIDs, err := s.gateway.InvitedGroupIDs(ctx, token)
	if err != nil {
		return s.remoteErr(fmt.Errorf("talk: fetching invited group IDs: %w", err))
	}
	return s.AddGroupsWithIDs(ctx, invitedIDs, false)
}

// RefreshActiveRooms walks the paged message-box listing and upserts a
// room record for every room-typed box. Paging is sequential with a
// fixed page size; the walk stops at the first short page. Boxes for
// contacts and groups are skipped (those stores have their own refresh
// paths).
func (s *Session) RefreshActiveRooms(ctx context.Context) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}

	var rooms []*Room
	for start := 0; ; start += s.pageSize {
		boxes, err := s.gateway.MessageBoxList(ctx, token, start, s.pageSize)
		if err != nil {
			return s.remoteErr(fmt.Errorf("talk: listing message boxes: %w", err))
		}
		for _, box := range boxes {
			if box.BoxType != gateway.BoxRoom {
				continue
			}
			raw, err := s.gateway.Room(ctx, token, box.ID)
			if err != nil {
				if gateway.IsServiceError(err, gateway.ErrCodeNotFound) {
					s.logger.Debug("skipping vanished room", "room_id", box.ID)
					continue
				}
				return s.remoteErr(fmt.Errorf("talk: fetching room %s: %w", box.ID, err))
			}
			rooms = append(rooms, newRoom(*raw))
		}
		if len(boxes) < s.pageSize {
			break
		}
	}

	s.directory.UpsertRooms(rooms)
	return nil
}

// CreateGroup creates a group with the given name and invited
// contacts, and records it as joined.
func (s *Session) CreateGroup(ctx context.Context, name string, contactIDs []string) (*Group, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}
	raw, err := s.gateway.CreateGroup(ctx, token, name, contactIDs)
	if err != nil {
		return nil, s.remoteErr(fmt.Errorf("talk: creating group: %w", err))
	}
	group := newGroup(*raw, true)
	s.directory.UpsertGroups([]*Group{group})
	return group, nil
}

// InviteIntoGroup invites contacts into a group.
func (s *Session) InviteIntoGroup(ctx context.Context, groupID string, contactIDs []string) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}
	if err := s.gateway.InviteIntoGroup(ctx, token, groupID, contactIDs); err != nil {
		return s.remoteErr(fmt.Errorf("talk: inviting into group %s: %w", groupID, err))
	}
	return nil
}

// AcceptGroupInvitation accepts a pending group invitation. If the
// directory already records the group as joined the call fails locally
// with ErrAlreadyJoined and no remote call is made. On success the
// group record is re-fetched so membership reflects the join.
func (s *Session) AcceptGroupInvitation(ctx context.Context, groupID string) error {
	if group := s.directory.GroupByID(groupID); group != nil && group.Joined {
		return fmt.Errorf("talk: accepting invitation to %s: %w", groupID, ErrAlreadyJoined)
	}
	token, err := s.authToken()
	if err != nil {
		return err
	}
	if err := s.gateway.AcceptGroupInvitation(ctx, token, groupID); err != nil {
		return s.remoteErr(fmt.Errorf("talk: accepting group invitation: %w", err))
	}
	return s.AddGroupsWithIDs(ctx, []string{groupID}, true)
}

// LeaveGroup leaves the group and removes it from the directory.
func (s *Session) LeaveGroup(ctx context.Context, groupID string) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}
	if err := s.gateway.LeaveGroup(ctx, token, groupID); err != nil {
		return s.remoteErr(fmt.Errorf("talk: leaving group %s: %w", groupID, err))
	}
	s.directory.RemoveGroup(groupID)
	return nil
}

// CreateRoom creates an ad-hoc room with the given contacts.
func (s *Session) CreateRoom(ctx context.Context, contactIDs []string) (*Room, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}
	raw, err := s.gateway.CreateRoom(ctx, token, contactIDs)
	if err != nil {
		return nil, s.remoteErr(fmt.Errorf("talk: creating room: %w", err))
	}
	room := newRoom(*raw)
	s.directory.UpsertRooms([]*Room{room})
	return room, nil
}

// InviteIntoRoom invites contacts into a room.
func (s *Session) InviteIntoRoom(ctx context.Context, roomID string, contactIDs []string) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}
	if err := s.gateway.InviteIntoRoom(ctx, token, roomID, contactIDs); err != nil {
		return s.remoteErr(fmt.Errorf("talk: inviting into room %s: %w", roomID, err))
	}
	return nil
}

// LeaveRoom leaves the room and removes it from the directory.
func (s *Session) LeaveRoom(ctx context.Context, roomID string) error {
	token, err := s.authToken()
	if err != nil {
		return err
	}
	if err := s.gateway.LeaveRoom(ctx, token, roomID); err != nil {
		return s.remoteErr(fmt.Errorf("talk: leaving room %s: %w", roomID, err))
	}
	s.directory.RemoveRoom(roomID)
	return nil
}

// SendText sends a text message to the peer and returns the resolved
// echo with the server-assigned ID and timestamp.
func (s *Session) SendText(ctx context.Context, to Peer, text string) (*Message, error) {
	return s.send(ctx, gateway.RawMessage{
		To:     to.PeerID(),
		ToType: toTypeOf(to.Kind()),
		Text:   text,
	})
}

// SendImage uploads image data to the content store and sends a
// message referencing it. contentType is the MIME type of the payload.
func (s *Session) SendImage(ctx context.Context, to Peer, contentType string, payload io.Reader) (*Message, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}
	contentID, err := s.gateway.UploadContent(ctx, token, contentType, payload)
	if err != nil {
		return nil, s.remoteErr(fmt.Errorf("talk: uploading image: %w", err))
	}
	return s.send(ctx, gateway.RawMessage{
		To:          to.PeerID(),
		ToType:      toTypeOf(to.Kind()),
		HasContent:  true,
		ContentType: int(ContentImage),
		ContentMetadata: map[string]string{
			"content_id": contentID,
			"mime_type":  contentType,
		},
	})
}

func (s *Session) send(ctx context.Context, message gateway.RawMessage) (*Message, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}
	seq := int(s.sendSeq.Add(1))
	echo, err := s.gateway.SendMessage(ctx, token, message, seq)
	if err != nil {
		return nil, s.remoteErr(fmt.Errorf("talk: sending message: %w", err))
	}
	resolved, _ := resolveMessage(echo, s.directory, s.Profile())
	return resolved, nil
}

// RecentMessages returns the most recent messages of a message box,
// newest first, resolved best-effort against the current directory.
func (s *Session) RecentMessages(ctx context.Context, messageBoxID string, count int) ([]*Message, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}
	raws, err := s.gateway.RecentMessages(ctx, token, messageBoxID, count)
	if err != nil {
		return nil, s.remoteErr(fmt.Errorf("talk: fetching recent messages: %w", err))
	}
	messages := make([]*Message, len(raws))
	profile := s.Profile()
	for i := range raws {
		messages[i], _ = resolveMessage(&raws[i], s.directory, profile)
	}
	return messages, nil
}

// fetchOperations pulls one batch from the operation log, starting
// after the current revision cursor. Used by the dispatcher.
func (s *Session) fetchOperations(ctx context.Context, maxCount int) ([]gateway.Operation, error) {
	token, err := s.authToken()
	if err != nil {
		return nil, err
	}
	operations, err := s.gateway.FetchOperations(ctx, token, s.Revision(), maxCount)
	if err != nil {
		return nil, s.remoteErr(err)
	}
	return operations, nil
}

func toTypeOf(kind PeerKind) gateway.ToType {
	switch kind {
	case KindGroup:
		return gateway.ToGroup
	case KindRoom:
		return gateway.ToRoom
	default:
		return gateway.ToUser
	}
}
