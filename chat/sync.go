package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dermlab/skinconsult-client/auth"
	"github.com/dermlab/skinconsult-client/models"
)

// confirmWindow is how far a server timestamp may drift from the local send
// time for the server copy to supersede a pending placeholder.
const confirmWindow = 2 * time.Minute

// SessionAPI is the slice of the remote client the sync engine needs.
type SessionAPI interface {
	GetSession(ctx context.Context, sessionID string, includeMessages bool) (models.Session, error)
	SendMessage(ctx context.Context, sessionID string, out models.OutgoingMessage) (models.Message, error)
	ClaimSession(ctx context.Context, sessionID string) (models.Session, error)
	CloseSession(ctx context.Context, sessionID string) (models.Session, error)
}

type pendingMessage struct {
	msg models.Message
	gen uint64
}

// SessionView owns the displayable state of one open session: the last
// authoritative snapshot plus optimistically sent messages awaiting
// confirmation. All state is guarded by one mutex; refreshes are serialized
// by an in-flight flag (an overlapping tick is skipped, never queued).
type SessionView struct {
	api   SessionAPI
	ident auth.Identity

	mu       sync.Mutex
	snapshot models.Session
	pending  []pendingMessage
	inFlight bool
	sendGen  uint64
	stopped  bool
}

// NewSessionView wraps an already fetched session.
func NewSessionView(api SessionAPI, ident auth.Identity, sess models.Session) *SessionView {
	return &SessionView{api: api, ident: ident, snapshot: sess}
}

// OpenSession fetches the session and returns a view over it.
func OpenSession(ctx context.Context, api SessionAPI, ident auth.Identity, sessionID string) (*SessionView, error) {
	sess, err := api.GetSession(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	return NewSessionView(api, ident, sess), nil
}

// ID returns the session id.
func (v *SessionView) ID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshot.ID
}

// Session returns a copy of the current authoritative snapshot.
func (v *SessionView) Session() models.Session {
	v.mu.Lock()
	defer v.mu.Unlock()
	sess := v.snapshot
	sess.Messages = append([]models.Message(nil), v.snapshot.Messages...)
	return sess
}

// Capabilities computes the action gates for the current snapshot.
func (v *SessionView) Capabilities() Caps {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Capabilities(v.snapshot, v.ident)
}

// PendingCount reports how many optimistic messages await confirmation.
func (v *SessionView) PendingCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

// Stop decommissions the view. Polling results that arrive afterwards are
// discarded; no snapshot mutation happens past this point.
func (v *SessionView) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
}

// Refresh fetches the authoritative session and replaces the snapshot. If a
// refresh is already in flight the call is a no-op. On failure the previous
// snapshot stays displayed and the error is returned for logging; the next
// tick retries naturally.
//
// Pending messages are only cleared by a refresh that started after their
// local append: a refresh already in flight when a send lands cannot observe
// the server copy, so it must not drop the placeholder.
func (v *SessionView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	if v.stopped || v.inFlight {
		v.mu.Unlock()
		return nil
	}
	v.inFlight = true
	startGen := v.sendGen
	sessionID := v.snapshot.ID
	v.mu.Unlock()

	sess, err := v.api.GetSession(ctx, sessionID, true)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.inFlight = false
	if v.stopped {
		return nil
	}
	if err != nil {
		return err
	}
	v.applySessionLocked(sess)
	v.prunePendingLocked(startGen)
	return nil
}

// Send appends an optimistic placeholder, posts the message, and refreshes.
// The capability guard runs before any network call: a blocked send returns
// ErrNotPermitted without touching the wire. On a remote failure the
// placeholder is rolled back and the error surfaces; there is no retry.
func (v *SessionView) Send(ctx context.Context, out models.OutgoingMessage) error {
	if out.Empty() {
		return models.ErrEmptyMessage
	}

	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return fmt.Errorf("session view is stopped: %w", models.ErrNotPermitted)
	}
	caps := Capabilities(v.snapshot, v.ident)
	if !caps.CanSend {
		state := v.snapshot.State
		v.mu.Unlock()
		if state == models.StateClosed {
			return fmt.Errorf("session is closed: %w", models.ErrNotPermitted)
		}
		return fmt.Errorf("sending requires ownership or an assignment: %w", models.ErrNotPermitted)
	}

	now := time.Now()
	local := models.Message{
		ID:           "local-" + uuid.NewString(),
		SessionID:    v.snapshot.ID,
		AuthorUserID: v.ident.UserID,
		Content:      out.Content,
		ImageURL:     out.ImageURL,
		CreatedAt:    &now,
		Pending:      true,
	}
	v.sendGen++
	v.pending = append(v.pending, pendingMessage{msg: local, gen: v.sendGen})
	sessionID := v.snapshot.ID
	v.mu.Unlock()

	if _, err := v.api.SendMessage(ctx, sessionID, out); err != nil {
		v.removePending(local.ID)
		return err
	}

	// Confirm immediately. A failure here keeps the placeholder visible as
	// evidence the send was attempted; the poller will reconcile.
	if err := v.Refresh(ctx); err != nil {
		zap.S().Warnw("post-send refresh failed",
			"sessionId", sessionID,
			"error", err,
		)
	}
	return nil
}

// Claim assigns the waiting session to the current specialist. Guarded
// locally; a server-side 409 (someone else claimed first) surfaces as-is.
func (v *SessionView) Claim(ctx context.Context) error {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return fmt.Errorf("session view is stopped: %w", models.ErrNotPermitted)
	}
	if !Capabilities(v.snapshot, v.ident).CanClaim {
		v.mu.Unlock()
		return fmt.Errorf("session is not claimable: %w", models.ErrNotPermitted)
	}
	sessionID := v.snapshot.ID
	v.mu.Unlock()

	sess, err := v.api.ClaimSession(ctx, sessionID)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.stopped {
		v.applySessionLocked(sess)
	}
	return nil
}

// Close closes the session. Closing an already-closed session is a no-op
// reported as success, including when the server answers 409 because another
// actor closed it first: closed is terminal either way.
func (v *SessionView) Close(ctx context.Context) error {
	v.mu.Lock()
	if v.snapshot.State == models.StateClosed {
		v.mu.Unlock()
		return nil
	}
	if v.stopped {
		v.mu.Unlock()
		return fmt.Errorf("session view is stopped: %w", models.ErrNotPermitted)
	}
	if !Capabilities(v.snapshot, v.ident).CanClose {
		v.mu.Unlock()
		return fmt.Errorf("only the session owner may close: %w", models.ErrNotPermitted)
	}
	sessionID := v.snapshot.ID
	v.mu.Unlock()

	sess, err := v.api.CloseSession(ctx, sessionID)
	if err != nil {
		var sendErr *models.SendError
		if errors.As(err, &sendErr) && sendErr.Conflict {
			v.markClosed()
			return nil
		}
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.stopped {
		v.applySessionLocked(sess)
	}
	return nil
}

// Messages is the merged, displayable view: authoritative messages plus
// still-pending locals, deduplicated by id (first occurrence wins) and
// stably ordered by createdAt with unknown timestamps last. Pure projection;
// identical inputs always produce identical output.
func (v *SessionView) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()

	merged := make([]models.Message, 0, len(v.snapshot.Messages)+len(v.pending))
	seen := make(map[string]struct{}, len(v.snapshot.Messages))
	appendUnique := func(m models.Message) {
		if m.ID != "" {
			if _, dup := seen[m.ID]; dup {
				return
			}
			seen[m.ID] = struct{}{}
		}
		merged = append(merged, m)
	}
	for _, m := range v.snapshot.Messages {
		appendUnique(m)
	}
	for _, p := range v.pending {
		appendUnique(p.msg)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].CreatedAt, merged[j].CreatedAt
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})
	return merged
}

// applySessionLocked installs a fetched session without ever moving the
// lifecycle backwards: a stale read cannot demote the state or drop an
// observed assignment.
func (v *SessionView) applySessionLocked(sess models.Session) {
	if sess.State.Rank() < v.snapshot.State.Rank() {
		sess.State = v.snapshot.State
	}
	if sess.SpecialistID == "" {
		sess.SpecialistID = v.snapshot.SpecialistID
	}
	v.snapshot = sess
}

func (v *SessionView) markClosed() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.stopped {
		v.snapshot.State = models.StateClosed
	}
}

// prunePendingLocked drops pending entries that this refresh is allowed to
// clear (appended at or before its start) and that the server copy now
// supersedes.
func (v *SessionView) prunePendingLocked(startGen uint64) {
	kept := v.pending[:0]
	for _, p := range v.pending {
		if p.gen > startGen || !supersedes(v.snapshot.Messages, p.msg) {
			kept = append(kept, p)
		}
	}
	v.pending = kept
}

// supersedes reports whether any server message is the confirmed copy of the
// pending one: same author and content, with timestamps either unknown or
// close enough to the local send time.
func supersedes(server []models.Message, local models.Message) bool {
	for _, m := range server {
		if m.AuthorUserID != local.AuthorUserID {
			continue
		}
		if m.Content != local.Content {
			continue
		}
		if local.ImageURL != "" && m.ImageURL == "" {
			continue
		}
		if m.CreatedAt == nil || local.CreatedAt == nil {
			return true
		}
		drift := m.CreatedAt.Sub(*local.CreatedAt)
		if drift < 0 {
			drift = -drift
		}
		if drift <= confirmWindow {
			return true
		}
	}
	return false
}

func (v *SessionView) removePending(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	kept := v.pending[:0]
	for _, p := range v.pending {
		if p.msg.ID != id {
			kept = append(kept, p)
		}
	}
	v.pending = kept
}
