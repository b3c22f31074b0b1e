// Package relationship implements the friendship state machine.
//
//	pending --accept--> accepted --remove--> rejected
//	pending --reject--> rejected
//	pending --cancel--> cancelled
//
// Records are never deleted. Unfriending reuses rejected, and re-friending
// always creates a new record.
package relationship

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rivofx/newpulse/internal/apperr"
	"github.com/rivofx/newpulse/internal/models"
	"github.com/rivofx/newpulse/internal/store"
)

// DefaultSearchLimit caps search results when no limit is configured.
const DefaultSearchLimit = 20

// Decision is the addressee's answer to a pending request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// SearchResult is one profile matched by Search.
type SearchResult struct {
	Profile      models.Profile `json:"profile"`
	Status       Status         `json:"status"`
	FriendshipID *string        `json:"friendship_id,omitempty"`
}

// Friend is one accepted friendship seen from the viewer's side.
type Friend struct {
	Profile        models.Profile `json:"profile"`
	FriendshipID   string         `json:"friendship_id"`
	ConversationID *string        `json:"conversation_id,omitempty"`
	Since          time.Time      `json:"since"`
}

// Request is a pending friendship seen from the viewer's side. Profile is
// the other party.
type Request struct {
	ID        string         `json:"id"`
	Profile   models.Profile `json:"profile"`
	CreatedAt time.Time      `json:"created_at"`
}

// Snapshot is the viewer's full derived view of their relationships.
type Snapshot struct {
	Friends  []Friend  `json:"friends"`
	Incoming []Request `json:"incoming"`
	Outgoing []Request `json:"outgoing"`
}

// Manager validates and applies friendship transitions. It keeps no state of
// its own between calls.
type Manager struct {
	store       Store
	linker      Linker
	retrier     LinkRetrier
	searchLimit int
}

// NewManager wires a manager. retrier may be nil, in which case a failed
// link step is only healed by a later OpenConversation.
func NewManager(s Store, linker Linker, retrier LinkRetrier, searchLimit int) *Manager {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &Manager{
		store:       s,
		linker:      linker,
		retrier:     retrier,
		searchLimit: searchLimit,
	}
}

// SendRequest creates a pending record from requester to addressee.
func (m *Manager) SendRequest(ctx context.Context, requesterID, addresseeID string) (*models.Friendship, error) {
	requesterID = strings.TrimSpace(requesterID)
	addresseeID = strings.TrimSpace(addresseeID)
	if requesterID == "" || addresseeID == "" {
		return nil, apperr.Invalid("requester and addressee are required")
	}
	if requesterID == addresseeID {
		return nil, apperr.ErrSelfRequest
	}

	f := &models.Friendship{
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      models.StatusPending,
	}
	if err := m.store.CreateFriendship(ctx, f); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, apperr.ErrDuplicateRequest
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, addresseeID)
		default:
			return nil, apperr.Transport(err)
		}
	}
	return f, nil
}

// CancelRequest withdraws a pending request. Only the requester may cancel.
func (m *Manager) CancelRequest(ctx context.Context, actorID, friendshipID string) (*models.Friendship, error) {
	return m.transition(ctx, actorID, friendshipID, models.StatusPending, models.StatusCancelled,
		func(f *models.Friendship) bool { return f.RequesterID == actorID })
}

// RespondToRequest applies the addressee's decision. On accept the shared
// conversation is linked afterwards; a failed link does not fail the accept.
func (m *Manager) RespondToRequest(ctx context.Context, actorID, friendshipID string, decision Decision) (*models.Friendship, error) {
	var to models.FriendshipStatus
	switch decision {
	case DecisionAccept:
		to = models.StatusAccepted
	case DecisionReject:
		to = models.StatusRejected
	default:
		return nil, apperr.Invalid("unknown decision %q", decision)
	}

	f, err := m.transition(ctx, actorID, friendshipID, models.StatusPending, to,
		func(f *models.Friendship) bool { return f.AddresseeID == actorID })
	if err != nil {
		return nil, err
	}
	if decision == DecisionAccept {
		// The accept has committed; linking must outlive a dropped request.
		m.link(context.WithoutCancel(ctx), f)
	}
	return f, nil
}

// AcceptRequest accepts a pending request addressed to the actor.
func (m *Manager) AcceptRequest(ctx context.Context, actorID, friendshipID string) (*models.Friendship, error) {
	return m.RespondToRequest(ctx, actorID, friendshipID, DecisionAccept)
}

// RejectRequest rejects a pending request addressed to the actor.
func (m *Manager) RejectRequest(ctx context.Context, actorID, friendshipID string) (*models.Friendship, error) {
	return m.RespondToRequest(ctx, actorID, friendshipID, DecisionReject)
}

// RemoveFriend downgrades an accepted friendship to rejected. Either party
// may remove.
func (m *Manager) RemoveFriend(ctx context.Context, actorID, friendshipID string) (*models.Friendship, error) {
	return m.transition(ctx, actorID, friendshipID, models.StatusAccepted, models.StatusRejected,
		func(f *models.Friendship) bool { return f.Involves(actorID) })
}

// transition moves a record from one status to another. A stranger to the
// record is refused before its status is looked at; a party with the wrong
// role is refused after.
func (m *Manager) transition(ctx context.Context, actorID, id string, from, to models.FriendshipStatus, allowed func(*models.Friendship) bool) (*models.Friendship, error) {
	f, err := m.store.GetFriendship(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: friendship %s", apperr.ErrNotFound, id)
		}
		return nil, apperr.Transport(err)
	}
	if !f.Involves(actorID) {
		return nil, apperr.ErrNotAuthorized
	}
	if f.Status != from {
		if f.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: friendship is %s and final", apperr.ErrInvalidTransition, f.Status)
		}
		return nil, fmt.Errorf("%w: %s cannot move to %s", apperr.ErrInvalidTransition, f.Status, to)
	}
	if !allowed(f) {
		return nil, apperr.ErrNotAuthorized
	}

	updated, err := m.store.UpdateFriendshipStatus(ctx, id, from, to)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrStale):
			return nil, fmt.Errorf("%w: friendship changed concurrently", apperr.ErrInvalidTransition)
		case errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("%w: friendship %s", apperr.ErrNotFound, id)
		default:
			return nil, apperr.Transport(err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":      "Manager.transition",
		"friendship_id": id,
		"from":          from,
		"to":            to,
	}).Debug("Friendship transitioned")

	return updated, nil
}

func (m *Manager) link(ctx context.Context, f *models.Friendship) {
	_, err := m.linker.FindOrCreateConversation(ctx, f.RequesterID, f.AddresseeID)
	if err == nil {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function":      "Manager.link",
		"friendship_id": f.ID,
		"error":         err.Error(),
	}).Warn("Failed to link conversation after accept")

	if m.retrier == nil {
		return
	}
	if err := m.retrier.EnqueueLink(ctx, f.RequesterID, f.AddresseeID); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":      "Manager.link",
			"friendship_id": f.ID,
			"error":         err.Error(),
		}).Error("Failed to enqueue conversation link retry")
	}
}

// Search finds profiles whose display name contains query and annotates
// each with its derived status for the viewer.
func (m *Manager) Search(ctx context.Context, query, viewerID string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SearchResult{}, nil
	}

	profiles, err := m.store.SearchProfiles(ctx, query, viewerID, m.searchLimit)
	if err != nil {
		return nil, apperr.Transport(err)
	}
	active, err := m.activeRecords(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(profiles))
	for _, p := range profiles {
		status, match := DeriveStatus(viewerID, p.ID, active)
		r := SearchResult{Profile: p, Status: status}
		if match != nil {
			id := match.ID
			r.FriendshipID = &id
		}
		results = append(results, r)
	}
	return results, nil
}

// ListFriends returns the viewer's accepted friendships. Conversation ids are
// looked up but never created here.
func (m *Manager) ListFriends(ctx context.Context, viewerID string) ([]Friend, error) {
	records, err := m.store.FindFriendships(ctx, FriendshipFilter{
		UserID:   viewerID,
		Statuses: []models.FriendshipStatus{models.StatusAccepted},
	})
	if err != nil {
		return nil, apperr.Transport(err)
	}
	return m.friends(ctx, viewerID, records)
}

func (m *Manager) friends(ctx context.Context, viewerID string, records []models.Friendship) ([]Friend, error) {
	friends := make([]Friend, 0, len(records))
	for _, r := range records {
		if r.Status != models.StatusAccepted {
			continue
		}
		friend := Friend{
			Profile:      otherProfile(r, viewerID),
			FriendshipID: r.ID,
			Since:        r.UpdatedAt,
		}
		convID, err := m.linker.FindConversation(ctx, viewerID, friend.Profile.ID)
		switch {
		case err == nil:
			friend.ConversationID = &convID
		case errors.Is(err, apperr.ErrNotFound):
		default:
			return nil, err
		}
		friends = append(friends, friend)
	}
	sort.SliceStable(friends, func(i, j int) bool {
		return strings.ToLower(friends[i].Profile.DisplayName) < strings.ToLower(friends[j].Profile.DisplayName)
	})
	return friends, nil
}

// OpenConversation returns the conversation for an accepted friendship,
// creating it when the accept crashed before linking.
func (m *Manager) OpenConversation(ctx context.Context, viewerID, friendshipID string) (string, error) {
	f, err := m.store.GetFriendship(ctx, friendshipID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: friendship %s", apperr.ErrNotFound, friendshipID)
		}
		return "", apperr.Transport(err)
	}
	if !f.Involves(viewerID) {
		return "", apperr.ErrNotAuthorized
	}
	if f.Status != models.StatusAccepted {
		return "", fmt.Errorf("%w: friendship is %s", apperr.ErrInvalidTransition, f.Status)
	}
	return m.linker.FindOrCreateConversation(ctx, f.RequesterID, f.AddresseeID)
}

// ListIncoming returns pending requests addressed to the viewer.
func (m *Manager) ListIncoming(ctx context.Context, viewerID string) ([]Request, error) {
	records, err := m.store.FindFriendships(ctx, FriendshipFilter{
		AddresseeID: viewerID,
		Statuses:    []models.FriendshipStatus{models.StatusPending},
	})
	if err != nil {
		return nil, apperr.Transport(err)
	}
	return requests(records, viewerID), nil
}

// ListOutgoing returns pending requests the viewer sent.
func (m *Manager) ListOutgoing(ctx context.Context, viewerID string) ([]Request, error) {
	records, err := m.store.FindFriendships(ctx, FriendshipFilter{
		RequesterID: viewerID,
		Statuses:    []models.FriendshipStatus{models.StatusPending},
	})
	if err != nil {
		return nil, apperr.Transport(err)
	}
	return requests(records, viewerID), nil
}

// PendingCount is the number of incoming pending requests.
func (m *Manager) PendingCount(ctx context.Context, viewerID string) (int64, error) {
	n, err := m.store.CountFriendships(ctx, FriendshipFilter{
		AddresseeID: viewerID,
		Statuses:    []models.FriendshipStatus{models.StatusPending},
	})
	if err != nil {
		return 0, apperr.Transport(err)
	}
	return n, nil
}

// Snapshot rebuilds the viewer's view from one read of their active records.
func (m *Manager) Snapshot(ctx context.Context, viewerID string) (*Snapshot, error) {
	active, err := m.activeRecords(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	var incoming, outgoing []models.Friendship
	for _, r := range active {
		if r.Status != models.StatusPending {
			continue
		}
		if r.RequesterID == viewerID {
			outgoing = append(outgoing, r)
		} else {
			incoming = append(incoming, r)
		}
	}
	snap := &Snapshot{
		Incoming: requests(incoming, viewerID),
		Outgoing: requests(outgoing, viewerID),
	}

	snap.Friends, err = m.friends(ctx, viewerID, active)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (m *Manager) activeRecords(ctx context.Context, viewerID string) ([]models.Friendship, error) {
	records, err := m.store.FindFriendships(ctx, FriendshipFilter{
		UserID:   viewerID,
		Statuses: models.ActiveStatuses,
	})
	if err != nil {
		return nil, apperr.Transport(err)
	}
	return records, nil
}

func requests(records []models.Friendship, viewerID string) []Request {
	out := make([]Request, 0, len(records))
	for _, r := range records {
		out = append(out, Request{
			ID:        r.ID,
			Profile:   otherProfile(r, viewerID),
			CreatedAt: r.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// otherProfile returns the preloaded profile of the party that is not the
// viewer, or a bare profile carrying only the id when it was not loaded.
func otherProfile(f models.Friendship, viewerID string) models.Profile {
	p := f.Addressee
	if f.AddresseeID == viewerID {
		p = f.Requester
	}
	if p == nil {
		return models.Profile{ID: f.OtherParty(viewerID)}
	}
	return *p
}
