// Package memstore provides in-memory, concurrency-safe implementations of the
// repository interfaces. It backs local runs without external stores and the
// package tests.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"activity-sync/internal/models"
	"activity-sync/internal/repositories"
)

// Docs is an in-memory document store holding activities, profiles and friend requests.
type Docs struct {
	mu             sync.RWMutex
	activities     map[string]models.Activity
	profiles       map[string]models.UserProfile
	friendRequests map[string]models.FriendRequest
	profileErrs    map[string]error
	writes         int
}

// NewDocs returns an empty document store.
func NewDocs() *Docs {
	return &Docs{
		activities:     map[string]models.Activity{},
		profiles:       map[string]models.UserProfile{},
		friendRequests: map[string]models.FriendRequest{},
		profileErrs:    map[string]error{},
	}
}

// PutActivity stores a copy of a.
func (d *Docs) PutActivity(a models.Activity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.activities[a.ID] = cloneActivity(a)
}

// DeleteActivity removes an activity document.
func (d *Docs) DeleteActivity(activityID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.activities, activityID)
}

// PutProfile stores a copy of p.
func (d *Docs) PutProfile(p models.UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p.Friends = slices.Clone(p.Friends)
	d.profiles[p.ID] = p
}

// PutFriendRequest stores r.
func (d *Docs) PutFriendRequest(r models.FriendRequest) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.friendRequests[r.ID] = r
}

// FailProfileLookup makes GetProfile return err for userID.
func (d *Docs) FailProfileLookup(userID string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profileErrs[userID] = err
}

// Writes returns the number of mutating calls that changed state.
func (d *Docs) Writes() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.writes
}

func (d *Docs) GetActivity(_ context.Context, activityID string) (models.Activity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.activities[activityID]
	if !ok {
		return models.Activity{}, repositories.ErrActivityNotFound
	}
	return cloneActivity(a), nil
}

func (d *Docs) SetTitleLowercase(_ context.Context, activityID, titleLowercase string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.activities[activityID]
	if !ok {
		return repositories.ErrActivityNotFound
	}
	a.TitleLowercase = titleLowercase
	d.activities[activityID] = a
	d.writes++
	return nil
}

func (d *Docs) InitArchived(_ context.Context, activityID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.activities[activityID]
	if !ok || a.Archived != nil {
		return false, nil
	}
	archived := false
	a.Archived = &archived
	d.activities[activityID] = a
	d.writes++
	return true, nil
}

func (d *Docs) SetLastMessageTimestamp(_ context.Context, activityID string, ts time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.activities[activityID]
	if !ok {
		return repositories.ErrActivityNotFound
	}
	if a.LastMessageTimestamp == nil || ts.After(*a.LastMessageTimestamp) {
		ts = ts.UTC()
		a.LastMessageTimestamp = &ts
		d.activities[activityID] = a
		d.writes++
	}
	return nil
}

func (d *Docs) ListArchivable(_ context.Context, now time.Time) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var matches []models.Activity
	for _, a := range d.activities {
		if a.Archived != nil && !*a.Archived && !a.DateTime.IsZero() && a.DateTime.Before(now) {
			matches = append(matches, a)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].DateTime.Equal(matches[j].DateTime) {
			return matches[i].DateTime.Before(matches[j].DateTime)
		}
		return matches[i].ID < matches[j].ID
	})
	ids := make([]string, 0, len(matches))
	for _, a := range matches {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (d *Docs) MarkArchived(_ context.Context, activityIDs []string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var changed int64
	for _, id := range activityIDs {
		a, ok := d.activities[id]
		if !ok || a.IsArchived() {
			continue
		}
		archived := true
		a.Archived = &archived
		d.activities[id] = a
		changed++
	}
	if changed > 0 {
		d.writes++
	}
	return changed, nil
}

func (d *Docs) GetProfile(_ context.Context, userID string) (models.UserProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.profileErrs[userID]; err != nil {
		return models.UserProfile{}, err
	}
	p, ok := d.profiles[userID]
	if !ok {
		return models.UserProfile{}, repositories.ErrProfileNotFound
	}
	p.Friends = slices.Clone(p.Friends)
	return p, nil
}

func (d *Docs) SetDisplayNameLowercase(_ context.Context, userID, displayNameLowercase string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.profiles[userID]
	if !ok {
		return repositories.ErrProfileNotFound
	}
	p.DisplayNameLowercase = displayNameLowercase
	d.profiles[userID] = p
	d.writes++
	return nil
}

func (d *Docs) AddFriendPair(_ context.Context, a, b string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addFriend(a, b)
	d.addFriend(b, a)
	d.writes++
	return nil
}

func (d *Docs) addFriend(userID, friendID string) {
	p, ok := d.profiles[userID]
	if !ok {
		return
	}
	if !slices.Contains(p.Friends, friendID) {
		p.Friends = append(slices.Clone(p.Friends), friendID)
	}
	d.profiles[userID] = p
}

func (d *Docs) GetFriendRequest(_ context.Context, requestID string) (models.FriendRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.friendRequests[requestID]
	if !ok {
		return models.FriendRequest{}, repositories.ErrFriendRequestNotFound
	}
	return r, nil
}

func cloneActivity(a models.Activity) models.Activity {
	a.Participants = slices.Clone(a.Participants)
	if a.Archived != nil {
		v := *a.Archived
		a.Archived = &v
	}
	if a.LastMessageTimestamp != nil {
		v := *a.LastMessageTimestamp
		a.LastMessageTimestamp = &v
	}
	return a
}

var (
	_ repositories.ActivityRepository      = (*Docs)(nil)
	_ repositories.ProfileRepository       = (*Docs)(nil)
	_ repositories.FriendRequestRepository = (*Docs)(nil)
)
