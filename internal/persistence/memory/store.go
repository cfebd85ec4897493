// Package memory provides mutex-guarded in-memory repositories for local development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rafaelmorch/platform-sports/internal/domain"
)

// Store holds every collection so that deleting an activity can cascade to its entries and
// messages. Use the accessor methods to obtain the individual repositories.
type Store struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
	entries    map[string]map[string]domain.AttendanceEntry
	messages   map[string][]domain.ChatMessage
	profiles   map[string]domain.Profile
	seq        int64
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities: make(map[string]domain.Activity),
		entries:    make(map[string]map[string]domain.AttendanceEntry),
		messages:   make(map[string][]domain.ChatMessage),
		profiles:   make(map[string]domain.Profile),
	}
}

// Activities returns the activity repository view.
func (s *Store) Activities() *ActivityRepository { return &ActivityRepository{store: s} }

// Attendance returns the attendance repository view.
func (s *Store) Attendance() *AttendanceRepository { return &AttendanceRepository{store: s} }

// Chat returns the chat repository view.
func (s *Store) Chat() *ChatRepository { return &ChatRepository{store: s} }

// Profiles returns the profile directory view.
func (s *Store) Profiles() *ProfileDirectory { return &ProfileDirectory{store: s} }

// ActivityRepository implements domain.ActivityRepository.
type ActivityRepository struct {
	store *Store
}

// CreateBatch checks every row before applying any of them.
func (r *ActivityRepository) CreateBatch(ctx context.Context, activities []domain.Activity) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNew(activities); err != nil {
		return err
	}
	for _, a := range activities {
		s.activities[a.ID] = cloneActivity(a)
	}
	return nil
}

// UpdateWithSiblings replaces the edited activity and adds siblings as one unit.
func (r *ActivityRepository) UpdateWithSiblings(ctx context.Context, updated domain.Activity, siblings []domain.Activity) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[updated.ID]; !ok {
		return domain.ErrNotFound
	}
	if err := s.checkNew(siblings); err != nil {
		return err
	}
	s.activities[updated.ID] = cloneActivity(updated)
	for _, a := range siblings {
		s.activities[a.ID] = cloneActivity(a)
	}
	return nil
}

// Get returns a copy of the activity or nil.
func (r *ActivityRepository) Get(ctx context.Context, id string) (*domain.Activity, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.activities[id]
	if !ok {
		return nil, nil
	}
	out := cloneActivity(a)
	return &out, nil
}

// ListUpcoming mirrors the Postgres ordering: start_at then id, ascending.
func (r *ActivityRepository) ListUpcoming(ctx context.Context, from time.Time, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Activity, 0)
	for _, a := range s.activities {
		if !a.Published || !a.Public || a.StartAt.Before(from) {
			continue
		}
		if cursor != nil && compareKey(a.StartAt, a.ID, cursor.At, cursor.ID) <= 0 {
			continue
		}
		matches = append(matches, cloneActivity(a))
	}
	slices.SortFunc(matches, func(a, b domain.Activity) int {
		return compareKey(a.StartAt, a.ID, b.StartAt, b.ID)
	})
	return page(matches, limit)
}

// ListByOwner returns the owner's activities, latest start first.
func (r *ActivityRepository) ListByOwner(ctx context.Context, ownerID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Activity, 0)
	for _, a := range s.activities {
		if a.OwnerID != ownerID {
			continue
		}
		if cursor != nil && compareKey(a.StartAt, a.ID, cursor.At, cursor.ID) >= 0 {
			continue
		}
		matches = append(matches, cloneActivity(a))
	}
	slices.SortFunc(matches, func(a, b domain.Activity) int {
		return compareKey(b.StartAt, b.ID, a.StartAt, a.ID)
	})
	return page(matches, limit)
}

// Delete removes the activity with its entries and messages.
func (r *ActivityRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.activities, id)
	delete(s.entries, id)
	delete(s.messages, id)
	return nil
}

// SetImage stores a new image reference.
func (r *ActivityRepository) SetImage(ctx context.Context, id, imageRef string, updatedAt time.Time) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.ImageRef = imageRef
	a.UpdatedAt = updatedAt
	s.activities[id] = a
	return nil
}

// CountByImageRef counts activities using the image.
func (r *ActivityRepository) CountByImageRef(ctx context.Context, imageRef string) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.activities {
		if a.ImageRef == imageRef {
			n++
		}
	}
	return n, nil
}

// AttendanceRepository implements domain.AttendanceRepository.
type AttendanceRepository struct {
	store *Store
}

// Find returns the entry or nil.
func (r *AttendanceRepository) Find(ctx context.Context, activityID, userID string) (*domain.AttendanceEntry, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[activityID][userID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Insert adds the entry unless the pair already exists.
func (r *AttendanceRepository) Insert(ctx context.Context, entry domain.AttendanceEntry) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[entry.ActivityID]; !ok {
		return false, fmt.Errorf("insert attendance: activity %s: %w", entry.ActivityID, domain.ErrNotFound)
	}
	byUser, ok := s.entries[entry.ActivityID]
	if !ok {
		byUser = make(map[string]domain.AttendanceEntry)
		s.entries[entry.ActivityID] = byUser
	}
	if _, exists := byUser[entry.UserID]; exists {
		return false, nil
	}
	byUser[entry.UserID] = entry
	return true, nil
}

// Delete removes the entry and reports whether it existed.
func (r *AttendanceRepository) Delete(ctx context.Context, activityID, userID string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	byUser, ok := s.entries[activityID]
	if !ok {
		return false, nil
	}
	if _, exists := byUser[userID]; !exists {
		return false, nil
	}
	delete(byUser, userID)
	return true, nil
}

// Count returns the number of entries for the activity.
func (r *AttendanceRepository) Count(ctx context.Context, activityID string) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[activityID]), nil
}

// CountMany returns counts for the activities that have entries.
func (r *AttendanceRepository) CountMany(ctx context.Context, activityIDs []string) (map[string]int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int, len(activityIDs))
	for _, id := range activityIDs {
		if n := len(s.entries[id]); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

// List returns entries ordered by confirmation time, then user id.
func (r *AttendanceRepository) List(ctx context.Context, activityID string) ([]domain.AttendanceEntry, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.AttendanceEntry, 0, len(s.entries[activityID]))
	for _, entry := range s.entries[activityID] {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b domain.AttendanceEntry) int {
		return compareKey(a.ConfirmedAt, a.UserID, b.ConfirmedAt, b.UserID)
	})
	return entries, nil
}

// ChatRepository implements domain.ChatRepository.
type ChatRepository struct {
	store *Store
}

// Append assigns the next sequence number and stores the message.
func (r *ChatRepository) Append(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activities[msg.ActivityID]; !ok {
		return domain.ChatMessage{}, fmt.Errorf("append message: activity %s: %w", msg.ActivityID, domain.ErrNotFound)
	}
	s.seq++
	msg.Seq = s.seq
	s.messages[msg.ActivityID] = append(s.messages[msg.ActivityID], msg)
	return msg, nil
}

// List returns messages ordered by (posted_at, seq) strictly after the cursor.
func (r *ChatRepository) List(ctx context.Context, activityID string, after *domain.Cursor, limit int) ([]domain.ChatMessage, *domain.Cursor, error) {
	var afterSeq int64
	if after != nil {
		parsed, err := strconv.ParseInt(after.ID, 10, 64)
		if err != nil {
			return nil, nil, &domain.ValidationError{Field: "cursor", Reason: "malformed chat cursor"}
		}
		afterSeq = parsed
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := slices.Clone(s.messages[activityID])
	slices.SortFunc(messages, compareMessages)

	out := make([]domain.ChatMessage, 0, limit)
	for _, msg := range messages {
		if after != nil && compareMessages(msg, domain.ChatMessage{PostedAt: after.At, Seq: afterSeq}) <= 0 {
			continue
		}
		out = append(out, msg)
		if len(out) == limit {
			break
		}
	}

	var next *domain.Cursor
	if len(out) == limit && limit > 0 {
		last := out[len(out)-1]
		next = &domain.Cursor{At: last.PostedAt, ID: strconv.FormatInt(last.Seq, 10)}
	}
	return out, next, nil
}

// ProfileDirectory implements domain.ProfileDirectory.
type ProfileDirectory struct {
	store *Store
}

// Lookup resolves the known ids.
func (d *ProfileDirectory) Lookup(ctx context.Context, userIDs []string) (map[string]domain.Profile, error) {
	s := d.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// Upsert records the profile.
func (d *ProfileDirectory) Upsert(ctx context.Context, profile domain.Profile) error {
	if strings.TrimSpace(profile.UserID) == "" {
		return fmt.Errorf("profile user id is required")
	}
	s := d.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *Store) checkNew(activities []domain.Activity) error {
	seen := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		if strings.TrimSpace(a.ID) == "" {
			return fmt.Errorf("activity id is required")
		}
		if _, ok := s.activities[a.ID]; ok {
			return fmt.Errorf("activity %s already exists", a.ID)
		}
		if _, ok := seen[a.ID]; ok {
			return fmt.Errorf("activity %s repeated in batch", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

func page(items []domain.Activity, limit int) ([]domain.Activity, *domain.Cursor, error) {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	var next *domain.Cursor
	if limit > 0 && len(items) == limit {
		last := items[len(items)-1]
		next = &domain.Cursor{At: last.StartAt, ID: last.ID}
	}
	return items, next, nil
}

func compareKey(aAt time.Time, aID string, bAt time.Time, bID string) int {
	if c := aAt.Compare(bAt); c != 0 {
		return c
	}
	return strings.Compare(aID, bID)
}

func compareMessages(a, b domain.ChatMessage) int {
	if c := a.PostedAt.Compare(b.PostedAt); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

func cloneActivity(a domain.Activity) domain.Activity {
	if a.Capacity != nil {
		capacity := *a.Capacity
		a.Capacity = &capacity
	}
	return a
}
