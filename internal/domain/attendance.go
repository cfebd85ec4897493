package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rafaelmorch/platform-sports/internal/observability"
)

// AttendanceEntry records that a user has confirmed for an activity. Confirmed versus
// waitlisted is not stored; it follows from the entry's position in confirmation order.
type AttendanceEntry struct {
	ActivityID  string
	UserID      string
	ConfirmedAt time.Time
}

// ConfirmResult describes the outcome of a confirmation request.
type ConfirmResult struct {
	Verdict Verdict
	// Replay is true when the caller already held an entry and nothing was written.
	Replay  bool
	Summary AttendanceSummary
}

// CancelResult describes the outcome of a cancellation request.
type CancelResult struct {
	Removed bool
	Summary AttendanceSummary
}

// Roster is either a PublicRoster or an OwnerRoster.
type Roster interface {
	roster()
}

// PublicRosterEntry is the coarse identity any viewer may see.
type PublicRosterEntry struct {
	UserID      string
	DisplayName string
	Status      AttendeeStatus
}

// PublicRoster is returned to everyone except the activity owner.
type PublicRoster struct {
	ActivityID string
	Count      int
	SpotsLeft  *int
	Attendees  []PublicRosterEntry
}

// OwnerRosterEntry carries contact details and is only built for the owner.
type OwnerRosterEntry struct {
	UserID      string
	Name        string
	Email       string
	ConfirmedAt time.Time
	Status      AttendeeStatus
}

// OwnerRoster is the full roster for the activity owner.
type OwnerRoster struct {
	ActivityID string
	Count      int
	SpotsLeft  *int
	Attendees  []OwnerRosterEntry
}

func (PublicRoster) roster() {}
func (OwnerRoster) roster()  {}

// AttendanceService toggles confirmations and exposes rosters.
//
// Capacity is enforced on a best-effort basis. Two users racing for the last seat may both be
// admitted; the (activity, user) uniqueness of the store still prevents duplicate entries.
type AttendanceService struct {
	activities ActivityRepository
	entries    AttendanceRepository
	profiles   ProfileDirectory
	logger     *slog.Logger
	now        func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(activities ActivityRepository, entries AttendanceRepository, profiles ProfileDirectory, opts ...Option) *AttendanceService {
	o := buildOptions(opts)
	return &AttendanceService{
		activities: activities,
		entries:    entries,
		profiles:   profiles,
		logger:     o.logger,
		now:        o.now,
	}
}

// Confirm registers the user for the activity. Confirming twice is a successful no-op.
func (s *AttendanceService) Confirm(ctx context.Context, activityID, userID string) (*ConfirmResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	activity, err := s.visibleActivity(ctx, activityID, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.entries.Find(ctx, activity.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.replay(ctx, *activity, userID)
	}

	count, err := s.entries.Count(ctx, activity.ID)
	if err != nil {
		return nil, err
	}
	verdict := Evaluate(activity.Capacity, activity.WaitlistCapacity, count)
	if verdict == VerdictRejected {
		observability.RecordConfirmation(string(verdict))
		s.logger.Info("confirmation rejected", "activity_id", activity.ID, "user_id", userID, "count", count)
		return nil, fmt.Errorf("%w: activity %s is full", ErrCapacityExceeded, activity.ID)
	}

	created, err := s.entries.Insert(ctx, AttendanceEntry{
		ActivityID:  activity.ID,
		UserID:      userID,
		ConfirmedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("insert attendance entry: %w", err)
	}
	if !created {
		// A concurrent request from the same user won the insert.
		return s.replay(ctx, *activity, userID)
	}

	total, err := s.entries.Count(ctx, activity.ID)
	if err != nil {
		return nil, err
	}
	observability.RecordConfirmation(string(verdict))
	s.logger.Info("attendance confirmed",
		"activity_id", activity.ID,
		"user_id", userID,
		"verdict", verdict,
		"count", total,
	)
	return &ConfirmResult{Verdict: verdict, Summary: summarize(*activity, total)}, nil
}

// Cancel removes the user's entry. Cancelling without an entry is a no-op.
func (s *AttendanceService) Cancel(ctx context.Context, activityID, userID string) (*CancelResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrNotFound
	}
	if !activity.Published && activity.OwnerID != userID {
		// Attendees keep the right to leave a record that was unpublished after they joined.
		entry, err := s.entries.Find(ctx, activity.ID, userID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, ErrNotFound
		}
	}

	removed, err := s.entries.Delete(ctx, activity.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete attendance entry: %w", err)
	}
	count, err := s.entries.Count(ctx, activity.ID)
	if err != nil {
		return nil, err
	}
	if removed {
		observability.RecordCancellation()
		s.logger.Info("attendance cancelled", "activity_id", activity.ID, "user_id", userID, "count", count)
	}
	return &CancelResult{Removed: removed, Summary: summarize(*activity, count)}, nil
}

// ListConfirmed returns the owner roster to the activity owner and the public roster to anyone
// else who is signed in.
func (s *AttendanceService) ListConfirmed(ctx context.Context, activityID, requesterID string) (Roster, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, ErrUnauthenticated
	}
	activity, err := s.visibleActivity(ctx, activityID, requesterID)
	if err != nil {
		return nil, err
	}
	if activity.OwnerID == requesterID {
		return s.ownerRoster(ctx, *activity)
	}
	return s.publicRoster(ctx, *activity)
}

// OwnerRoster returns the full roster, failing with ErrUnauthorized for anyone but the owner.
func (s *AttendanceService) OwnerRoster(ctx context.Context, activityID, requesterID string) (*OwnerRoster, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, ErrUnauthenticated
	}
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrNotFound
	}
	if activity.OwnerID != requesterID {
		return nil, ErrUnauthorized
	}
	roster, err := s.ownerRoster(ctx, *activity)
	if err != nil {
		return nil, err
	}
	return &roster, nil
}

// Summary returns the derived attendance numbers for an activity the viewer can see.
func (s *AttendanceService) Summary(ctx context.Context, activityID, viewerID string) (*AttendanceSummary, error) {
	activity, err := s.visibleActivity(ctx, activityID, viewerID)
	if err != nil {
		return nil, err
	}
	count, err := s.entries.Count(ctx, activity.ID)
	if err != nil {
		return nil, err
	}
	summary := summarize(*activity, count)
	return &summary, nil
}

func (s *AttendanceService) visibleActivity(ctx context.Context, activityID, userID string) (*Activity, error) {
	return visibleActivity(ctx, s.activities, activityID, userID)
}

func (s *AttendanceService) replay(ctx context.Context, activity Activity, userID string) (*ConfirmResult, error) {
	entries, err := s.entries.List(ctx, activity.ID)
	if err != nil {
		return nil, err
	}
	verdict := VerdictAccepted
	for i, entry := range entries {
		if entry.UserID == userID {
			if statusAt(activity.Capacity, i) == AttendeeWaitlisted {
				verdict = VerdictWaitlisted
			}
			break
		}
	}
	return &ConfirmResult{
		Verdict: verdict,
		Replay:  true,
		Summary: summarize(activity, len(entries)),
	}, nil
}

func (s *AttendanceService) ownerRoster(ctx context.Context, activity Activity) (OwnerRoster, error) {
	entries, profiles, err := s.rosterEntries(ctx, activity.ID)
	if err != nil {
		return OwnerRoster{}, err
	}
	summary := summarize(activity, len(entries))
	roster := OwnerRoster{
		ActivityID: activity.ID,
		Count:      summary.Count,
		SpotsLeft:  summary.SpotsLeft,
		Attendees:  make([]OwnerRosterEntry, 0, len(entries)),
	}
	for i, entry := range entries {
		profile := profiles[entry.UserID]
		roster.Attendees = append(roster.Attendees, OwnerRosterEntry{
			UserID:      entry.UserID,
			Name:        profile.DisplayName,
			Email:       profile.Email,
			ConfirmedAt: entry.ConfirmedAt,
			Status:      statusAt(activity.Capacity, i),
		})
	}
	return roster, nil
}

func (s *AttendanceService) publicRoster(ctx context.Context, activity Activity) (PublicRoster, error) {
	entries, profiles, err := s.rosterEntries(ctx, activity.ID)
	if err != nil {
		return PublicRoster{}, err
	}
	summary := summarize(activity, len(entries))
	roster := PublicRoster{
		ActivityID: activity.ID,
		Count:      summary.Count,
		SpotsLeft:  summary.SpotsLeft,
		Attendees:  make([]PublicRosterEntry, 0, len(entries)),
	}
	for i, entry := range entries {
		roster.Attendees = append(roster.Attendees, PublicRosterEntry{
			UserID:      entry.UserID,
			DisplayName: profiles[entry.UserID].DisplayName,
			Status:      statusAt(activity.Capacity, i),
		})
	}
	return roster, nil
}

func (s *AttendanceService) rosterEntries(ctx context.Context, activityID string) ([]AttendanceEntry, map[string]Profile, error) {
	entries, err := s.entries.List(ctx, activityID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.UserID)
	}
	profiles, err := lookupProfiles(ctx, s.profiles, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve attendee profiles: %w", err)
	}
	return entries, profiles, nil
}

// lookupProfiles resolves the distinct ids in a single directory call.
func lookupProfiles(ctx context.Context, directory ProfileDirectory, ids []string) (map[string]Profile, error) {
	if directory == nil || len(ids) == 0 {
		return map[string]Profile{}, nil
	}
	distinct := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}
	profiles, err := directory.Lookup(ctx, distinct)
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = map[string]Profile{}
	}
	return profiles, nil
}
