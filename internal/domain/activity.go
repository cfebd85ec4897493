// Package domain holds the scheduling and attendance rules for sports activities.
package domain

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// Activity is one schedulable instance with a single fixed start instant.
// Recurrence is expressed as several sibling activities, never as one activity with many dates.
type Activity struct {
	ID               string
	OwnerID          string
	Title            string
	Sport            string
	Description      string
	StartAt          time.Time
	AddressText      string
	City             string
	State            string
	Capacity         *int // nil means unlimited
	WaitlistCapacity int
	PriceCents       int64
	ImageRef         string
	Published        bool
	Public           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ActivityContent is the authoring payload shared by every record produced from one submission.
type ActivityContent struct {
	Title            string
	Sport            string
	Description      string
	AddressText      string
	City             string
	State            string
	Capacity         *int
	WaitlistCapacity *int
	PriceCents       *int64
	// Published and Public keep the record's current value when nil. New records default to true.
	Published *bool
	Public    *bool
}

// ActivityDetail pairs an activity with its attendance summary, derived at read time.
type ActivityDetail struct {
	Activity
	Attendance AttendanceSummary
}

// Cursor models the pagination token shared by list operations.
type Cursor struct {
	At time.Time
	ID string
}

const (
	minTitleLen   = 3
	minSportLen   = 2
	minAddressLen = 5
	minRegionLen  = 2
)

// normalize trims the free-text fields and enforces the length and numeric rules.
func (c ActivityContent) normalize() (ActivityContent, error) {
	out := c
	out.Title = strings.TrimSpace(c.Title)
	out.Sport = strings.TrimSpace(c.Sport)
	out.Description = strings.TrimSpace(c.Description)
	out.AddressText = strings.TrimSpace(c.AddressText)
	out.City = strings.TrimSpace(c.City)
	out.State = strings.TrimSpace(c.State)

	checks := []struct {
		field string
		value string
		min   int
	}{
		{"title", out.Title, minTitleLen},
		{"sport", out.Sport, minSportLen},
		{"address", out.AddressText, minAddressLen},
		{"city", out.City, minRegionLen},
		{"state", out.State, minRegionLen},
	}
	for _, check := range checks {
		if utf8.RuneCountInString(check.value) < check.min {
			return ActivityContent{}, invalid(check.field, "must be at least %d characters", check.min)
		}
	}

	if out.Capacity != nil && *out.Capacity <= 0 {
		return ActivityContent{}, invalid("capacity", "must be a positive integer when set")
	}
	if out.WaitlistCapacity != nil && *out.WaitlistCapacity < 0 {
		return ActivityContent{}, invalid("waitlist_capacity", "must not be negative")
	}
	if out.PriceCents != nil && *out.PriceCents < 0 {
		return ActivityContent{}, invalid("price_cents", "must not be negative")
	}
	return out, nil
}

// apply copies normalized content onto an activity, leaving identity, schedule and image untouched.
func (c ActivityContent) apply(a *Activity) {
	a.Title = c.Title
	a.Sport = c.Sport
	a.Description = c.Description
	a.AddressText = c.AddressText
	a.City = c.City
	a.State = c.State
	a.Capacity = nil
	if c.Capacity != nil {
		capacity := *c.Capacity
		a.Capacity = &capacity
	}
	a.WaitlistCapacity = 0
	if c.WaitlistCapacity != nil {
		a.WaitlistCapacity = *c.WaitlistCapacity
	}
	a.PriceCents = 0
	if c.PriceCents != nil {
		a.PriceCents = *c.PriceCents
	}
	if c.Published != nil {
		a.Published = *c.Published
	}
	if c.Public != nil {
		a.Public = *c.Public
	}
}

// visibleActivity loads an activity for a viewer. Unpublished records exist only for their owner.
func visibleActivity(ctx context.Context, repo ActivityRepository, activityID, viewerID string) (*Activity, error) {
	activity, err := repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil || (!activity.Published && activity.OwnerID != viewerID) {
		return nil, ErrNotFound
	}
	return activity, nil
}

// ActivityRepository captures persistence of activity records.
// Get and lookups return (nil, nil) when the record does not exist.
type ActivityRepository interface {
	// CreateBatch stores every activity or none of them.
	CreateBatch(ctx context.Context, activities []Activity) error
	// UpdateWithSiblings updates one activity and creates its new siblings in a single unit.
	UpdateWithSiblings(ctx context.Context, updated Activity, siblings []Activity) error
	Get(ctx context.Context, id string) (*Activity, error)
	ListUpcoming(ctx context.Context, from time.Time, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	ListByOwner(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	Delete(ctx context.Context, id string) error
	SetImage(ctx context.Context, id, imageRef string, updatedAt time.Time) error
	// CountByImageRef reports how many activities still point at the image.
	CountByImageRef(ctx context.Context, imageRef string) (int, error)
}

// AttendanceRepository stores attendance entries. (activity_id, user_id) is unique.
type AttendanceRepository interface {
	Find(ctx context.Context, activityID, userID string) (*AttendanceEntry, error)
	// Insert reports false when the entry already existed.
	Insert(ctx context.Context, entry AttendanceEntry) (bool, error)
	// Delete reports false when there was nothing to delete.
	Delete(ctx context.Context, activityID, userID string) (bool, error)
	Count(ctx context.Context, activityID string) (int, error)
	CountMany(ctx context.Context, activityIDs []string) (map[string]int, error)
	// List returns entries ordered by confirmation time, then user id.
	List(ctx context.Context, activityID string) ([]AttendanceEntry, error)
}

// ChatRepository is the append-only message log.
type ChatRepository interface {
	Append(ctx context.Context, msg ChatMessage) (ChatMessage, error)
	// List returns messages oldest-first strictly after the cursor.
	List(ctx context.Context, activityID string, after *Cursor, limit int) ([]ChatMessage, *Cursor, error)
}

// Profile is the identity provider's view of a user.
type Profile struct {
	UserID      string
	DisplayName string
	Email       string
}

// ProfileDirectory resolves many user ids in a single call.
type ProfileDirectory interface {
	Lookup(ctx context.Context, userIDs []string) (map[string]Profile, error)
}

// ImageStore keeps image blobs and hands back opaque references.
type ImageStore interface {
	Put(ctx context.Context, ownerID, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, ref string) error
}
