package domain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rafaelmorch/platform-sports/internal/observability"
)

// Local layouts produced by date/time pickers. RFC 3339 input is accepted as already absolute.
var localDateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ExpandPublication validates one authoring submission and emits one activity draft per unique
// start instant. Every draft shares the same content; only ID and StartAt differ.
func ExpandPublication(ownerID string, content ActivityContent, dates []string, timeZone string, now time.Time) ([]Activity, error) {
	normalized, err := content.normalize()
	if err != nil {
		return nil, err
	}
	instants, err := resolveDates(dates, timeZone)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	drafts := make([]Activity, 0, len(instants))
	for _, startAt := range instants {
		draft := Activity{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			StartAt:   startAt,
			Published: true,
			Public:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		normalized.apply(&draft)
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

// resolveDates turns candidate date strings into absolute instants. Blank entries are ignored,
// duplicates are detected on the raw strings before any time-zone resolution, and candidates
// that land on the same instant collapse into one.
func resolveDates(candidates []string, timeZone string) ([]time.Time, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(timeZone); tz != "" {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			return nil, invalid("time_zone", "unknown time zone %q", tz)
		}
		loc = loaded
	}

	raw := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			return nil, invalid("dates", "duplicate date %q", trimmed)
		}
		seen[trimmed] = struct{}{}
		raw = append(raw, trimmed)
	}
	if len(raw) == 0 {
		return nil, invalid("dates", "at least one date is required")
	}

	instants := make([]time.Time, 0, len(raw))
	unique := make(map[int64]struct{}, len(raw))
	for _, value := range raw {
		instant, ok := parseCandidate(value, loc)
		if !ok {
			return nil, invalid("dates", "cannot parse date %q", value)
		}
		key := instant.UnixNano()
		if _, dup := unique[key]; dup {
			continue
		}
		unique[key] = struct{}{}
		instants = append(instants, instant)
	}
	return instants, nil
}

func parseCandidate(value string, loc *time.Location) (time.Time, bool) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), true
	}
	for _, layout := range localDateLayouts {
		if parsed, err := time.ParseInLocation(layout, value, loc); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// ActivityService orchestrates publication and maintenance of activity records.
type ActivityService struct {
	repo       ActivityRepository
	attendance AttendanceRepository
	images     ImageStore
	logger     *slog.Logger
	now        func() time.Time
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo ActivityRepository, attendance AttendanceRepository, images ImageStore, opts ...Option) *ActivityService {
	o := buildOptions(opts)
	return &ActivityService{
		repo:       repo,
		attendance: attendance,
		images:     images,
		logger:     o.logger,
		now:        o.now,
	}
}

// PublishInput is one authoring submission listing one or more start dates.
type PublishInput struct {
	OwnerID  string
	Content  ActivityContent
	Dates    []string
	TimeZone string
}

// Publish expands the submission and stores every record in one batch. Either all records are
// created or none.
func (s *ActivityService) Publish(ctx context.Context, in PublishInput) ([]Activity, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, ErrUnauthenticated
	}

	drafts, err := ExpandPublication(in.OwnerID, in.Content, in.Dates, in.TimeZone, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateBatch(ctx, drafts); err != nil {
		return nil, fmt.Errorf("publish %d activities: %w", len(drafts), err)
	}

	observability.RecordPublication(len(drafts), drafts[0].CreatedAt)
	s.logger.Info("activities published",
		"owner_id", in.OwnerID,
		"records", len(drafts),
		"title", drafts[0].Title,
	)
	return drafts, nil
}

// UpdateInput edits an existing record and optionally schedules extra dates.
type UpdateInput struct {
	ActivityID string
	ActorID    string
	Content    ActivityContent
	ExtraDates []string
	TimeZone   string
}

// Update applies new content to an owned activity. When extra dates are supplied, the first one
// moves the existing record and the remaining ones become new siblings with the same content.
func (s *ActivityService) Update(ctx context.Context, in UpdateInput) (*Activity, []Activity, error) {
	existing, err := s.owned(ctx, in.ActivityID, in.ActorID)
	if err != nil {
		return nil, nil, err
	}

	normalized, err := in.Content.normalize()
	if err != nil {
		return nil, nil, err
	}

	var instants []time.Time
	if hasNonBlank(in.ExtraDates) {
		if instants, err = resolveDates(in.ExtraDates, in.TimeZone); err != nil {
			return nil, nil, err
		}
	}

	now := s.now().UTC()
	updated := *existing
	normalized.apply(&updated)
	updated.UpdatedAt = now

	var siblings []Activity
	if len(instants) > 0 {
		updated.StartAt = instants[0]
		siblings = make([]Activity, 0, len(instants)-1)
		for _, startAt := range instants[1:] {
			sibling := Activity{
				ID:        uuid.NewString(),
				OwnerID:   existing.OwnerID,
				StartAt:   startAt,
				ImageRef:  existing.ImageRef,
				Published: existing.Published,
				Public:    existing.Public,
				CreatedAt: now,
				UpdatedAt: now,
			}
			normalized.apply(&sibling)
			siblings = append(siblings, sibling)
		}
	}

	if err := s.repo.UpdateWithSiblings(ctx, updated, siblings); err != nil {
		return nil, nil, fmt.Errorf("update activity %s: %w", updated.ID, err)
	}
	if len(siblings) > 0 {
		observability.RecordPublication(len(siblings), now)
	}

	s.logger.Info("activity updated",
		"activity_id", updated.ID,
		"owner_id", updated.OwnerID,
		"siblings", len(siblings),
	)
	return &updated, siblings, nil
}

// Get returns the activity with its derived attendance summary. Unpublished records are only
// visible to their owner.
func (s *ActivityService) Get(ctx context.Context, activityID, viewerID string) (*ActivityDetail, error) {
	activity, err := visibleActivity(ctx, s.repo, activityID, viewerID)
	if err != nil {
		return nil, err
	}

	count, err := s.attendance.Count(ctx, activity.ID)
	if err != nil {
		return nil, err
	}
	return &ActivityDetail{Activity: *activity, Attendance: summarize(*activity, count)}, nil
}

// ListUpcoming returns published public activities starting from now, soonest first.
func (s *ActivityService) ListUpcoming(ctx context.Context, cursor *Cursor, limit int) ([]ActivityDetail, *Cursor, error) {
	activities, next, err := s.repo.ListUpcoming(ctx, s.now().UTC(), cursor, clampLimit(limit, defaultListLimit))
	if err != nil {
		return nil, nil, err
	}
	details, err := s.withAttendance(ctx, activities)
	if err != nil {
		return nil, nil, err
	}
	return details, next, nil
}

// ListByOwner returns the caller's own activities, including unpublished ones.
func (s *ActivityService) ListByOwner(ctx context.Context, ownerID string, cursor *Cursor, limit int) ([]ActivityDetail, *Cursor, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, nil, ErrUnauthenticated
	}
	activities, next, err := s.repo.ListByOwner(ctx, ownerID, cursor, clampLimit(limit, defaultListLimit))
	if err != nil {
		return nil, nil, err
	}
	details, err := s.withAttendance(ctx, activities)
	if err != nil {
		return nil, nil, err
	}
	return details, next, nil
}

// Delete removes an owned activity together with its entries and messages. Removing the image
// blob afterwards is best-effort.
func (s *ActivityService) Delete(ctx context.Context, activityID, actorID string) error {
	existing, err := s.owned(ctx, activityID, actorID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, existing.ID); err != nil {
		return fmt.Errorf("delete activity %s: %w", existing.ID, err)
	}
	s.discardImage(ctx, existing.ImageRef)
	s.logger.Info("activity deleted", "activity_id", existing.ID, "owner_id", existing.OwnerID)
	return nil
}

// ReplaceImage stores a new image for an owned activity and then drops the previous blob.
func (s *ActivityService) ReplaceImage(ctx context.Context, activityID, actorID, contentType string, body io.Reader, size int64) (*Activity, error) {
	existing, err := s.owned(ctx, activityID, actorID)
	if err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, ErrImageStorageDisabled
	}

	ref, err := s.images.Put(ctx, existing.OwnerID, contentType, body, size)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	now := s.now().UTC()
	if err := s.repo.SetImage(ctx, existing.ID, ref, now); err != nil {
		s.discardImage(ctx, ref)
		return nil, fmt.Errorf("attach image to activity %s: %w", existing.ID, err)
	}

	previous := existing.ImageRef
	existing.ImageRef = ref
	existing.UpdatedAt = now
	s.discardImage(ctx, previous)
	return existing, nil
}

func (s *ActivityService) owned(ctx context.Context, activityID, actorID string) (*Activity, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, ErrUnauthenticated
	}
	existing, err := s.repo.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.OwnerID != actorID {
		return nil, ErrUnauthorized
	}
	return existing, nil
}

// discardImage removes a blob once no activity references it. Siblings share their image.
func (s *ActivityService) discardImage(ctx context.Context, ref string) {
	if ref == "" || s.images == nil {
		return
	}
	inUse, err := s.repo.CountByImageRef(ctx, ref)
	if err != nil {
		s.logger.Warn("image cleanup skipped", "image_ref", ref, "error", err)
		return
	}
	if inUse > 0 {
		s.logger.Debug("image still referenced", "image_ref", ref, "activities", inUse)
		return
	}
	if err := s.images.Delete(ctx, ref); err != nil {
		s.logger.Warn("image cleanup failed", "image_ref", ref, "error", err)
	}
}

func (s *ActivityService) withAttendance(ctx context.Context, activities []Activity) ([]ActivityDetail, error) {
	if len(activities) == 0 {
		return []ActivityDetail{}, nil
	}
	ids := make([]string, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ID)
	}
	counts, err := s.attendance.CountMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	details := make([]ActivityDetail, 0, len(activities))
	for _, a := range activities {
		details = append(details, ActivityDetail{Activity: a, Attendance: summarize(a, counts[a.ID])})
	}
	return details, nil
}

func hasNonBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, maxListLimit)
}
