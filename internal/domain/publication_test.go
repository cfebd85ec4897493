package domain_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/rafaelmorch/platform-sports/internal/domain"
	"github.com/rafaelmorch/platform-sports/internal/persistence/memory"
)

func newActivityService(store *memory.Store, images domain.ImageStore) *domain.ActivityService {
	clock := newStepClock()
	return domain.NewActivityService(store.Activities(), store.Attendance(), images, domain.WithClock(clock.Now))
}

func TestExpandPublicationCreatesOneRecordPerDate(t *testing.T) {
	dates := []string{"2030-02-01T18:00", "2030-02-08T18:00", "2030-02-15T18:00"}

	drafts, err := domain.ExpandPublication("owner-1", validContent(), dates, "", baseTime)
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	ids := map[string]struct{}{}
	starts := map[time.Time]struct{}{}
	for _, d := range drafts {
		require.Equal(t, "Sunday beach volley", d.Title)
		require.Equal(t, "Av. Atlantica 1702", d.AddressText)
		require.Equal(t, 10, *d.Capacity)
		require.Equal(t, "owner-1", d.OwnerID)
		ids[d.ID] = struct{}{}
		starts[d.StartAt] = struct{}{}
	}
	require.Len(t, ids, 3)
	require.Len(t, starts, 3)
	require.Equal(t, time.Date(2030, 2, 1, 18, 0, 0, 0, time.UTC), drafts[0].StartAt)
}

func TestExpandPublicationResolvesTimeZone(t *testing.T) {
	drafts, err := domain.ExpandPublication("owner-1", validContent(), []string{"2030-02-01 18:00"}, "America/Sao_Paulo", baseTime)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, time.Date(2030, 2, 1, 21, 0, 0, 0, time.UTC), drafts[0].StartAt)
}

func TestExpandPublicationCollapsesSameInstant(t *testing.T) {
	dates := []string{"2030-02-01T18:00", "2030-02-01T18:00:00Z", "  "}

	drafts, err := domain.ExpandPublication("owner-1", validContent(), dates, "UTC", baseTime)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
}

func TestExpandPublicationRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.ActivityContent)
		dates  []string
		tz     string
		field  string
	}{
		{name: "short title", mutate: func(c *domain.ActivityContent) { c.Title = " ab " }, field: "title"},
		{name: "short sport", mutate: func(c *domain.ActivityContent) { c.Sport = "x" }, field: "sport"},
		{name: "short address", mutate: func(c *domain.ActivityContent) { c.AddressText = "Rua" }, field: "address"},
		{name: "short city", mutate: func(c *domain.ActivityContent) { c.City = "R" }, field: "city"},
		{name: "short state", mutate: func(c *domain.ActivityContent) { c.State = "" }, field: "state"},
		{name: "zero capacity", mutate: func(c *domain.ActivityContent) { c.Capacity = intPtr(0) }, field: "capacity"},
		{name: "negative waitlist", mutate: func(c *domain.ActivityContent) { c.WaitlistCapacity = intPtr(-1) }, field: "waitlist_capacity"},
		{name: "negative price", mutate: func(c *domain.ActivityContent) { p := int64(-100); c.PriceCents = &p }, field: "price_cents"},
		{name: "only blank dates", dates: []string{"", "   "}, field: "dates"},
		{name: "duplicate dates", dates: []string{"2030-02-01T18:00", "2030-02-08T18:00", " 2030-02-01T18:00"}, field: "dates"},
		{name: "unparseable date", dates: []string{"next friday"}, field: "dates"},
		{name: "unknown zone", tz: "Mars/Olympus", field: "time_zone"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			content := validContent()
			if tc.mutate != nil {
				tc.mutate(&content)
			}
			dates := tc.dates
			if dates == nil {
				dates = []string{"2030-02-01T18:00"}
			}

			drafts, err := domain.ExpandPublication("owner-1", content, dates, tc.tz, baseTime)
			require.Nil(t, drafts)
			require.ErrorIs(t, err, domain.ErrValidation)

			var vErr *domain.ValidationError
			require.True(t, errors.As(err, &vErr))
			require.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestPublishIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newActivityService(store, nil)

	_, err := svc.Publish(ctx, domain.PublishInput{
		OwnerID: "owner-1",
		Content: validContent(),
		Dates:   []string{"2030-02-01T18:00", "2030-02-01T18:00", "2030-02-15T18:00"},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	listed, _, err := svc.ListByOwner(ctx, "owner-1", nil, 0)
	require.NoError(t, err)
	require.Empty(t, listed)

	created, err := svc.Publish(ctx, domain.PublishInput{
		OwnerID: "owner-1",
		Content: validContent(),
		Dates:   []string{"2030-02-01T18:00", "2030-02-08T18:00", "2030-02-15T18:00"},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	listed, _, err = svc.ListByOwner(ctx, "owner-1", nil, 0)
	require.NoError(t, err)
	require.Len(t, listed, 3)
}

func TestPublishRequiresIdentity(t *testing.T) {
	svc := newActivityService(memory.NewStore(), nil)
	_, err := svc.Publish(context.Background(), domain.PublishInput{Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestUpdateMovesRecordAndCreatesSiblings(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newActivityService(store, nil)

	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)
	original := created[0]

	content := validContent()
	content.Title = "Sunday beach volley (4x4)"

	_, _, err = svc.Update(ctx, domain.UpdateInput{ActivityID: original.ID, ActorID: "intruder", Content: content})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	updated, siblings, err := svc.Update(ctx, domain.UpdateInput{
		ActivityID: original.ID,
		ActorID:    "owner-1",
		Content:    content,
		ExtraDates: []string{"2030-03-01T09:00", "2030-03-08T09:00"},
	})
	require.NoError(t, err)
	require.Equal(t, original.ID, updated.ID)
	require.Equal(t, time.Date(2030, 3, 1, 9, 0, 0, 0, time.UTC), updated.StartAt)
	require.Equal(t, original.CreatedAt, updated.CreatedAt)
	require.Len(t, siblings, 1)
	require.Equal(t, content.Title, siblings[0].Title)

	listed, _, err := svc.ListByOwner(ctx, "owner-1", nil, 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, d := range listed {
		require.Equal(t, content.Title, d.Title)
	}
}

func TestUpdateWithoutDatesKeepsSchedule(t *testing.T) {
	ctx := context.Background()
	svc := newActivityService(memory.NewStore(), nil)

	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)

	content := validContent()
	content.Capacity = nil
	updated, siblings, err := svc.Update(ctx, domain.UpdateInput{ActivityID: created[0].ID, ActorID: "owner-1", Content: content, ExtraDates: []string{" "}})
	require.NoError(t, err)
	require.Empty(t, siblings)
	require.Equal(t, created[0].StartAt, updated.StartAt)
	require.Nil(t, updated.Capacity)
}

func TestGetHidesUnpublishedFromOthers(t *testing.T) {
	ctx := context.Background()
	svc := newActivityService(memory.NewStore(), nil)

	content := validContent()
	content.Published = boolPtr(false)
	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: content, Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)

	_, err = svc.Get(ctx, created[0].ID, "someone-else")
	require.ErrorIs(t, err, domain.ErrNotFound)

	detail, err := svc.Get(ctx, created[0].ID, "owner-1")
	require.NoError(t, err)
	require.Equal(t, 0, detail.Attendance.Count)
	require.Equal(t, 10, *detail.Attendance.SpotsLeft)

	_, err = svc.Get(ctx, "missing", "owner-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListUpcomingPagesPublicActivities(t *testing.T) {
	ctx := context.Background()
	svc := newActivityService(memory.NewStore(), nil)

	_, err := svc.Publish(ctx, domain.PublishInput{
		OwnerID: "owner-1",
		Content: validContent(),
		Dates:   []string{"2030-02-03T18:00", "2030-02-01T18:00", "2030-02-02T18:00", "2029-12-01T18:00"},
	})
	require.NoError(t, err)

	private := validContent()
	private.Public = boolPtr(false)
	_, err = svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-2", Content: private, Dates: []string{"2030-02-01T10:00"}})
	require.NoError(t, err)

	first, next, err := svc.ListUpcoming(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, next)
	require.Equal(t, 1, first[0].StartAt.Day())
	require.Equal(t, 2, first[1].StartAt.Day())

	second, _, err := svc.ListUpcoming(ctx, next, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, 3, second[0].StartAt.Day())
}

func TestDeleteCascadesAndCleansImage(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	images := newFakeImages()
	svc := newActivityService(store, images)

	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)
	id := created[0].ID

	_, err = svc.ReplaceImage(ctx, id, "owner-1", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	_, err = store.Attendance().Insert(ctx, domain.AttendanceEntry{ActivityID: id, UserID: "u1", ConfirmedAt: baseTime})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, id, "intruder"), domain.ErrUnauthorized)
	require.ErrorIs(t, svc.Delete(ctx, id, ""), domain.ErrUnauthenticated)

	images.deleteErr = errors.New("bucket unavailable")
	require.NoError(t, svc.Delete(ctx, id, "owner-1"))
	require.Len(t, images.deleted, 1)

	count, err := store.Attendance().Count(ctx, id)
	require.NoError(t, err)
	require.Zero(t, count)

	require.ErrorIs(t, svc.Delete(ctx, id, "owner-1"), domain.ErrNotFound)
}

func TestReplaceImageDropsPreviousBlob(t *testing.T) {
	ctx := context.Background()
	images := newFakeImages()
	svc := newActivityService(memory.NewStore(), images)

	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)
	id := created[0].ID

	first, err := svc.ReplaceImage(ctx, id, "owner-1", "image/jpeg", strings.NewReader("one"), 3)
	require.NoError(t, err)
	require.NotEmpty(t, first.ImageRef)

	second, err := svc.ReplaceImage(ctx, id, "owner-1", "image/jpeg", strings.NewReader("two"), 3)
	require.NoError(t, err)
	require.NotEqual(t, first.ImageRef, second.ImageRef)
	require.Equal(t, []string{first.ImageRef}, images.deleted)

	_, err = svc.ReplaceImage(ctx, id, "intruder", "image/jpeg", strings.NewReader("three"), 5)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	detail, err := svc.Get(ctx, id, "")
	require.NoError(t, err)
	require.Equal(t, second.ImageRef, detail.ImageRef)
}

func TestDeleteKeepsImageSharedWithSiblings(t *testing.T) {
	ctx := context.Background()
	images := newFakeImages()
	svc := newActivityService(memory.NewStore(), images)

	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)
	id := created[0].ID

	withImage, err := svc.ReplaceImage(ctx, id, "owner-1", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	ref := withImage.ImageRef

	_, siblings, err := svc.Update(ctx, domain.UpdateInput{
		ActivityID: id,
		ActorID:    "owner-1",
		Content:    validContent(),
		ExtraDates: []string{"2030-03-01T09:00", "2030-03-08T09:00"},
	})
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	require.Equal(t, ref, siblings[0].ImageRef)

	require.NoError(t, svc.Delete(ctx, id, "owner-1"))
	require.Empty(t, images.deleted)
	require.Contains(t, images.blobs, ref)

	sibling, err := svc.Get(ctx, siblings[0].ID, "")
	require.NoError(t, err)
	require.Equal(t, ref, sibling.ImageRef)

	require.NoError(t, svc.Delete(ctx, siblings[0].ID, "owner-1"))
	require.Equal(t, []string{ref}, images.deleted)
	require.NotContains(t, images.blobs, ref)
}

func TestDeleteKeepsImageReferencedByAnotherOwner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	images := newFakeImages()
	svc := newActivityService(store, images)

	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "victim", Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)
	withImage, err := svc.ReplaceImage(ctx, created[0].ID, "victim", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)

	borrowed := domain.Activity{
		ID:          "borrowed",
		OwnerID:     "attacker",
		Title:       "Copycat run",
		Sport:       "running",
		StartAt:     baseTime.Add(48 * time.Hour),
		AddressText: "Aterro do Flamengo",
		City:        "Rio de Janeiro",
		State:       "RJ",
		ImageRef:    withImage.ImageRef,
		Published:   true,
		Public:      true,
		CreatedAt:   baseTime,
		UpdatedAt:   baseTime,
	}
	require.NoError(t, store.Activities().CreateBatch(ctx, []domain.Activity{borrowed}))

	require.NoError(t, svc.Delete(ctx, borrowed.ID, "attacker"))
	require.Empty(t, images.deleted)
	require.Contains(t, images.blobs, withImage.ImageRef)
}

func TestReplaceImageKeepsBlobStillUsedBySibling(t *testing.T) {
	ctx := context.Background()
	images := newFakeImages()
	svc := newActivityService(memory.NewStore(), images)

	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)
	id := created[0].ID

	first, err := svc.ReplaceImage(ctx, id, "owner-1", "image/png", strings.NewReader("one"), 3)
	require.NoError(t, err)
	_, siblings, err := svc.Update(ctx, domain.UpdateInput{
		ActivityID: id,
		ActorID:    "owner-1",
		Content:    validContent(),
		ExtraDates: []string{"2030-03-01T09:00", "2030-03-08T09:00"},
	})
	require.NoError(t, err)
	require.Len(t, siblings, 1)

	second, err := svc.ReplaceImage(ctx, id, "owner-1", "image/png", strings.NewReader("two"), 3)
	require.NoError(t, err)
	require.NotEqual(t, first.ImageRef, second.ImageRef)
	require.Empty(t, images.deleted)
	require.Contains(t, images.blobs, first.ImageRef)
}

func TestReplaceImageWithoutStorage(t *testing.T) {
	ctx := context.Background()
	svc := newActivityService(memory.NewStore(), nil)

	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: validContent(), Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)

	_, err = svc.ReplaceImage(ctx, created[0].ID, "owner-1", "image/png", strings.NewReader("png"), 3)
	require.ErrorIs(t, err, domain.ErrImageStorageDisabled)
}

func TestVisibilityFlagsDefaultOnPublishAndPersistOnUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newActivityService(memory.NewStore(), nil)

	content := validContent()
	content.Published = nil
	content.Public = nil
	created, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: content, Dates: []string{"2030-02-01T18:00"}})
	require.NoError(t, err)
	require.True(t, created[0].Published)
	require.True(t, created[0].Public)

	draft := validContent()
	draft.Published = boolPtr(false)
	drafts, err := svc.Publish(ctx, domain.PublishInput{OwnerID: "owner-1", Content: draft, Dates: []string{"2030-02-02T18:00"}})
	require.NoError(t, err)

	edit := validContent()
	edit.Title = "Renamed draft"
	edit.Published = nil
	edit.Public = boolPtr(false)
	updated, siblings, err := svc.Update(ctx, domain.UpdateInput{
		ActivityID: drafts[0].ID,
		ActorID:    "owner-1",
		Content:    edit,
		ExtraDates: []string{"2030-03-01T09:00", "2030-03-08T09:00"},
	})
	require.NoError(t, err)
	require.False(t, updated.Published)
	require.False(t, updated.Public)
	require.Len(t, siblings, 1)
	require.False(t, siblings[0].Published)

	_, err = svc.Get(ctx, drafts[0].ID, "someone-else")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
