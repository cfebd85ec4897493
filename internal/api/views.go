package api

import (
	"errors"
	"time"

	"github.com/rafaelmorch/platform-sports/internal/domain"
	"github.com/rafaelmorch/platform-sports/internal/persistence"
)

var errUnknownRoster = errors.New("unknown roster shape")

// ContentRequest is the authoring payload shared by publish and update. Images are attached
// through PUT /v1/activities/{id}/image only.
type ContentRequest struct {
	Title            string `json:"title"`
	Sport            string `json:"sport"`
	Description      string `json:"description"`
	Address          string `json:"address"`
	City             string `json:"city"`
	State            string `json:"state"`
	Capacity         *int   `json:"capacity"`
	WaitlistCapacity *int   `json:"waitlist_capacity"`
	PriceCents       *int64 `json:"price_cents"`
	// Published and Public default to true on publish and keep their value on update when omitted.
	Published *bool `json:"published"`
	Public    *bool `json:"public"`
}

func (c ContentRequest) content() domain.ActivityContent {
	return domain.ActivityContent{
		Title:            c.Title,
		Sport:            c.Sport,
		Description:      c.Description,
		AddressText:      c.Address,
		City:             c.City,
		State:            c.State,
		Capacity:         c.Capacity,
		WaitlistCapacity: c.WaitlistCapacity,
		PriceCents:       c.PriceCents,
		Published:        c.Published,
		Public:           c.Public,
	}
}

// PublishRequest is the payload for POST /v1/activities.
type PublishRequest struct {
	ContentRequest
	Dates    []string `json:"dates"`
	TimeZone string   `json:"time_zone"`
}

// UpdateRequest is the payload for PUT /v1/activities/{id}.
type UpdateRequest struct {
	ContentRequest
	ExtraDates []string `json:"extra_dates"`
	TimeZone   string   `json:"time_zone"`
}

// PostMessageRequest is the payload for POST /v1/activities/{id}/messages.
type PostMessageRequest struct {
	Body string `json:"body"`
}

// AttendanceView exposes the derived attendance numbers.
type AttendanceView struct {
	Count             int  `json:"count"`
	Confirmed         int  `json:"confirmed"`
	Waitlisted        int  `json:"waitlisted"`
	SpotsLeft         *int `json:"spots_left"`
	WaitlistSpotsLeft int  `json:"waitlist_spots_left"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID       string          `json:"activity_id"`
	OwnerID          string          `json:"owner_id"`
	Title            string          `json:"title"`
	Sport            string          `json:"sport"`
	Description      string          `json:"description,omitempty"`
	StartAt          time.Time       `json:"start_at"`
	Address          string          `json:"address"`
	City             string          `json:"city"`
	State            string          `json:"state"`
	Capacity         *int            `json:"capacity"`
	WaitlistCapacity int             `json:"waitlist_capacity"`
	PriceCents       int64           `json:"price_cents"`
	ImageURL         string          `json:"image_url,omitempty"`
	Published        bool            `json:"published"`
	Public           bool            `json:"public"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Attendance       *AttendanceView `json:"attendance,omitempty"`
}

// PublishResponse lists every record created by one publication.
type PublishResponse struct {
	Items []ActivityView `json:"items"`
}

// UpdateResponse carries the edited record and any siblings created from extra dates.
type UpdateResponse struct {
	Activity ActivityView   `json:"activity"`
	Siblings []ActivityView `json:"siblings"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ConfirmResponse reports the verdict of a confirmation.
type ConfirmResponse struct {
	Status     string         `json:"status"`
	Replay     bool           `json:"idempotent_replay"`
	Attendance AttendanceView `json:"attendance"`
}

// CancelResponse reports whether an entry was removed.
type CancelResponse struct {
	Removed    bool           `json:"removed"`
	Attendance AttendanceView `json:"attendance"`
}

// PublicAttendeeView is one row of the public roster.
type PublicAttendeeView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
}

// OwnerAttendeeView is one row of the owner roster.
type OwnerAttendeeView struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	ConfirmedAt time.Time `json:"confirmed_at"`
	Status      string    `json:"status"`
}

// RosterView is returned by the roster endpoints. View is "public" or "owner".
type RosterView struct {
	ActivityID string `json:"activity_id"`
	View       string `json:"view"`
	Count      int    `json:"count"`
	SpotsLeft  *int   `json:"spots_left"`
	Attendees  any    `json:"attendees"`
}

// ChatMessageView is one message in the feed.
type ChatMessageView struct {
	MessageID  string    `json:"message_id"`
	UserID     string    `json:"user_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	PostedAt   time.Time `json:"posted_at"`
}

// ChatPageResponse is one oldest-first page of messages.
type ChatPageResponse struct {
	Items      []ChatMessageView `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

func toAttendanceView(s domain.AttendanceSummary) AttendanceView {
	return AttendanceView{
		Count:             s.Count,
		Confirmed:         s.Confirmed,
		Waitlisted:        s.Waitlisted,
		SpotsLeft:         s.SpotsLeft,
		WaitlistSpotsLeft: s.WaitlistSpotsLeft,
	}
}

func toActivityView(a domain.Activity, summary *domain.AttendanceSummary) ActivityView {
	view := ActivityView{
		ActivityID:       a.ID,
		OwnerID:          a.OwnerID,
		Title:            a.Title,
		Sport:            a.Sport,
		Description:      a.Description,
		StartAt:          a.StartAt,
		Address:          a.AddressText,
		City:             a.City,
		State:            a.State,
		Capacity:         a.Capacity,
		WaitlistCapacity: a.WaitlistCapacity,
		PriceCents:       a.PriceCents,
		ImageURL:         a.ImageRef,
		Published:        a.Published,
		Public:           a.Public,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
	if summary != nil {
		attendance := toAttendanceView(*summary)
		view.Attendance = &attendance
	}
	return view
}

func toListResponse(details []domain.ActivityDetail, next *domain.Cursor) ListActivitiesResponse {
	items := make([]ActivityView, 0, len(details))
	for _, d := range details {
		items = append(items, toActivityView(d.Activity, &d.Attendance))
	}
	return ListActivitiesResponse{Items: items, NextCursor: persistence.EncodeCursor(next)}
}

func toPublicRosterView(r domain.PublicRoster) RosterView {
	attendees := make([]PublicAttendeeView, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		attendees = append(attendees, PublicAttendeeView{UserID: a.UserID, DisplayName: a.DisplayName, Status: string(a.Status)})
	}
	return RosterView{ActivityID: r.ActivityID, View: "public", Count: r.Count, SpotsLeft: r.SpotsLeft, Attendees: attendees}
}

func toOwnerRosterView(r domain.OwnerRoster) RosterView {
	attendees := make([]OwnerAttendeeView, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		attendees = append(attendees, OwnerAttendeeView{
			UserID:      a.UserID,
			Name:        a.Name,
			Email:       a.Email,
			ConfirmedAt: a.ConfirmedAt,
			Status:      string(a.Status),
		})
	}
	return RosterView{ActivityID: r.ActivityID, View: "owner", Count: r.Count, SpotsLeft: r.SpotsLeft, Attendees: attendees}
}
