// Package events defines the payloads emitted for downstream consumers of scheduling changes.
package events

import "time"

// Event type names written to the outbox.
const (
	TypeActivityPublished   = "activity.published"
	TypeActivityUpdated     = "activity.updated"
	TypeActivityDeleted     = "activity.deleted"
	TypeAttendanceConfirmed = "attendance.confirmed"
	TypeAttendanceCancelled = "attendance.cancelled"
	TypeChatMessagePosted   = "chat.message_posted"
)

// Kafka topics.
const (
	TopicActivity   = "activity_events"
	TopicAttendance = "attendance_events"
	TopicChat       = "chat_events"
)

// Route tells the outbox where an event type is delivered.
type Route struct {
	Topic         string
	SchemaSubject string
	AggregateType string
}

var routes = map[string]Route{
	TypeActivityPublished:   {Topic: TopicActivity, SchemaSubject: TopicActivity + "-value", AggregateType: "activity"},
	TypeActivityUpdated:     {Topic: TopicActivity, SchemaSubject: TopicActivity + "-value", AggregateType: "activity"},
	TypeActivityDeleted:     {Topic: TopicActivity, SchemaSubject: TopicActivity + "-value", AggregateType: "activity"},
	TypeAttendanceConfirmed: {Topic: TopicAttendance, SchemaSubject: TopicAttendance + "-value", AggregateType: "attendance"},
	TypeAttendanceCancelled: {Topic: TopicAttendance, SchemaSubject: TopicAttendance + "-value", AggregateType: "attendance"},
	TypeChatMessagePosted:   {Topic: TopicChat, SchemaSubject: TopicChat + "-value", AggregateType: "chat_message"},
}

// RouteFor returns the routing metadata for an event type.
func RouteFor(eventType string) (Route, bool) {
	route, ok := routes[eventType]
	return route, ok
}

// Topics lists every topic the outbox can publish to.
func Topics() []string {
	return []string{TopicActivity, TopicAttendance, TopicChat}
}

// ActivityPublished is emitted once per record created by a publication or an edit that added dates.
type ActivityPublished struct {
	ActivityID       string    `json:"activity_id"`
	OwnerID          string    `json:"owner_id"`
	Title            string    `json:"title"`
	Sport            string    `json:"sport"`
	StartAt          time.Time `json:"start_at"`
	City             string    `json:"city"`
	State            string    `json:"state"`
	Capacity         *int      `json:"capacity,omitempty"`
	WaitlistCapacity int       `json:"waitlist_capacity"`
	Published        bool      `json:"published"`
	Public           bool      `json:"public"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// ActivityUpdated carries the same shape as ActivityPublished after an edit.
type ActivityUpdated ActivityPublished

// ActivityDeleted is emitted when an owner removes an activity.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	OwnerID    string    `json:"owner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AttendanceConfirmed is emitted when a new attendance entry is stored.
type AttendanceConfirmed struct {
	ActivityID  string    `json:"activity_id"`
	UserID      string    `json:"user_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// AttendanceCancelled is emitted when an entry is removed by its user.
type AttendanceCancelled struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ChatMessagePosted announces a message without carrying its body.
type ChatMessagePosted struct {
	MessageID  string    `json:"message_id"`
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	PostedAt   time.Time `json:"posted_at"`
}
