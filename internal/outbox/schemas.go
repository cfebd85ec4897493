package outbox

import "github.com/rafaelmorch/platform-sports/internal/events"

const activitySchema = `{
  "type": "object",
  "title": "ActivityEvent",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "title": {"type": "string"},
    "sport": {"type": "string"},
    "start_at": {"type": "string", "format": "date-time"},
    "city": {"type": "string"},
    "state": {"type": "string"},
    "capacity": {"type": "integer", "minimum": 1},
    "waitlist_capacity": {"type": "integer", "minimum": 0},
    "published": {"type": "boolean"},
    "public": {"type": "boolean"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "occurred_at"],
  "additionalProperties": false
}`

const attendanceSchema = `{
  "type": "object",
  "title": "AttendanceEvent",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "confirmed_at": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id"],
  "additionalProperties": false
}`

const chatSchema = `{
  "type": "object",
  "title": "ChatMessagePosted",
  "properties": {
    "message_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "posted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["message_id", "activity_id", "user_id", "posted_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to the JSON schema registered for its topic subject.
var schemaCatalog = map[string]string{
	events.TypeActivityPublished:   activitySchema,
	events.TypeActivityUpdated:     activitySchema,
	events.TypeActivityDeleted:     activitySchema,
	events.TypeAttendanceConfirmed: attendanceSchema,
	events.TypeAttendanceCancelled: attendanceSchema,
	events.TypeChatMessagePosted:   chatSchema,
}
