package domain

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rafaelmorch/platform-sports/internal/observability"
)

const (
	defaultChatLimit = 50
	maxChatLimit     = 100
	maxChatBodyLen   = 2000
)

// ChatMessage is an immutable post in an activity's feed. Seq is assigned by the store and breaks
// ties between messages posted at the same instant.
type ChatMessage struct {
	ID         string
	ActivityID string
	UserID     string
	Body       string
	PostedAt   time.Time
	Seq        int64
}

// ChatMessageView is a message with its sender's display name resolved.
type ChatMessageView struct {
	ChatMessage
	SenderName string
}

// ChatPage is one oldest-first page of the feed.
type ChatPage struct {
	Messages []ChatMessageView
	Next     *Cursor
}

// ChatService appends to and reads from per-activity message logs.
type ChatService struct {
	activities ActivityRepository
	messages   ChatRepository
	profiles   ProfileDirectory
	logger     *slog.Logger
	now        func() time.Time
}

// NewChatService constructs a ChatService.
func NewChatService(activities ActivityRepository, messages ChatRepository, profiles ProfileDirectory, opts ...Option) *ChatService {
	o := buildOptions(opts)
	return &ChatService{
		activities: activities,
		messages:   messages,
		profiles:   profiles,
		logger:     o.logger,
		now:        o.now,
	}
}

// Post appends one message authored by userID.
func (s *ChatService) Post(ctx context.Context, activityID, userID, body string) (*ChatMessage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalid("body", "must not be empty")
	}
	if utf8.RuneCountInString(body) > maxChatBodyLen {
		return nil, invalid("body", "must be at most %d characters", maxChatBodyLen)
	}

	activity, err := visibleActivity(ctx, s.activities, activityID, userID)
	if err != nil {
		return nil, err
	}

	stored, err := s.messages.Append(ctx, ChatMessage{
		ID:         uuid.NewString(),
		ActivityID: activity.ID,
		UserID:     userID,
		Body:       body,
		PostedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	observability.RecordChatMessage()
	s.logger.Debug("chat message posted", "activity_id", activity.ID, "message_id", stored.ID)
	return &stored, nil
}

// List returns up to limit messages after the cursor, oldest first. Anonymous viewers get an
// empty page.
func (s *ChatService) List(ctx context.Context, activityID, viewerID string, after *Cursor, limit int) (*ChatPage, error) {
	if strings.TrimSpace(viewerID) == "" {
		return &ChatPage{Messages: []ChatMessageView{}}, nil
	}

	activity, err := visibleActivity(ctx, s.activities, activityID, viewerID)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultChatLimit
	}
	limit = min(limit, maxChatLimit)

	messages, next, err := s.messages.List(ctx, activity.ID, after, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.UserID)
	}
	profiles, err := lookupProfiles(ctx, s.profiles, ids)
	if err != nil {
		// Names are decoration; the feed is still served.
		s.logger.Warn("sender lookup failed", "activity_id", activity.ID, "error", err)
		profiles = map[string]Profile{}
	}

	views := make([]ChatMessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, ChatMessageView{ChatMessage: msg, SenderName: profiles[msg.UserID].DisplayName})
	}
	return &ChatPage{Messages: views, Next: next}, nil
}
