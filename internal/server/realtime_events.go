package server

import (
	"context"
	"time"

	"chirp/internal/middleware"
	"chirp/internal/notifications"
)

// Event type constants prevent typos in event names.
const (
	EventPostCreated    = "post_created"
	EventPostLiked      = "post_liked"
	EventPostRetweeted  = "post_retweeted"
	EventCommentCreated = "comment_created"
	EventCommentLiked   = "comment_liked"
	EventUserFollowed   = "user_followed"
)

// notifyUser delivers an event to recipientID unless they caused it.
// Delivery is best effort: failures are logged and never reach the caller.
func (s *Server) notifyUser(ctx context.Context, recipientID, actorID, eventType string, payload map[string]any) {
	if recipientID == "" || recipientID == actorID {
		return
	}
	msg, ok := s.encodeEvent(ctx, eventType, actorID, payload)
	if !ok {
		return
	}

	if !s.notifier.Enabled() {
		s.hub.Broadcast(recipientID, msg)
		return
	}
	if err := s.notifier.PublishUser(ctx, recipientID, msg); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish event",
			"event", eventType, "recipient_id", recipientID, "error", err)
	}
}

// broadcastEvent delivers an event to every connected client.
func (s *Server) broadcastEvent(ctx context.Context, actorID, eventType string, payload map[string]any) {
	msg, ok := s.encodeEvent(ctx, eventType, actorID, payload)
	if !ok {
		return
	}

	if !s.notifier.Enabled() {
		s.hub.BroadcastAll(msg)
		return
	}
	if err := s.notifier.PublishBroadcast(ctx, msg); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish broadcast event", "event", eventType, "error", err)
	}
}

func (s *Server) encodeEvent(ctx context.Context, eventType, actorID string, payload map[string]any) (string, bool) {
	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["actorId"] = actorID
	body["at"] = time.Now().UTC().Format(time.RFC3339Nano)

	msg, err := notifications.Event{Type: eventType, Payload: body}.Encode()
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode event", "event", eventType, "error", err)
		return "", false
	}
	return msg, true
}
