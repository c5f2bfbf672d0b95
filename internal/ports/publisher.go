package ports

import "context"

// Publisher fans a state transition out to the session's current viewers.
// Delivery is at-least-once to subscribers present at publish time; there is no replay.
type Publisher interface {
	Publish(ctx context.Context, sessionID, eventType string, payload interface{}) error
}

// ViewerHost starts the realtime room viewers join for a session.
type ViewerHost interface {
	// StartViewer returns the id viewers use to join the session's room.
	StartViewer(ctx context.Context, sessionID string) (string, error)
}
