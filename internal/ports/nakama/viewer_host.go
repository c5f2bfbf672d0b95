package nakama

import (
	"context"
	"fmt"

	"comparity/internal/ports"
)

// MatchCreator is the subset of runtime.NakamaModule used to start viewer matches.
type MatchCreator interface {
	MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error)
}

// NakamaViewerHost starts one relay match per session.
type NakamaViewerHost struct {
	nk MatchCreator
}

func NewNakamaViewerHost(nk MatchCreator) *NakamaViewerHost {
	return &NakamaViewerHost{nk: nk}
}

func (h *NakamaViewerHost) StartViewer(ctx context.Context, sessionID string) (string, error) {
	matchID, err := h.nk.MatchCreate(ctx, MatchNameViewer, map[string]interface{}{
		paramSessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create viewer match for %s: %w", sessionID, err)
	}
	return matchID, nil
}

var _ ports.ViewerHost = (*NakamaViewerHost)(nil)
