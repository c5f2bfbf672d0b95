package nakama

import (
	"fmt"

	"comparity/internal/domain"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const labelGame = "comparity"

// viewerLabel builds the match label used to find a session's viewer match,
// e.g. with the query "+label.session_id:<id>".
func viewerLabel(sessionID string, status domain.Status) (string, error) {
	label, err := structpb.NewStruct(map[string]interface{}{
		"game":       labelGame,
		"session_id": sessionID,
		"status":     string(status),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build label: %w", err)
	}
	data, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(label)
	if err != nil {
		return "", fmt.Errorf("failed to marshal label: %w", err)
	}
	return string(data), nil
}
