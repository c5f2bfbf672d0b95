package app

import "time"

// Settings tunes the orchestrator. Zero values fall back to DefaultSettings.
type Settings struct {
	ChallengeWindow time.Duration
	MaxChainLength  int
	// DrawBatchSize caps how many undrawn ids are considered per draw; 0 means all.
	DrawBatchSize   int
	MaxWriteRetries int
}

// DefaultSettings mirrors the defaults in data/game_config.json.
func DefaultSettings() Settings {
	return Settings{
		ChallengeWindow: 30 * time.Second,
		MaxChainLength:  10,
		DrawBatchSize:   20,
		MaxWriteRetries: 5,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.ChallengeWindow <= 0 {
		s.ChallengeWindow = def.ChallengeWindow
	}
	if s.MaxChainLength <= 0 {
		s.MaxChainLength = def.MaxChainLength
	}
	if s.DrawBatchSize < 0 {
		s.DrawBatchSize = 0
	}
	if s.MaxWriteRetries <= 0 {
		s.MaxWriteRetries = def.MaxWriteRetries
	}
	return s
}

// AbandonReasonPlayerQuit is the GAME_ABANDONED reason for an explicit quit.
const AbandonReasonPlayerQuit = "player_quit"
