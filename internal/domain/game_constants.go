package domain

// Score deltas applied by the orchestrator.
const (
	ScoreCorrectMove   = 1
	ScoreBluffHeld     = 2
	ScoreBluffCaught   = -1
	ScoreChallengeWin  = 2
	ScoreChallengeLose = -1
)

// SessionSchemaVersion is written into every stored session record.
const SessionSchemaVersion = 1
