package nakama

const (
	// MatchNameViewer is the relay match viewers of one session join.
	MatchNameViewer = "comparity_viewer"
	paramSessionID  = "session_id"

	// GameConfigPath and CatalogPath are relative to the Nakama data directory.
	GameConfigPath = "data/game_config.json"
	CatalogPath    = "data/catalog.json"
)

// RPC ids.
const (
	RpcSessionCreate    = "comparity_session_create"
	RpcSessionJoin      = "comparity_session_join"
	RpcSessionInvite    = "comparity_session_invite"
	RpcSessionMove      = "comparity_session_move"
	RpcSessionChallenge = "comparity_session_challenge"
	RpcSessionAbandon   = "comparity_session_abandon"
	RpcSessionGet       = "comparity_session_get"
)

// Storage collections. All objects except stats are owned by the system user.
const (
	collectionSessions    = "sessions"
	collectionWindows     = "challenge_windows"
	collectionCatalog     = "catalog"
	collectionTurns       = "turns"
	collectionStats       = "stats"
	keyStatsAggregate     = "aggregate"
	systemUserID          = ""
	leaderboardGlobal     = "comparity_global"
	leaderboardDeckPrefix = "comparity_deck_"
)

// Server -> client op codes on the viewer match.
const (
	OpState         int64 = 1
	OpChainUpdated  int64 = 2
	OpChallengeEnd  int64 = 3
	OpGameAbandoned int64 = 4
	OpPlayerJoined  int64 = 5
	OpKeepAlive     int64 = 9
	OpError         int64 = 99
)
