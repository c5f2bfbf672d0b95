package nakama

import (
	"context"
	"database/sql"

	"comparity/internal/app"
	"comparity/internal/config"
	"comparity/internal/realtime"

	"github.com/heroiclabs/nakama-common/runtime"
)

const inviteIssuer = "comparity"

// InitModule wires RPCs and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig(GameConfigPath); err != nil {
		logger.Warn("InitModule: Could not load game config, using defaults: %v", err)
	}
	cfg := *config.GetGameConfig()
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if err := cfg.ApplyEnv(env); err != nil {
			logger.Error("InitModule: Invalid runtime env: %v", err)
			return err
		}
	}

	leaderboards := NewNakamaLeaderboardAdapter(nk)
	if err := leaderboards.EnsureGlobal(ctx); err != nil {
		logger.Warn("InitModule: Could not create global leaderboard: %v", err)
	}

	catalog := NewNakamaCatalogAdapter(nk)
	if decks, err := LoadCatalogFile(CatalogPath); err != nil {
		logger.Warn("InitModule: Could not load catalog: %v", err)
	} else if seeded, err := catalog.Seed(ctx, decks); err != nil {
		logger.Warn("InitModule: Could not seed catalog: %v", err)
	} else if seeded > 0 {
		logger.Info("InitModule: Seeded %d decks.", seeded)
	}

	var invites *app.InviteService
	if cfg.InviteSecret != "" {
		invites = app.NewInviteService(cfg.InviteSecret, inviteIssuer, cfg.InviteTTL())
	} else {
		logger.Warn("InitModule: %sinvite_secret is not set, invites are disabled.", config.RuntimeEnvPrefix)
	}

	hub := realtime.NewHub(logger, realtime.Options{
		Buffer:    cfg.SubscriberBuffer,
		KeepAlive: cfg.KeepAlive(),
	})

	svc := app.NewService(app.Deps{
		Store:       NewNakamaSessionStore(nk, cfg.SessionTTL()),
		Windows:     NewNakamaChallengeWindows(nk),
		Publisher:   hub,
		Catalog:     catalog,
		Stats:       NewNakamaStatsAdapter(nk),
		Leaderboard: leaderboards,
		Turns:       NewNakamaTurnLog(nk),
		Viewers:     NewNakamaViewerHost(nk),
		Invites:     invites,
	}, settingsFrom(&cfg), logger, nil)

	if err := RegisterRPCs(initializer, NewRPCHandlers(svc)); err != nil {
		return err
	}

	idle := cfg.ViewerIdle()
	if err := initializer.RegisterMatch(MatchNameViewer, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newViewerMatch(svc, hub, idle), nil
	}); err != nil {
		return err
	}

	logger.Info("Comparity Go module loaded.")
	return nil
}

func settingsFrom(cfg *config.GameConfig) app.Settings {
	return app.Settings{
		ChallengeWindow: cfg.ChallengeWindow(),
		MaxChainLength:  cfg.MaxChainLength,
		DrawBatchSize:   cfg.DrawBatchSize,
		MaxWriteRetries: cfg.MaxWriteRetries,
	}
}
