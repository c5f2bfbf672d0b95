package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
	"golang.org/x/sync/errgroup"

	"comparity/internal/domain"
	"comparity/internal/ports"
)

// Deps are the collaborators of a Service. Turns, Viewers and Invites are optional.
type Deps struct {
	Store       ports.SessionStore
	Windows     ports.ChallengeWindows
	Publisher   ports.Publisher
	Catalog     ports.CatalogPort
	Stats       ports.StatsPort
	Leaderboard ports.LeaderboardPort
	Turns       ports.TurnLog
	Viewers     ports.ViewerHost
	Invites     *InviteService

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service runs the game use-cases. It holds no session state of its own;
// every operation is a versioned read-modify-write against the store.
type Service struct {
	deps     Deps
	settings Settings
	logger   runtime.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
}

// NewService constructs a Service with provided rng or a time-seeded default.
func NewService(deps Deps, settings Settings, logger runtime.Logger, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		deps:     deps,
		settings: settings.withDefaults(),
		logger:   logger,
		rng:      rng,
		now:      now,
	}
}

// Settings returns the effective settings.
func (s *Service) Settings() Settings { return s.settings }

// CreateRequest starts a session.
type CreateRequest struct {
	UserID string
	DeckID string
	Type   domain.SessionType
	ChatID string
}

// MoveResult is returned to the mover.
type MoveResult struct {
	Session      *domain.Session
	TurnResult   TurnResult
	NextCard     *domain.Card
	NextPlayerID string
	GameOver     bool
	Winners      []string
}

// ChallengeResult is returned to the challenger.
type ChallengeResult struct {
	Session *domain.Session
	Outcome ChallengeEndPayload
}

// errUnchanged aborts an update without writing.
var errUnchanged = errors.New("session unchanged")

// attempt collects compensations for side effects made before the write.
type attempt struct {
	undo []func(context.Context)
}

func (a *attempt) onAbort(f func(context.Context)) {
	a.undo = append(a.undo, f)
}

func (a *attempt) abort(ctx context.Context) {
	for i := len(a.undo) - 1; i >= 0; i-- {
		a.undo[i](ctx)
	}
	a.undo = nil
}

// Create deals the starting card onto the chain and the first card to the creator.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Session, error) {
	if req.UserID == "" || req.DeckID == "" {
		return nil, ErrMissingField
	}
	if req.Type == "" {
		req.Type = domain.SessionSolo
	}
	if req.Type != domain.SessionSolo && req.Type != domain.SessionGroup {
		return nil, &Error{Kind: KindInvalidRequest, Code: "invalid_type", Message: fmt.Sprintf("unknown session type %q", req.Type)}
	}

	deck, err := s.deps.Catalog.GetDeck(ctx, req.DeckID)
	if err != nil {
		return nil, internalError("catalog lookup failed", err)
	}
	if deck == nil {
		return nil, ErrDeckNotFound
	}
	cards, err := s.deps.Catalog.ListActiveCards(ctx, req.DeckID)
	if err != nil {
		return nil, internalError("catalog lookup failed", err)
	}
	if len(cards) == 0 {
		return nil, ErrDeckEmpty
	}

	s.rngMu.Lock()
	shuffled := domain.ShuffleCards(cards, s.rng)
	s.rngMu.Unlock()

	now := s.now()
	ids := make([]string, len(shuffled))
	for i, c := range shuffled {
		ids[i] = c.ID
	}
	start := shuffled[0]
	sess := &domain.Session{
		SchemaVersion:     domain.SessionSchemaVersion,
		ID:                uuid.NewString(),
		Type:              req.Type,
		Status:            domain.StatusActive,
		DeckID:            deck.ID,
		DeckName:          deck.Name,
		DeckParameterName: deck.ParameterName,
		DeckParameterUnit: deck.ParameterUnit,
		Chain:             domain.Chain{domain.NewPlacement(start, false, "")},
		UsedCardIDs:       []string{start.ID},
		AllCardIDs:        ids,
		Players:           domain.Players{req.UserID: {Score: 0, TurnOrder: 0}},
		ChatID:            req.ChatID,
		CreatedBy:         req.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if len(shuffled) > 1 {
		hand := shuffled[1]
		sess.MarkUsed(hand.ID)
		sess.CurrentTurn = &domain.CurrentTurn{PlayerID: req.UserID, Card: hand, StartedAt: now}
	} else {
		sess.Status = domain.StatusFinished
	}

	if err := s.deps.Store.Put(ctx, sess); err != nil {
		return nil, internalError("session write failed", err)
	}

	log := s.sessionLogger(sess.ID)
	log.WithFields(map[string]interface{}{
		"deck_id": sess.DeckID,
		"type":    sess.Type,
		"user_id": req.UserID,
	}).Info("Session created")

	// The viewer match reads the stored session, so it starts after the write.
	if s.deps.Viewers != nil {
		if matchID, err := s.deps.Viewers.StartViewer(ctx, sess.ID); err != nil {
			log.WithField("error", err.Error()).Warn("Failed to start viewer match")
		} else {
			sess.MatchID = matchID
			if err := s.deps.Store.Put(ctx, sess); err != nil {
				log.WithField("error", err.Error()).Warn("Failed to record viewer match")
			}
		}
	}

	if sess.Status == domain.StatusFinished {
		s.finalize(ctx, sess)
	}
	s.publish(ctx, sess.ID, EventState, sess.Clone())
	return sess, nil
}

// Join seats userID in a group session. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	if sessionID == "" || userID == "" {
		return nil, ErrMissingField
	}
	sess, err := s.update(ctx, sessionID, func(_ *attempt, sess *domain.Session) error {
		if sess.Status != domain.StatusActive {
			return ErrSessionNotActive
		}
		if sess.Type != domain.SessionGroup {
			return ErrSoloSession
		}
		if !sess.AddPlayer(userID) {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return sess, nil
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, sess.ID, EventPlayerJoined, PlayerJoinedPayload{UserID: userID, Players: sess.Players})
	return sess, nil
}

// JoinWithTicket joins the session named by an invite ticket.
func (s *Service) JoinWithTicket(ctx context.Context, ticket, userID string) (*domain.Session, error) {
	if ticket == "" {
		return nil, ErrMissingField
	}
	claims, err := s.deps.Invites.Verify(ticket)
	if err != nil {
		s.logger.WithField("error", err.Error()).Debug("Invite ticket rejected")
		return nil, ErrInvalidTicket
	}
	return s.Join(ctx, claims.SessionID, userID)
}

// Invite issues a ticket for a group session. Only seated players may invite.
func (s *Service) Invite(ctx context.Context, sessionID, userID string) (string, error) {
	if sessionID == "" || userID == "" {
		return "", ErrMissingField
	}
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if _, ok := sess.Players[userID]; !ok {
		return "", ErrNotAPlayer
	}
	if sess.Type != domain.SessionGroup {
		return "", ErrSoloSession
	}
	if sess.Status != domain.StatusActive {
		return "", ErrSessionNotActive
	}
	ticket, err := s.deps.Invites.Issue(sessionID, userID)
	if err != nil {
		return "", internalError("invite issue failed", err)
	}
	return ticket, nil
}

// Move places the card in hand at position. A bluff goes face down and opens
// the challenge window instead of being judged.
func (s *Service) Move(ctx context.Context, sessionID, userID, cardID string, position int, isBluff bool) (*MoveResult, error) {
	if sessionID == "" || userID == "" || cardID == "" {
		return nil, ErrMissingField
	}

	var (
		result  TurnResult
		adv     advance
		pending *domain.PendingChallenge
	)
	sess, err := s.update(ctx, sessionID, func(a *attempt, sess *domain.Session) error {
		result, adv, pending = TurnResult{}, advance{}, nil

		if sess.Status != domain.StatusActive {
			return ErrSessionNotActive
		}
		turn := sess.CurrentTurn
		if turn == nil || turn.PlayerID != userID {
			return ErrNotYourTurn
		}
		if turn.Card.ID != cardID {
			return ErrCardMismatch
		}
		if position < 0 || position > len(sess.Chain) {
			return ErrPositionOutOfBounds
		}

		now := s.now()
		if isBluff {
			turnID := uuid.NewString()
			if err := s.openWindow(ctx, sess, turnID); err != nil {
				return err
			}
			a.onAbort(func(ctx context.Context) {
				if err := s.deps.Windows.Close(ctx, sess.ID, turnID); err != nil {
					s.sessionLogger(sess.ID).WithField("error", err.Error()).Warn("Failed to close challenge window after aborted write")
				}
			})

			sess.Chain = domain.InsertCard(sess.Chain, turn.Card, position, true, userID)
			pending = &domain.PendingChallenge{
				TurnID:    turnID,
				Position:  position,
				CardID:    cardID,
				PlacerID:  userID,
				ExpiresAt: now.Add(s.settings.ChallengeWindow),
			}
			sess.PendingChallenge = pending
			sess.CurrentTurn = nil
			result = TurnResult{Status: TurnPending}
			return nil
		}

		check := domain.ValidateMove(sess.Chain, turn.Card, position)
		if check.Valid {
			sess.Chain = domain.InsertCard(sess.Chain, turn.Card, position, false, userID)
			sess.Players = domain.ApplyScore(sess.Players, userID, domain.ScoreCorrectMove)
			result = TurnResult{Status: TurnCorrect, ScoreDelta: domain.ScoreCorrectMove}
		} else {
			result = TurnResult{Status: TurnIncorrect, Reason: check.Reason}
		}

		var err error
		adv, err = s.advance(ctx, sess, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log := s.sessionLogger(sess.ID).WithFields(map[string]interface{}{
		"user_id":  userID,
		"card_id":  cardID,
		"position": position,
		"status":   string(result.Status),
	})
	log.Debug("Move applied")

	if result.ScoreDelta != 0 {
		s.awardScores(ctx, sess.DeckID, scoreChange{userID, result.ScoreDelta})
	}

	turnID := uuid.NewString()
	if pending != nil {
		turnID = pending.TurnID
	}
	s.appendTurn(ctx, ports.TurnRecord{
		ID:               turnID,
		SessionID:        sess.ID,
		UserID:           userID,
		CardID:           cardID,
		Position:         position,
		IsBluff:          isBluff,
		Status:           string(result.Status),
		ScoreDeltaPlacer: result.ScoreDelta,
		CreatedAt:        s.now(),
	})

	var winners []string
	if adv.gameOver {
		winners = s.finalize(ctx, sess)
	}

	s.publish(ctx, sess.ID, EventChainUpdated, ChainUpdatedPayload{
		Chain:            sess.Chain,
		TurnResult:       result,
		Players:          sess.Players,
		NextCard:         adv.nextCard,
		NextPlayerID:     adv.nextPlayerID,
		PendingChallenge: sess.PendingChallenge,
		GameOver:         adv.gameOver,
		Winners:          winners,
	})

	return &MoveResult{
		Session:      sess,
		TurnResult:   result,
		NextCard:     adv.nextCard,
		NextPlayerID: adv.nextPlayerID,
		GameOver:     adv.gameOver,
		Winners:      winners,
	}, nil
}

// Challenge resolves the pending bluff in favour of whoever was right.
func (s *Service) Challenge(ctx context.Context, sessionID, challengerID string) (*ChallengeResult, error) {
	if sessionID == "" || challengerID == "" {
		return nil, ErrMissingField
	}

	var (
		pending domain.PendingChallenge
		outcome domain.ChallengeOutcome
		card    domain.Card
		adv     advance
	)
	sess, err := s.update(ctx, sessionID, func(_ *attempt, sess *domain.Session) error {
		if sess.PendingChallenge == nil {
			return ErrNoPendingChallenge
		}
		pending = *sess.PendingChallenge

		open, err := s.deps.Windows.IsOpenFor(ctx, sess.ID)
		if err != nil {
			return internalError("challenge window read failed", err)
		}
		if open != pending.TurnID {
			return ErrChallengeWindowClosed
		}
		if challengerID == pending.PlacerID {
			return ErrSelfChallenge
		}
		if _, ok := sess.Players[challengerID]; !ok {
			return ErrNotAPlayer
		}
		if sess.Status != domain.StatusActive {
			return ErrSessionNotActive
		}

		cards, err := s.deps.Catalog.GetCardsByIDs(ctx, sess.DeckID, []string{pending.CardID})
		if err != nil {
			return internalError("catalog lookup failed", err)
		}
		if len(cards) == 0 {
			return internalError("bluffed card missing from catalog", fmt.Errorf("card %s", pending.CardID))
		}
		card = cards[0]
		if pending.Position < 0 || pending.Position >= len(sess.Chain) || sess.Chain[pending.Position].CardID != pending.CardID {
			return internalError("pending challenge does not match chain", fmt.Errorf("position %d", pending.Position))
		}

		outcome = domain.ResolveChallenge(sess.Chain, pending.Position, card, pending.PlacerID, challengerID)
		sess.Chain = outcome.Chain
		sess.Players = domain.ApplyScore(sess.Players, pending.PlacerID, outcome.ScoreDeltaPlacer)
		sess.Players = domain.ApplyScore(sess.Players, challengerID, outcome.ScoreDeltaChallenger)
		sess.PendingChallenge = nil
		sess.ResolvedTurnID = pending.TurnID

		adv, err = s.advance(ctx, sess, pending.PlacerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.deps.Windows.Close(ctx, sess.ID, pending.TurnID); err != nil {
		s.sessionLogger(sess.ID).WithField("error", err.Error()).Warn("Failed to close challenge window")
	}

	s.sessionLogger(sess.ID).WithFields(map[string]interface{}{
		"placer_id":     pending.PlacerID,
		"challenger_id": challengerID,
		"bluff_caught":  outcome.BluffCaught,
	}).Info("Challenge resolved")

	s.awardScores(ctx, sess.DeckID,
		scoreChange{pending.PlacerID, outcome.ScoreDeltaPlacer},
		scoreChange{challengerID, outcome.ScoreDeltaChallenger},
	)

	status := TurnBluffHeld
	if outcome.BluffCaught {
		status = TurnBluffCaught
	}
	s.resolveTurn(ctx, pending.TurnID, ports.TurnResolution{
		Status:           string(status),
		ChallengedBy:     challengerID,
		ScoreDeltaPlacer: outcome.ScoreDeltaPlacer,
		ScoreDeltaChall:  outcome.ScoreDeltaChallenger,
		ResolvedAt:       s.now(),
	})

	var winners []string
	if adv.gameOver {
		winners = s.finalize(ctx, sess)
	}

	payload := ChallengeEndPayload{
		BluffCaught:          outcome.BluffCaught,
		Reason:               outcome.Reason,
		Chain:                sess.Chain,
		Players:              sess.Players,
		PlacerID:             pending.PlacerID,
		ChallengerID:         challengerID,
		ScoreDeltaPlacer:     outcome.ScoreDeltaPlacer,
		ScoreDeltaChallenger: outcome.ScoreDeltaChallenger,
		RevealedCard:         card,
		NextCard:             adv.nextCard,
		NextPlayerID:         adv.nextPlayerID,
		GameOver:             adv.gameOver,
		Winners:              winners,
	}
	s.publish(ctx, sess.ID, EventChallengeEnd, payload)

	return &ChallengeResult{Session: sess, Outcome: payload}, nil
}

// ExpireChallenge settles a bluff nobody challenged in time. The card stays
// face down, nobody scores and play moves on.
func (s *Service) ExpireChallenge(ctx context.Context, sessionID string) (*MoveResult, error) {
	if sessionID == "" {
		return nil, ErrMissingField
	}

	var (
		pending domain.PendingChallenge
		adv     advance
	)
	sess, err := s.update(ctx, sessionID, func(_ *attempt, sess *domain.Session) error {
		if sess.PendingChallenge == nil {
			return ErrNoPendingChallenge
		}
		if sess.Status != domain.StatusActive {
			return ErrSessionNotActive
		}
		pending = *sess.PendingChallenge

		open, err := s.deps.Windows.IsOpenFor(ctx, sess.ID)
		if err != nil {
			return internalError("challenge window read failed", err)
		}
		if open == pending.TurnID {
			return ErrChallengeWindowOpen
		}

		sess.PendingChallenge = nil
		sess.ResolvedTurnID = pending.TurnID
		adv, err = s.advance(ctx, sess, pending.PlacerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.sessionLogger(sess.ID).WithField("placer_id", pending.PlacerID).Debug("Bluff went unchallenged")

	s.resolveTurn(ctx, pending.TurnID, ports.TurnResolution{
		Status:     string(TurnUnchallenged),
		ResolvedAt: s.now(),
	})

	var winners []string
	if adv.gameOver {
		winners = s.finalize(ctx, sess)
	}

	result := TurnResult{Status: TurnUnchallenged}
	s.publish(ctx, sess.ID, EventChainUpdated, ChainUpdatedPayload{
		Chain:        sess.Chain,
		TurnResult:   result,
		Players:      sess.Players,
		NextCard:     adv.nextCard,
		NextPlayerID: adv.nextPlayerID,
		GameOver:     adv.gameOver,
		Winners:      winners,
	})

	return &MoveResult{
		Session:      sess,
		TurnResult:   result,
		NextCard:     adv.nextCard,
		NextPlayerID: adv.nextPlayerID,
		GameOver:     adv.gameOver,
		Winners:      winners,
	}, nil
}

// Abandon ends the session on behalf of a quitting player and evicts it.
func (s *Service) Abandon(ctx context.Context, sessionID, userID string) error {
	if sessionID == "" || userID == "" {
		return ErrMissingField
	}
	var pendingTurn string
	sess, err := s.update(ctx, sessionID, func(_ *attempt, sess *domain.Session) error {
		pendingTurn = ""
		if _, ok := sess.Players[userID]; !ok {
			return ErrNotAPlayer
		}
		if sess.Status != domain.StatusActive {
			return ErrSessionNotActive
		}
		if sess.PendingChallenge != nil {
			pendingTurn = sess.PendingChallenge.TurnID
		}
		sess.Status = domain.StatusAbandoned
		sess.CurrentTurn = nil
		sess.PendingChallenge = nil
		return nil
	})
	if err != nil {
		return err
	}

	log := s.sessionLogger(sess.ID).WithField("user_id", userID)
	if pendingTurn != "" {
		if err := s.deps.Windows.Close(ctx, sess.ID, pendingTurn); err != nil {
			log.WithField("error", err.Error()).Warn("Failed to close challenge window")
		}
	}
	s.publish(ctx, sess.ID, EventGameAbandoned, GameAbandonedPayload{Reason: AbandonReasonPlayerQuit, UserID: userID})
	if err := s.deps.Store.Delete(ctx, sess.ID); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to delete abandoned session")
	}
	log.Info("Session abandoned")
	return nil
}

// Get returns the session as viewerID may see it.
func (s *Service) Get(ctx context.Context, sessionID, viewerID string) (*SessionView, error) {
	if sessionID == "" {
		return nil, ErrMissingField
	}
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return SanitizeSession(sess, viewerID), nil
}

// Snapshot returns the unsanitized session, or nil if it does not exist.
func (s *Service) Snapshot(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.load(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, nil
	}
	return sess, err
}

func (s *Service) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.deps.Store.Get(ctx, sessionID)
	if err != nil {
		return nil, internalError("session read failed", err)
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// update applies fn to a fresh copy of the session and writes it back,
// retrying from a new read when another writer got there first.
func (s *Service) update(ctx context.Context, sessionID string, fn func(a *attempt, sess *domain.Session) error) (*domain.Session, error) {
	log := s.sessionLogger(sessionID)
	for i := 0; i < s.settings.MaxWriteRetries; i++ {
		if err := ctx.Err(); err != nil {
			return nil, internalError("request cancelled", err)
		}
		current, err := s.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		a := &attempt{}
		if err := fn(a, next); err != nil {
			a.abort(ctx)
			if errors.Is(err, errUnchanged) {
				return current, err
			}
			return nil, err
		}

		next.UpdatedAt = s.now()
		err = s.deps.Store.Put(ctx, next)
		if err == nil {
			return next, nil
		}
		a.abort(ctx)
		if !errors.Is(err, ports.ErrVersionConflict) {
			return nil, internalError("session write failed", err)
		}
		log.WithField("attempt", i+1).Debug("Session version conflict, retrying")
	}
	log.Warn("Giving up after repeated version conflicts")
	return nil, ErrWriteContention
}

// openWindow opens the challenge window for turnID. A window still held by the
// bluff this session last settled is stale and is reclaimed.
func (s *Service) openWindow(ctx context.Context, sess *domain.Session, turnID string) error {
	err := s.deps.Windows.Open(ctx, sess.ID, turnID, s.settings.ChallengeWindow)
	if errors.Is(err, ports.ErrWindowBusy) && sess.ResolvedTurnID != "" {
		open, readErr := s.deps.Windows.IsOpenFor(ctx, sess.ID)
		if readErr != nil {
			return internalError("challenge window read failed", readErr)
		}
		if open == sess.ResolvedTurnID {
			if closeErr := s.deps.Windows.Close(ctx, sess.ID, open); closeErr != nil {
				return internalError("challenge window close failed", closeErr)
			}
		}
		if open == "" || open == sess.ResolvedTurnID {
			err = s.deps.Windows.Open(ctx, sess.ID, turnID, s.settings.ChallengeWindow)
		}
	}
	if errors.Is(err, ports.ErrWindowBusy) {
		return ErrChallengeWindowOpen
	}
	if err != nil {
		return internalError("challenge window open failed", err)
	}
	return nil
}

type advance struct {
	gameOver     bool
	nextCard     *domain.Card
	nextPlayerID string
}

// advance ends the game or deals the next card to the player after afterID.
// A solo session always deals back to afterID.
func (s *Service) advance(ctx context.Context, sess *domain.Session, afterID string) (advance, error) {
	remaining := sess.RemainingCardIDs()
	if !domain.IsGameOver(sess.Chain, s.settings.MaxChainLength, len(remaining)) {
		card, err := s.drawNext(ctx, sess, remaining)
		if err != nil {
			return advance{}, err
		}
		if card != nil {
			next := afterID
			if sess.Type != domain.SessionSolo {
				next = sess.NextPlayerAfter(afterID)
			}
			sess.CurrentTurn = &domain.CurrentTurn{PlayerID: next, Card: *card, StartedAt: s.now()}
			return advance{nextCard: card, nextPlayerID: next}, nil
		}
	}
	sess.Status = domain.StatusFinished
	sess.CurrentTurn = nil
	return advance{gameOver: true}, nil
}

func (s *Service) drawNext(ctx context.Context, sess *domain.Session, remaining []string) (*domain.Card, error) {
	batch := remaining
	if n := s.settings.DrawBatchSize; n > 0 && len(batch) > n {
		batch = batch[:n]
	}
	cards, err := s.deps.Catalog.GetCardsByIDs(ctx, sess.DeckID, batch)
	if err != nil {
		return nil, internalError("catalog lookup failed", err)
	}

	s.rngMu.Lock()
	card := domain.DrawCard(cards, sess.UsedSet(), s.rng)
	s.rngMu.Unlock()
	if card != nil {
		sess.MarkUsed(card.ID)
	}
	return card, nil
}

type scoreChange struct {
	userID string
	delta  int
}

// awardScores pushes score deltas to the leaderboards. Failures are logged only.
func (s *Service) awardScores(ctx context.Context, deckID string, changes ...scoreChange) {
	var g errgroup.Group
	for _, c := range changes {
		if c.delta == 0 {
			continue
		}
		c := c
		g.Go(func() error {
			if err := s.deps.Leaderboard.IncrementScore(ctx, c.userID, c.delta, deckID); err != nil {
				return fmt.Errorf("user %s: %w", c.userID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"deck_id": deckID,
			"error":   err.Error(),
		}).Error("Leaderboard update failed")
	}
}

// finalize records the result of a finished session and returns its winners.
func (s *Service) finalize(ctx context.Context, sess *domain.Session) []string {
	winners := domain.GetWinners(sess.Players)
	won := make(map[string]bool, len(winners))
	for _, id := range winners {
		won[id] = true
	}

	result := ports.GameResult{SessionID: sess.ID, DeckID: sess.DeckID, Winners: winners}
	for _, id := range sess.PlayerOrder() {
		result.Players = append(result.Players, ports.PlayerResult{
			UserID: id,
			Score:  sess.Players[id].Score,
			Won:    won[id],
		})
	}

	log := s.sessionLogger(sess.ID)
	if err := s.deps.Stats.RecordGameResult(ctx, result); err != nil {
		log.WithField("error", err.Error()).Error("Failed to record game result")
	}
	log.WithField("winners", winners).Info("Session finished")
	return winners
}

func (s *Service) appendTurn(ctx context.Context, rec ports.TurnRecord) {
	if s.deps.Turns == nil {
		return
	}
	if err := s.deps.Turns.AppendTurn(ctx, rec); err != nil {
		s.sessionLogger(rec.SessionID).WithField("error", err.Error()).Warn("Failed to append turn")
	}
}

func (s *Service) resolveTurn(ctx context.Context, turnID string, res ports.TurnResolution) {
	if s.deps.Turns == nil {
		return
	}
	if err := s.deps.Turns.ResolveTurn(ctx, turnID, res); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"turn_id": turnID,
			"error":   err.Error(),
		}).Warn("Failed to resolve turn")
	}
}

func (s *Service) publish(ctx context.Context, sessionID string, kind EventKind, payload interface{}) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, sessionID, string(kind), payload); err != nil {
		s.sessionLogger(sessionID).WithFields(map[string]interface{}{
			"event": string(kind),
			"error": err.Error(),
		}).Warn("Failed to publish event")
	}
}

func (s *Service) sessionLogger(sessionID string) runtime.Logger {
	return s.logger.WithField("session_id", sessionID)
}
