package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"comparity/internal/app"
	"comparity/internal/domain"

	"github.com/heroiclabs/nakama-common/runtime"
)

// sessionAPI is the session service as seen by the RPC layer.
type sessionAPI interface {
	Create(ctx context.Context, req app.CreateRequest) (*domain.Session, error)
	Join(ctx context.Context, sessionID, userID string) (*domain.Session, error)
	JoinWithTicket(ctx context.Context, ticket, userID string) (*domain.Session, error)
	Invite(ctx context.Context, sessionID, userID string) (string, error)
	Move(ctx context.Context, sessionID, userID, cardID string, position int, isBluff bool) (*app.MoveResult, error)
	Challenge(ctx context.Context, sessionID, challengerID string) (*app.ChallengeResult, error)
	ExpireChallenge(ctx context.Context, sessionID string) (*app.MoveResult, error)
	Abandon(ctx context.Context, sessionID, userID string) error
	Get(ctx context.Context, sessionID, viewerID string) (*app.SessionView, error)
}

type createSessionRequest struct {
	DeckID string `json:"deckId"`
	Type   string `json:"type"`
	ChatID string `json:"chatId"`
}

type createSessionResponse struct {
	Session *app.SessionView `json:"session"`
	MatchID string           `json:"matchId"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

type joinSessionRequest struct {
	SessionID string `json:"sessionId"`
	Ticket    string `json:"ticket"`
}

type inviteResponse struct {
	Ticket string `json:"ticket"`
}

type moveRequest struct {
	SessionID string `json:"sessionId"`
	CardID    string `json:"cardId"`
	Position  *int   `json:"position"`
	IsBluff   bool   `json:"isBluff"`
}

type abandonResponse struct {
	OK bool `json:"ok"`
}

// RPCHandlers exposes the session service as Nakama RPCs.
type RPCHandlers struct {
	sessions sessionAPI
	now      func() time.Time
}

func NewRPCHandlers(sessions sessionAPI) *RPCHandlers {
	return &RPCHandlers{sessions: sessions, now: time.Now}
}

// RegisterRPCs registers Nakama RPC endpoints.
func RegisterRPCs(initializer runtime.Initializer, h *RPCHandlers) error {
	rpcs := map[string]func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error){
		RpcSessionCreate:    h.RpcCreate,
		RpcSessionJoin:      h.RpcJoin,
		RpcSessionInvite:    h.RpcInvite,
		RpcSessionMove:      h.RpcMove,
		RpcSessionChallenge: h.RpcChallenge,
		RpcSessionAbandon:   h.RpcAbandon,
		RpcSessionGet:       h.RpcGet,
	}
	for id, fn := range rpcs {
		if err := initializer.RegisterRpc(id, fn); err != nil {
			return err
		}
	}
	return nil
}

// RpcCreate starts a session and its viewer match.
//
// Payload: {"deckId": string, "type": "SOLO"|"GROUP", "chatId": string}
// Returns: {"session": SessionView, "matchId": string}
func (h *RPCHandlers) RpcCreate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return "", errNoUserID
	}
	var req createSessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	sess, err := h.sessions.Create(ctx, app.CreateRequest{
		UserID: userID,
		DeckID: req.DeckID,
		Type:   domain.SessionType(strings.ToUpper(req.Type)),
		ChatID: req.ChatID,
	})
	if err != nil {
		return "", h.fail(logger, "RpcCreate", userID, err)
	}

	logger.Info("RpcCreate [User:%s]: Created session %s (match %s)", userID, sess.ID, sess.MatchID)
	return encodeResponse(createSessionResponse{
		Session: app.SanitizeSession(sess, userID),
		MatchID: sess.MatchID,
	})
}

// RpcJoin seats the caller in a group session, by id or by invite ticket.
//
// Payload: {"sessionId": string} or {"ticket": string}
// Returns: SessionView
func (h *RPCHandlers) RpcJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return "", errNoUserID
	}
	var req joinSessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	var (
		sess *domain.Session
		err  error
	)
	if req.Ticket != "" {
		sess, err = h.sessions.JoinWithTicket(ctx, req.Ticket, userID)
	} else {
		sess, err = h.sessions.Join(ctx, req.SessionID, userID)
	}
	if err != nil {
		return "", h.fail(logger, "RpcJoin", userID, err)
	}
	return encodeResponse(app.SanitizeSession(sess, userID))
}

// RpcInvite issues a signed join ticket for a group session.
//
// Payload: {"sessionId": string}
// Returns: {"ticket": string}
func (h *RPCHandlers) RpcInvite(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return "", errNoUserID
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	ticket, err := h.sessions.Invite(ctx, req.SessionID, userID)
	if err != nil {
		return "", h.fail(logger, "RpcInvite", userID, err)
	}
	return encodeResponse(inviteResponse{Ticket: ticket})
}

// RpcMove places the caller's card.
//
// Payload: {"sessionId": string, "cardId": string, "position": int, "isBluff": bool}
// Returns: the CHAIN_UPDATED payload as the caller may see it.
func (h *RPCHandlers) RpcMove(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return "", errNoUserID
	}
	var req moveRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}
	if req.Position == nil {
		return "", toRuntimeError(app.ErrMissingField)
	}

	res, err := h.sessions.Move(ctx, req.SessionID, userID, req.CardID, *req.Position, req.IsBluff)
	if err != nil {
		return "", h.fail(logger, "RpcMove", userID, err)
	}
	out := app.ChainUpdatedPayload{
		Chain:            res.Session.Chain,
		TurnResult:       res.TurnResult,
		Players:          res.Session.Players,
		NextCard:         res.NextCard,
		NextPlayerID:     res.NextPlayerID,
		PendingChallenge: res.Session.PendingChallenge,
		GameOver:         res.GameOver,
		Winners:          res.Winners,
	}
	return encodeResponse(app.SanitizeEvent(app.EventChainUpdated, out, userID))
}

// RpcChallenge challenges the pending bluff.
//
// Payload: {"sessionId": string}
// Returns: the CHALLENGE_END payload as the caller may see it.
func (h *RPCHandlers) RpcChallenge(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return "", errNoUserID
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	res, err := h.sessions.Challenge(ctx, req.SessionID, userID)
	if err != nil {
		return "", h.fail(logger, "RpcChallenge", userID, err)
	}
	return encodeResponse(app.SanitizeEvent(app.EventChallengeEnd, res.Outcome, userID))
}

// RpcAbandon ends the session on behalf of the caller.
//
// Payload: {"sessionId": string}
// Returns: {"ok": true}
func (h *RPCHandlers) RpcAbandon(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return "", errNoUserID
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	if err := h.sessions.Abandon(ctx, req.SessionID, userID); err != nil {
		return "", h.fail(logger, "RpcAbandon", userID, err)
	}
	logger.Info("RpcAbandon [User:%s]: Abandoned session %s", userID, req.SessionID)
	return encodeResponse(abandonResponse{OK: true})
}

// RpcGet returns the session as the caller may see it. A bluff whose window
// has passed is settled first, so polling clients never see a stale pending challenge.
//
// Payload: {"sessionId": string}
// Returns: SessionView
func (h *RPCHandlers) RpcGet(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, ok := userIDFrom(ctx)
	if !ok {
		return "", errNoUserID
	}
	var req sessionRequest
	if err := decodePayload(payload, &req); err != nil {
		return "", err
	}

	view, err := h.sessions.Get(ctx, req.SessionID, userID)
	if err != nil {
		return "", h.fail(logger, "RpcGet", userID, err)
	}
	if view.PendingChallenge != nil && view.Status == domain.StatusActive && !h.now().Before(view.PendingChallenge.ExpiresAt) {
		if _, err := h.sessions.ExpireChallenge(ctx, req.SessionID); err != nil && !errors.Is(err, app.ErrChallengeWindowOpen) {
			logger.Debug("RpcGet [User:%s]: Lazy expiry skipped: %v", userID, err)
		}
		if view, err = h.sessions.Get(ctx, req.SessionID, userID); err != nil {
			return "", h.fail(logger, "RpcGet", userID, err)
		}
	}
	return encodeResponse(view)
}

func (h *RPCHandlers) fail(logger runtime.Logger, rpc, userID string, err error) error {
	if app.KindOf(err) == app.KindInternal {
		logger.Error("%s [User:%s]: %v", rpc, userID, err)
	} else {
		logger.Debug("%s [User:%s]: rejected: %v", rpc, userID, err)
	}
	return toRuntimeError(err)
}

func userIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	return userID, ok && userID != ""
}

func decodePayload(payload string, dst interface{}) error {
	if payload == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return errInvalidPayload
	}
	return nil
}

func encodeResponse(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", runtime.NewError("failed to encode response", codeInternal)
	}
	return string(data), nil
}
