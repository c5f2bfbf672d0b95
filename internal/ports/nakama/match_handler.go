package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"comparity/internal/app"
	"comparity/internal/domain"
	"comparity/internal/realtime"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	viewerTickRate = 1
	// terminalGrace keeps the match alive after the last event so clients can read it.
	terminalGrace = 10 * time.Second
)

// sessionReader is the part of the session service the viewer match needs.
type sessionReader interface {
	Get(ctx context.Context, sessionID, viewerID string) (*app.SessionView, error)
	Snapshot(ctx context.Context, sessionID string) (*domain.Session, error)
	ExpireChallenge(ctx context.Context, sessionID string) (*app.MoveResult, error)
}

// ViewerState is the per-match state of a session's relay match.
type ViewerState struct {
	SessionID     string                      `json:"session_id"`
	Status        domain.Status               `json:"status"`
	PendingExpiry time.Time                   `json:"pending_expiry"` // zero when no bluff is pending
	TerminateAt   time.Time                   `json:"terminate_at"`   // zero until a terminal event
	IdleSince     time.Time                   `json:"idle_since"`     // zero while presences are connected
	Presences     map[string]runtime.Presence `json:"-"`              // UserId -> Presence

	sub    *realtime.Subscription
	cancel context.CancelFunc
}

// viewerMessage is the JSON body of every server message on the match.
type viewerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type viewerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// viewerMatch relays one session's events to its connected viewers. It never
// mutates the session except to settle a bluff whose window ran out.
type viewerMatch struct {
	sessions sessionReader
	hub      *realtime.Hub
	idle     time.Duration
	now      func() time.Time
}

func newViewerMatch(sessions sessionReader, hub *realtime.Hub, idle time.Duration) *viewerMatch {
	return &viewerMatch{sessions: sessions, hub: hub, idle: idle, now: time.Now}
}

var _ runtime.Match = (*viewerMatch)(nil)

func (vm *viewerMatch) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	sessionID, _ := params[paramSessionID].(string)
	if sessionID == "" {
		logger.Error("MatchInit: missing %s param", paramSessionID)
		return nil, 0, ""
	}

	state := &ViewerState{
		SessionID: sessionID,
		Status:    domain.StatusActive,
		IdleSince: vm.now(),
		Presences: make(map[string]runtime.Presence),
	}
	if err := vm.subscribe(state); err != nil {
		logger.Error("MatchInit: Failed to subscribe to session %s: %v", sessionID, err)
		return nil, 0, ""
	}

	label, err := viewerLabel(sessionID, state.Status)
	if err != nil {
		logger.Error("MatchInit: %v", err)
		state.cancel()
		return nil, 0, ""
	}

	logger.Debug("MatchInit: Viewer match created for session %s.", sessionID)
	return state, viewerTickRate, label
}

func (vm *viewerMatch) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	if _, ok := state.(*ViewerState); !ok {
		return state, false, "state not found"
	}
	return state, true, ""
}

func (vm *viewerMatch) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	vs, ok := state.(*ViewerState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		vs.Presences[p.GetUserId()] = p

		view, err := vm.sessions.Get(ctx, vs.SessionID, p.GetUserId())
		if err != nil {
			logger.Warn("MatchJoin: Failed to load session %s for %s: %v", vs.SessionID, p.GetUserId(), err)
			vm.sendError(dispatcher, logger, p, err)
			continue
		}
		vm.send(dispatcher, logger, OpState, viewerMessage{Type: string(app.EventState), Payload: view, Timestamp: vm.now()}, p)
	}
	vs.IdleSince = time.Time{}

	return vs
}

func (vm *viewerMatch) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	vs, ok := state.(*ViewerState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		delete(vs.Presences, p.GetUserId())
	}
	if len(vs.Presences) == 0 {
		vs.IdleSince = vm.now()
	}
	return vs
}

func (vm *viewerMatch) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	vs, ok := state.(*ViewerState)
	if !ok {
		return state
	}

	// Viewers are read-only; moves go through the RPCs.
	for _, msg := range messages {
		logger.Warn("MatchLoop: Ignoring opcode %d from %s", msg.GetOpCode(), msg.GetUserId())
	}

	if vs.sub == nil && vs.TerminateAt.IsZero() {
		if err := vm.subscribe(vs); err != nil {
			logger.Warn("MatchLoop: Failed to resubscribe to session %s: %v", vs.SessionID, err)
		}
	}
	vm.drain(ctx, vs, dispatcher, logger)
	vm.expirePending(ctx, vs, logger)

	now := vm.now()
	if !vs.TerminateAt.IsZero() && !now.Before(vs.TerminateAt) {
		logger.Info("MatchLoop: Session %s ended, terminating viewer match.", vs.SessionID)
		return nil
	}
	if len(vs.Presences) == 0 && vs.PendingExpiry.IsZero() && !vs.IdleSince.IsZero() && now.Sub(vs.IdleSince) >= vm.idle {
		logger.Info("MatchLoop: No viewers for session %s, terminating viewer match.", vs.SessionID)
		return nil
	}

	return vs
}

func (vm *viewerMatch) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, graceSeconds int) interface{} {
	if vs, ok := state.(*ViewerState); ok {
		vm.unsubscribe(vs)
	}
	logger.Debug("MatchTerminate: Viewer match terminated (grace %d).", graceSeconds)
	return state
}

func (vm *viewerMatch) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}

// subscribe attaches the match to the session's hub topic. The hub context
// outlives MatchInit, so it is cancelled explicitly on termination.
func (vm *viewerMatch) subscribe(vs *ViewerState) error {
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := vm.hub.Subscribe(ctx, vs.SessionID, func(ctx context.Context) (interface{}, error) {
		sess, err := vm.sessions.Snapshot(ctx, vs.SessionID)
		if err != nil || sess == nil {
			return nil, err
		}
		return sess, nil
	})
	if err != nil {
		cancel()
		return err
	}
	vs.sub = sub
	vs.cancel = cancel
	return nil
}

func (vm *viewerMatch) unsubscribe(vs *ViewerState) {
	if vs.cancel != nil {
		vs.cancel()
		vs.cancel = nil
	}
	if vs.sub != nil {
		vs.sub.Close()
		vs.sub = nil
	}
}

// drain relays everything queued on the subscription without blocking the tick.
func (vm *viewerMatch) drain(ctx context.Context, vs *ViewerState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	if vs.sub == nil {
		return
	}
	for {
		select {
		case env, ok := <-vs.sub.Events():
			if !ok {
				logger.Warn("drain: Subscription to session %s was dropped.", vs.SessionID)
				vm.unsubscribe(vs)
				return
			}
			vm.relay(vs, dispatcher, logger, env)
		default:
			return
		}
	}
}

func (vm *viewerMatch) relay(vs *ViewerState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, env realtime.Envelope) {
	kind := app.EventKind(env.Type)
	if kind == app.EventKeepAlive {
		vm.send(dispatcher, logger, OpKeepAlive, viewerMessage{Type: env.Type, Timestamp: env.Timestamp})
		return
	}

	if kind == app.EventState {
		sess, _ := env.Payload.(*domain.Session)
		if sess == nil {
			// Already evicted.
			return
		}
		if sess.IsTerminal() {
			vm.markTerminal(vs, dispatcher, logger, sess.Status)
		}
	}

	if expiresAt, ok := app.PendingExpiry(kind, env.Payload); ok {
		vs.PendingExpiry = expiresAt
	} else if kind != app.EventPlayerJoined {
		vs.PendingExpiry = time.Time{}
	}

	if app.IsTerminalEvent(kind, env.Payload) {
		status := domain.StatusFinished
		if kind == app.EventGameAbandoned {
			status = domain.StatusAbandoned
		}
		vm.markTerminal(vs, dispatcher, logger, status)
	}

	opCode := opCodeFor(kind)
	for _, p := range vs.Presences {
		vm.send(dispatcher, logger, opCode, viewerMessage{
			Type:      env.Type,
			Payload:   app.SanitizeEvent(kind, env.Payload, p.GetUserId()),
			Timestamp: env.Timestamp,
		}, p)
	}
}

// expirePending settles a bluff once its window has passed. A window that is
// still open is retried on the next tick.
func (vm *viewerMatch) expirePending(ctx context.Context, vs *ViewerState, logger runtime.Logger) {
	if vs.PendingExpiry.IsZero() || vm.now().Before(vs.PendingExpiry) {
		return
	}
	_, err := vm.sessions.ExpireChallenge(ctx, vs.SessionID)
	switch {
	case err == nil:
		vs.PendingExpiry = time.Time{}
	case errors.Is(err, app.ErrChallengeWindowOpen):
	case errors.Is(err, app.ErrNoPendingChallenge),
		errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrSessionNotActive):
		vs.PendingExpiry = time.Time{}
	default:
		logger.Warn("expirePending: Failed to expire challenge in session %s: %v", vs.SessionID, err)
	}
}

func (vm *viewerMatch) markTerminal(vs *ViewerState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, status domain.Status) {
	if !vs.TerminateAt.IsZero() {
		return
	}
	vs.Status = status
	vs.PendingExpiry = time.Time{}
	vs.TerminateAt = vm.now().Add(terminalGrace)
	vm.updateLabel(vs, dispatcher, logger)
}

func (vm *viewerMatch) updateLabel(vs *ViewerState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	label, err := viewerLabel(vs.SessionID, vs.Status)
	if err != nil {
		logger.Error("UpdateLabel: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(label); err != nil {
		logger.Error("UpdateLabel: Failed to update: %v", err)
	}
}

// send delivers msg to the given presences, or to everyone if none are given.
func (vm *viewerMatch) send(dispatcher runtime.MatchDispatcher, logger runtime.Logger, opCode int64, msg viewerMessage, presences ...runtime.Presence) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("send: Failed to marshal %s: %v", msg.Type, err)
		return
	}
	if len(presences) == 0 {
		presences = nil
	}
	if err := dispatcher.BroadcastMessage(opCode, data, presences, nil, true); err != nil {
		logger.Warn("send: Failed to broadcast %s: %v", msg.Type, err)
	}
}

func (vm *viewerMatch) sendError(dispatcher runtime.MatchDispatcher, logger runtime.Logger, p runtime.Presence, err error) {
	body := viewerError{Code: "internal", Message: "internal error"}
	var appErr *app.Error
	if errors.As(err, &appErr) && appErr.Kind != app.KindInternal {
		body = viewerError{Code: appErr.Code, Message: appErr.Message}
	}
	vm.send(dispatcher, logger, OpError, viewerMessage{Type: "ERROR", Payload: body, Timestamp: vm.now()}, p)
}

func opCodeFor(kind app.EventKind) int64 {
	switch kind {
	case app.EventState:
		return OpState
	case app.EventChainUpdated:
		return OpChainUpdated
	case app.EventChallengeEnd:
		return OpChallengeEnd
	case app.EventGameAbandoned:
		return OpGameAbandoned
	case app.EventPlayerJoined:
		return OpPlayerJoined
	case app.EventKeepAlive:
		return OpKeepAlive
	default:
		return OpError
	}
}
