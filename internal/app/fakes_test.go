package app

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"comparity/internal/domain"
	"comparity/internal/ports"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return map[string]interface{}{}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type storedSession struct {
	session *domain.Session
	version int
}

// fakeStore is an in-memory versioned session store.
type fakeStore struct {
	mu        sync.Mutex
	sessions  map[string]storedSession
	conflicts int // next N puts fail with ErrVersionConflict
	puts      int
	deletes   []string
	getErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: map[string]storedSession{}}
}

func (f *fakeStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	stored, ok := f.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	out := stored.session.Clone()
	out.Version = strconv.Itoa(stored.version)
	return out, nil
}

func (f *fakeStore) Put(ctx context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return ports.ErrVersionConflict
	}
	stored, ok := f.sessions[s.ID]
	current := ""
	if ok {
		current = strconv.Itoa(stored.version)
	}
	if s.Version != current {
		return ports.ErrVersionConflict
	}
	next := stored.version + 1
	f.sessions[s.ID] = storedSession{session: s.Clone(), version: next}
	s.Version = strconv.Itoa(next)
	f.puts++
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	f.deletes = append(f.deletes, sessionID)
	return nil
}

func (f *fakeStore) stored(sessionID string) *domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[sessionID]
	if !ok {
		return nil
	}
	return stored.session.Clone()
}

type window struct {
	turnID  string
	expires time.Time
}

// fakeWindows is a set-if-absent window store driven by a fakeClock.
type fakeWindows struct {
	mu      sync.Mutex
	clock   *fakeClock
	windows  map[string]window
	opens    int
	closes   int
	closeErr error
}

func newFakeWindows(clock *fakeClock) *fakeWindows {
	return &fakeWindows{clock: clock, windows: map[string]window{}}
}

func (f *fakeWindows) Open(ctx context.Context, sessionID, turnID string, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	if w, ok := f.windows[sessionID]; ok && now.Before(w.expires) {
		return ports.ErrWindowBusy
	}
	f.windows[sessionID] = window{turnID: turnID, expires: now.Add(d)}
	f.opens++
	return nil
}

func (f *fakeWindows) IsOpenFor(ctx context.Context, sessionID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.windows[sessionID]
	if !ok || !f.clock.Now().Before(w.expires) {
		return "", nil
	}
	return w.turnID, nil
}

func (f *fakeWindows) Close(ctx context.Context, sessionID, turnID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if f.closeErr != nil {
		return f.closeErr
	}
	if w, ok := f.windows[sessionID]; ok && w.turnID == turnID {
		delete(f.windows, sessionID)
	}
	return nil
}

type publishedEvent struct {
	sessionID string
	kind      EventKind
	payload   interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(ctx context.Context, sessionID, eventType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{sessionID: sessionID, kind: EventKind(eventType), payload: payload})
	return nil
}

func (f *fakePublisher) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.events...)
}

type fakeCatalog struct {
	deck  *domain.Deck
	cards []domain.Card
}

func (f *fakeCatalog) GetDeck(ctx context.Context, deckID string) (*domain.Deck, error) {
	if f.deck == nil || f.deck.ID != deckID {
		return nil, nil
	}
	d := *f.deck
	return &d, nil
}

func (f *fakeCatalog) ListActiveCards(ctx context.Context, deckID string) ([]domain.Card, error) {
	if f.deck == nil || f.deck.ID != deckID {
		return nil, nil
	}
	return append([]domain.Card(nil), f.cards...), nil
}

func (f *fakeCatalog) GetCardsByIDs(ctx context.Context, deckID string, ids []string) ([]domain.Card, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []domain.Card
	for _, c := range f.cards {
		if _, ok := want[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeStats struct {
	mu      sync.Mutex
	results []ports.GameResult
}

func (f *fakeStats) RecordGameResult(ctx context.Context, result ports.GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

type leaderboardCall struct {
	userID string
	delta  int
	deckID string
}

type fakeLeaderboard struct {
	mu    sync.Mutex
	calls []leaderboardCall
}

func (f *fakeLeaderboard) IncrementScore(ctx context.Context, userID string, delta int, deckID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, leaderboardCall{userID: userID, delta: delta, deckID: deckID})
	return nil
}

func (f *fakeLeaderboard) totals() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int{}
	for _, c := range f.calls {
		out[c.userID] += c.delta
	}
	return out
}

type fakeTurns struct {
	mu       sync.Mutex
	appended []ports.TurnRecord
	resolved map[string]ports.TurnResolution
}

func (f *fakeTurns) AppendTurn(ctx context.Context, turn ports.TurnRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, turn)
	return nil
}

func (f *fakeTurns) ResolveTurn(ctx context.Context, turnID string, res ports.TurnResolution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolved == nil {
		f.resolved = map[string]ports.TurnResolution{}
	}
	f.resolved[turnID] = res
	return nil
}

type fakeViewers struct {
	started []string
	err     error
}

func (f *fakeViewers) StartViewer(ctx context.Context, sessionID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started = append(f.started, sessionID)
	return "match-" + sessionID, nil
}

const testDeckID = "deck-1"

// testCard returns the catalog card with the given value, id "c<value>".
func testCard(value int) domain.Card {
	v := strconv.Itoa(value)
	return domain.Card{
		ID:           "c" + v,
		Title:        "Card " + v,
		HiddenValue:  float64(value),
		DisplayValue: v + " km",
	}
}

type harness struct {
	clock   *fakeClock
	store   *fakeStore
	windows *fakeWindows
	pub     *fakePublisher
	catalog *fakeCatalog
	stats   *fakeStats
	board   *fakeLeaderboard
	turns   *fakeTurns
	viewers *fakeViewers
	invites *InviteService
	service *Service
}

func newHarness(settings Settings) *harness {
	clock := newFakeClock()
	h := &harness{
		clock:   clock,
		store:   newFakeStore(),
		windows: newFakeWindows(clock),
		pub:     &fakePublisher{},
		catalog: &fakeCatalog{deck: &domain.Deck{ID: testDeckID, Name: "Distances", ParameterName: "distance", ParameterUnit: "km"}},
		stats:   &fakeStats{},
		board:   &fakeLeaderboard{},
		turns:   &fakeTurns{},
		viewers: &fakeViewers{},
		invites: NewInviteService("test-secret", "comparity", time.Hour),
	}
	for v := 100; v <= 900; v += 100 {
		h.catalog.cards = append(h.catalog.cards, testCard(v))
	}
	h.service = NewService(Deps{
		Store:       h.store,
		Windows:     h.windows,
		Publisher:   h.pub,
		Catalog:     h.catalog,
		Stats:       h.stats,
		Leaderboard: h.board,
		Turns:       h.turns,
		Viewers:     h.viewers,
		Invites:     h.invites,
		Now:         clock.Now,
	}, settings, noopLogger{}, nil)
	return h
}

// placed describes one chain entry for seeding.
type placed struct {
	value    int
	faceDown bool
	by       string
}

// seed stores an active session with the given chain and hand card.
// Every catalog card not on the chain or in hand remains undrawn.
func (h *harness) seed(id string, typ domain.SessionType, players []string, chain []placed, handValue int, handPlayer string) *domain.Session {
	sess := &domain.Session{
		SchemaVersion: domain.SessionSchemaVersion,
		ID:            id,
		Type:          typ,
		Status:        domain.StatusActive,
		DeckID:        testDeckID,
		DeckName:      "Distances",
		Players:       domain.Players{},
		CreatedBy:     players[0],
		CreatedAt:     h.clock.Now(),
		UpdatedAt:     h.clock.Now(),
	}
	for i, p := range players {
		sess.Players[p] = domain.Player{TurnOrder: i}
	}
	for _, c := range h.catalog.cards {
		sess.AllCardIDs = append(sess.AllCardIDs, c.ID)
	}
	for _, pl := range chain {
		card := testCard(pl.value)
		sess.Chain = append(sess.Chain, domain.NewPlacement(card, pl.faceDown, pl.by))
		sess.MarkUsed(card.ID)
	}
	if handValue > 0 {
		card := testCard(handValue)
		sess.MarkUsed(card.ID)
		sess.CurrentTurn = &domain.CurrentTurn{PlayerID: handPlayer, Card: card, StartedAt: h.clock.Now()}
	}
	if err := h.store.Put(context.Background(), sess); err != nil {
		panic(err)
	}
	return sess
}

// seedPending stores a session whose bluff at position awaits a challenge.
func (h *harness) seedPending(id string, players []string, chain []placed, position int, placer string) *domain.Session {
	sess := h.seed(id, domain.SessionGroup, players, chain, 0, "")
	stored := h.store.stored(id)
	stored.Version = sess.Version
	stored.PendingChallenge = &domain.PendingChallenge{
		TurnID:    "turn-1",
		Position:  position,
		CardID:    stored.Chain[position].CardID,
		PlacerID:  placer,
		ExpiresAt: h.clock.Now().Add(h.service.Settings().ChallengeWindow),
	}
	if err := h.store.Put(context.Background(), stored); err != nil {
		panic(err)
	}
	if err := h.windows.Open(context.Background(), id, "turn-1", h.service.Settings().ChallengeWindow); err != nil {
		panic(err)
	}
	return stored
}
