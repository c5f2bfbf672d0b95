package nakama

import (
	"context"
	"fmt"
	"sync"
	"time"

	"comparity/internal/domain"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
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
	return nil
}

type sentMessage struct {
	opCode    int64
	data      []byte
	presences []runtime.Presence
}

// mockDispatcher records match dispatcher calls for assertions.
type mockDispatcher struct {
	broadcastCount int
	labelUpdates   int
	lastLabel      string
	lastOpCode     int64
	lastData       []byte
	sent           []sentMessage
}

func (md *mockDispatcher) BroadcastMessage(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	md.broadcastCount++
	md.lastOpCode = opCode
	md.lastData = append([]byte(nil), data...)
	md.sent = append(md.sent, sentMessage{opCode: opCode, data: md.lastData, presences: presences})
	return nil
}

func (md *mockDispatcher) BroadcastMessageDeferred(opCode int64, data []byte, presences []runtime.Presence, sender runtime.Presence, reliable bool) error {
	return nil
}

func (md *mockDispatcher) MatchKick(presences []runtime.Presence) error {
	return nil
}

func (md *mockDispatcher) MatchLabelUpdate(label string) error {
	md.labelUpdates++
	md.lastLabel = label
	return nil
}

// sentTo returns the messages addressed to userID, in order.
func (md *mockDispatcher) sentTo(userID string) []sentMessage {
	var out []sentMessage
	for _, m := range md.sent {
		for _, p := range m.presences {
			if p.GetUserId() == userID {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

type testPresence struct {
	userID string
}

func (p testPresence) GetHidden() bool                   { return false }
func (p testPresence) GetPersistence() bool              { return false }
func (p testPresence) GetUsername() string               { return p.userID }
func (p testPresence) GetStatus() string                 { return "" }
func (p testPresence) GetReason() runtime.PresenceReason { return 0 }
func (p testPresence) GetUserId() string                 { return p.userID }
func (p testPresence) GetSessionId() string              { return "session-" + p.userID }
func (p testPresence) GetNodeId() string                 { return "node-1" }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStorage is an in-memory StorageAPI with Nakama's version semantics:
// "" writes unconditionally, "*" only creates, anything else must match.
type fakeStorage struct {
	mu       sync.Mutex
	objects  map[string]*api.StorageObject
	seq      int
	rejects  int // next N conditional writes are rejected
	writeErr error
	writes   int
	deletes  int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string]*api.StorageObject)}
}

func storageKey(collection, key, userID string) string {
	return collection + "/" + key + "/" + userID
}

func (s *fakeStorage) StorageRead(ctx context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*api.StorageObject
	for _, r := range reads {
		if obj, ok := s.objects[storageKey(r.Collection, r.Key, r.UserID)]; ok {
			out = append(out, &api.StorageObject{
				Collection: obj.Collection,
				Key:        obj.Key,
				UserId:     obj.UserId,
				Value:      obj.Value,
				Version:    obj.Version,
			})
		}
	}
	return out, nil
}

func (s *fakeStorage) StorageWrite(ctx context.Context, writes []*runtime.StorageWrite) ([]*api.StorageObjectAck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		k := storageKey(w.Collection, w.Key, w.UserID)
		existing, exists := s.objects[k]
		if w.Version != "" && s.rejects > 0 {
			s.rejects--
			return nil, runtime.ErrStorageRejectedVersion
		}
		switch {
		case w.Version == "*" && exists:
			return nil, runtime.ErrStorageRejectedVersion
		case w.Version != "" && w.Version != "*" && (!exists || existing.Version != w.Version):
			return nil, runtime.ErrStorageRejectedVersion
		}
		s.seq++
		version := fmt.Sprintf("v%d", s.seq)
		s.objects[k] = &api.StorageObject{
			Collection: w.Collection,
			Key:        w.Key,
			UserId:     w.UserID,
			Value:      w.Value,
			Version:    version,
		}
		s.writes++
		acks = append(acks, &api.StorageObjectAck{Collection: w.Collection, Key: w.Key, UserId: w.UserID, Version: version})
	}
	return acks, nil
}

func (s *fakeStorage) StorageDelete(ctx context.Context, deletes []*runtime.StorageDelete) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range deletes {
		k := storageKey(d.Collection, d.Key, d.UserID)
		existing, ok := s.objects[k]
		if !ok {
			continue
		}
		if d.Version != "" && existing.Version != d.Version {
			return runtime.ErrStorageRejectedVersion
		}
		delete(s.objects, k)
		s.deletes++
	}
	return nil
}

func (s *fakeStorage) has(collection, key, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[storageKey(collection, key, userID)]
	return ok
}

type leaderboardWrite struct {
	id       string
	ownerID  string
	score    int64
	operator int
}

type fakeLeaderboards struct {
	mu      sync.Mutex
	created []string
	writes  []leaderboardWrite
}

func (f *fakeLeaderboards) LeaderboardCreate(ctx context.Context, id string, authoritative bool, sortOrder, operator, resetSchedule string, metadata map[string]interface{}, enableRanks bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, id)
	return nil
}

func (f *fakeLeaderboards) LeaderboardRecordWrite(ctx context.Context, id, ownerID, username string, score, subscore int64, metadata map[string]interface{}, overrideOperator *int) (*api.LeaderboardRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := int(api.Operator_NO_OVERRIDE)
	if overrideOperator != nil {
		op = *overrideOperator
	}
	f.writes = append(f.writes, leaderboardWrite{id: id, ownerID: ownerID, score: score, operator: op})
	return &api.LeaderboardRecord{LeaderboardId: id, OwnerId: ownerID, Score: score}, nil
}

// net returns the signed total written for ownerID on board id.
func (f *fakeLeaderboards) net(id, ownerID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, w := range f.writes {
		if w.id != id || w.ownerID != ownerID {
			continue
		}
		if w.operator == int(api.Operator_DECREMENT) {
			total -= w.score
		} else {
			total += w.score
		}
	}
	return total
}

type fakeMatchCreator struct {
	mu     sync.Mutex
	params []map[string]interface{}
	err    error
}

func (f *fakeMatchCreator) MatchCreate(ctx context.Context, module string, params map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.params = append(f.params, params)
	return fmt.Sprintf("match-%d.node-1", len(f.params)), nil
}

const testDeckID = "tests"

// testDeck has cards t1..t5 worth 1..5 plus an inactive t9.
func testDeck() CatalogDeck {
	deck := CatalogDeck{
		Deck:   domain.Deck{ID: testDeckID, Name: "Test Deck", ParameterName: "weight", ParameterUnit: "kg"},
		Active: true,
	}
	for _, v := range []int{3, 1, 5, 2, 4} {
		deck.Cards = append(deck.Cards, CatalogCard{Card: testCard(v), Active: true})
	}
	deck.Cards = append(deck.Cards, CatalogCard{Card: testCard(9), Active: false})
	return deck
}

func testCard(v int) domain.Card {
	return domain.Card{
		ID:           fmt.Sprintf("t%d", v),
		Title:        fmt.Sprintf("Card %d", v),
		HiddenValue:  float64(v),
		DisplayValue: fmt.Sprintf("%d kg", v),
	}
}

func (s *fakeStorage) count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, obj := range s.objects {
		if obj.Collection == collection {
			n++
		}
	}
	return n
}
