package hotstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Store used by unit tests across the pipeline
// packages. It mirrors the Redis semantics closely enough (sorted-set
// ordering, dirty-set snapshot-and-clear, cursor scan) to exercise the
// write and read paths without a live server.
type Fake struct {
	mu       sync.Mutex
	boards   map[string]map[string]float64 // sessionID -> userID -> score
	bids     map[string]BidHash            // "session:user" -> hash
	metadata map[string]BidHash            // "session:user" -> hash
	dirty    map[string]struct{}
	params   map[string]map[string]string
	active   map[string]string
	identity map[string]string
}

func NewFake() *Fake {
	return &Fake{
		boards:   make(map[string]map[string]float64),
		bids:     make(map[string]BidHash),
		metadata: make(map[string]BidHash),
		dirty:    make(map[string]struct{}),
		params:   make(map[string]map[string]string),
		active:   make(map[string]string),
		identity: make(map[string]string),
	}
}

func compositeKey(sessionID, userID string) string { return sessionID + ":" + userID }

func (f *Fake) SubmitBid(_ context.Context, sessionID, userID string, price, score float64, updatedAt time.Time, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.boards[sessionID] == nil {
		f.boards[sessionID] = make(map[string]float64)
	}
	f.boards[sessionID][userID] = score

	key := compositeKey(sessionID, userID)
	bh := BidHash{UserID: userID, Price: price, Score: score, UpdatedAt: updatedAt}
	f.bids[key] = bh
	f.metadata[key] = bh
	f.dirty[sessionID] = struct{}{}
	return nil
}

func (f *Fake) sortedMembers(sessionID string) []ScoredMember {
	board := f.boards[sessionID]
	members := make([]ScoredMember, 0, len(board))
	for uid, score := range board {
		members = append(members, ScoredMember{UserID: uid, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].UserID < members[j].UserID
	})
	return members
}

func (f *Fake) Rank(_ context.Context, sessionID, userID string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, m := range f.sortedMembers(sessionID) {
		if m.UserID == userID {
			return int64(i + 1), true, nil
		}
	}
	return 0, false, nil
}

func (f *Fake) LeaderboardRange(_ context.Context, sessionID string, start, stop int64) ([]ScoredMember, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	members := f.sortedMembers(sessionID)
	total := int64(len(members))
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= total {
		stop = total - 1
	}
	if start > stop || total == 0 {
		return []ScoredMember{}, total, nil
	}
	return append([]ScoredMember{}, members[start:stop+1]...), total, nil
}

func (f *Fake) FullScoreboard(_ context.Context, sessionID string) ([]ScoredMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedMembers(sessionID), nil
}

func (f *Fake) BidsByUsers(_ context.Context, sessionID string, userIDs []string) (map[string]BidHash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make(map[string]BidHash, len(userIDs))
	for _, uid := range userIDs {
		if bh, ok := f.bids[compositeKey(sessionID, uid)]; ok {
			result[uid] = bh
		}
	}
	return result, nil
}

func (f *Fake) SnapshotAndClearDirty(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions := make([]string, 0, len(f.dirty))
	for s := range f.dirty {
		sessions = append(sessions, s)
	}
	f.dirty = make(map[string]struct{})
	return sessions, nil
}

func (f *Fake) MarkDirty(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty[sessionID] = struct{}{}
	return nil
}

func (f *Fake) ScanBidMetadata(_ context.Context, sessionID string) ([]BidHash, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := sessionID + ":"
	var records []BidHash
	var keys []string
	for k, bh := range f.metadata {
		if strings.HasPrefix(k, prefix) {
			records = append(records, bh)
			keys = append(keys, k)
		}
	}
	return records, keys, nil
}

func (f *Fake) DeleteKeys(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.metadata, k)
	}
	return nil
}

func (f *Fake) GetSessionParams(_ context.Context, sessionID string) (map[string]string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.params[sessionID]
	return p, ok, nil
}

func (f *Fake) SetSessionParams(_ context.Context, sessionID string, fields map[string]string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params[sessionID] = fields
	return nil
}

func (f *Fake) GetSessionActive(_ context.Context, sessionID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.active[sessionID]
	return v, ok, nil
}

func (f *Fake) SetSessionActive(_ context.Context, sessionID string, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[sessionID] = value
	return nil
}

func (f *Fake) GetUserIdentity(_ context.Context, userID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.identity[userID]
	return v, ok, nil
}

func (f *Fake) SetUserIdentity(_ context.Context, userID, username string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity[userID] = username
	return nil
}

func (f *Fake) Ping(_ context.Context) error { return nil }

var _ Store = (*Fake)(nil)
