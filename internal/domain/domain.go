// Package domain holds the entities shared across the bid pipeline. All
// linking between entities is by identifier (session_id, user_id) rather
// than by object reference, so bids and sessions never form a cycle.
package domain

import "time"

// Principal is the authenticated identity behind a bid. It is treated as
// immutable for the lifetime of the token that resolved it.
type Principal struct {
	ID       string
	Username string
	Weight   float64
	IsAdmin  bool
}

// Session is an auction session. Alpha, Beta, Gamma and the timing fields
// are immutable once the session starts.
type Session struct {
	ID           string
	ProductID    string
	ReservePrice float64
	Inventory    int
	Alpha        float64
	Beta         float64
	Gamma        float64
	StartTime    time.Time
	EndTime      time.Time
	IsActive     bool
	FinalPrice   *float64
}

// BidRecord is the authoritative, per-(session,user) bid state held in the
// hot store. Resubmission updates it in place.
type BidRecord struct {
	SessionID string
	UserID    string
	Price     float64
	Score     float64
	UpdatedAt time.Time
}

// LeaderboardEntry is one ranked row in a leaderboard page.
type LeaderboardEntry struct {
	UserID    string
	Username  string
	Price     float64
	Score     float64
	Rank      int
	IsWinner  bool
	UpdatedAt time.Time
}

// LeaderboardPage is the paged, enriched read-path response.
type LeaderboardPage struct {
	SessionID      string
	Entries        []LeaderboardEntry
	Page           int
	PageSize       int
	Total          int
	TotalPages     int
	HighestBid     float64
	ThresholdScore *float64
}

// FinalRanking is a single durable ranking row written exactly once at
// finalization.
type FinalRanking struct {
	SessionID string
	UserID    string
	Rank      int
	Price     float64
	Score     float64
	IsWinner  bool
}

// SessionActivity is the lightweight, short-TTL view of whether a session
// is currently accepting bids, independent of its full parameter set.
type SessionActivity struct {
	Now      time.Time
	Start    time.Time
	End      time.Time
	IsActive bool
}

// Status classifies a session relative to "now".
type Status int

const (
	StatusNotStarted Status = iota
	StatusOpen
	StatusEnded
	StatusInactive
)

// Status classifies the window first: a paused session that has not yet
// started still reports StatusNotStarted, and one past its end reports
// StatusEnded; the pause flag only matters inside the window.
func (a SessionActivity) Status() Status {
	if a.Now.Before(a.Start) {
		return StatusNotStarted
	}
	if !a.Now.Before(a.End) {
		return StatusEnded
	}
	if !a.IsActive {
		return StatusInactive
	}
	return StatusOpen
}
