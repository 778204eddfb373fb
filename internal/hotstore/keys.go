package hotstore

import "fmt"

// Key builders for the stable hot-store keyspace. Kept centralized so
// every component agrees on the wire names.

func RankingKey(sessionID string) string { return fmt.Sprintf("ranking:%s", sessionID) }

func BidKey(sessionID, userID string) string { return fmt.Sprintf("bid:%s:%s", sessionID, userID) }

func BidMetadataKey(sessionID, userID string) string {
	return fmt.Sprintf("bid_metadata:%s:%s", sessionID, userID)
}

func BidMetadataPattern(sessionID string) string {
	return fmt.Sprintf("bid_metadata:%s:*", sessionID)
}

const DirtySessionsKey = "dirty_sessions"

func SessionParamsKey(sessionID string) string { return fmt.Sprintf("session:params:%s", sessionID) }

func SessionActiveKey(sessionID string) string { return fmt.Sprintf("session:active:%s", sessionID) }

func UserKey(userID string) string { return fmt.Sprintf("user:%s", userID) }
