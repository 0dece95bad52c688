package service

import (
	"sort"
	"time"

	"github.com/noah-isme/loan-query-api/internal/models"
)

// DefaultMergeWindow is the timestamp tolerance used when the same message
// shows up in more than one source.
const DefaultMergeWindow = time.Second

// MergeMessages merges message sources for one query, in precedence order,
// with the default window.
func MergeMessages(queryID string, sources ...[]models.ChatMessage) []models.ChatMessage {
	return MergeMessagesWithin(queryID, DefaultMergeWindow, sources...)
}

// MergeMessagesWithin merges sources listed in precedence order. A message is
// dropped when its id was already taken or when an accepted message has the
// same text and sender less than window apart. The result holds only
// messages of queryID, oldest first.
func MergeMessagesWithin(queryID string, window time.Duration, sources ...[]models.ChatMessage) []models.ChatMessage {
	key := models.NormalizeQueryID(queryID)
	seenIDs := make(map[string]struct{})
	accepted := make(map[string][]time.Time)
	out := make([]models.ChatMessage, 0)

	for _, source := range sources {
		for _, msg := range source {
			if models.NormalizeQueryID(msg.QueryID) != key {
				continue
			}
			if msg.ID != "" {
				if _, ok := seenIDs[msg.ID]; ok {
					continue
				}
			}
			fingerprint := msg.Sender + "\x00" + msg.Message
			if withinAny(accepted[fingerprint], msg.Timestamp, window) {
				continue
			}
			if msg.ID != "" {
				seenIDs[msg.ID] = struct{}{}
			}
			accepted[fingerprint] = append(accepted[fingerprint], msg.Timestamp)
			msg.QueryID = key
			out = append(out, msg)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func withinAny(times []time.Time, ts time.Time, window time.Duration) bool {
	for _, t := range times {
		delta := ts.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if delta < window {
			return true
		}
	}
	return false
}
