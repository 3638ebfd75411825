package firestore

import (
	"errors"
	"time"

	"github.com/lumenmarket/api/internal/platform/pagination"
)

// List queries order by a timestamp plus the document ID as a tiebreaker,
// so page tokens carry exactly those two values.

func encodeCursorToken(ts time.Time, docID string) string {
	token, err := pagination.EncodeToken(pagination.Cursor{
		StartAfter: []any{ts.UTC().Format(time.RFC3339Nano), docID},
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeCursorToken(token string) (time.Time, string, error) {
	cursor, err := pagination.DecodeToken(token)
	if err != nil {
		return time.Time{}, "", err
	}
	if len(cursor.StartAfter) != 2 {
		return time.Time{}, "", errors.New("invalid cursor structure")
	}
	rawTime, ok := cursor.StartAfter[0].(string)
	if !ok {
		return time.Time{}, "", errors.New("invalid cursor timestamp")
	}
	docID, ok := cursor.StartAfter[1].(string)
	if !ok || docID == "" {
		return time.Time{}, "", errors.New("invalid cursor document id")
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, docID, nil
}
