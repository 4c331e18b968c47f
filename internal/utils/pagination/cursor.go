package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor is the opaque pagination state we encode/decode.
// ID + Nano (unix nanoseconds) establish a stable keyset position: rows are
// ordered by (timestamp DESC, id DESC) and the next page starts strictly after
// the cursor. Nanoseconds keep the cursor at least as precise as any store.
type Cursor struct {
	ID   string `json:"id"`
	Nano int64  `json:"ts,omitempty"`
}

// At builds a cursor for the row identified by id at time ts.
func At(id string, ts time.Time) Cursor {
	return Cursor{ID: id, Nano: ts.UnixNano()}
}

// IsZero reports whether the cursor points at the first page.
func (c Cursor) IsZero() bool {
	return c.ID == "" && c.Nano == 0
}

// Time returns the cursor timestamp.
func (c Cursor) Time() time.Time {
	return time.Unix(0, c.Nano).UTC()
}

// After reports whether a row at (ts, id) sorts after the cursor in
// (timestamp DESC, id DESC) order, i.e. belongs on the next page.
func (c Cursor) After(ts time.Time, id string) bool {
	if c.IsZero() {
		return true
	}
	ns := ts.UnixNano()
	return ns < c.Nano || (ns == c.Nano && id < c.ID)
}

// Encode converts a Cursor into a Base64 string.
func Encode(c Cursor) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Decode parses a Base64 string into a Cursor.
// Empty token → empty cursor (first page).
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}

	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token")
	}

	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid pagination token")
	}
	return c, nil
}
