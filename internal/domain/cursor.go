package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// Cursor is an opaque pagination boundary: the (height, time) of the last row
// of a page, used as an exclusive bound for the next page's query.
type Cursor struct {
	Height string    `json:"height"`
	Time   time.Time `json:"time"`
}

// EncodeCursor renders a cursor as an opaque URL-safe token.
func EncodeCursor(c Cursor) string {
	payload, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, err
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, err
	}
	if c.Height == "" {
		return Cursor{}, errors.New("cursor height is missing")
	}
	if _, err := HeightValue(c.Height); err != nil {
		return Cursor{}, errors.New("cursor height is not numeric")
	}
	return c, nil
}
