package app

import "github.com/google/uuid"

// newGameID returns a random UUIDv4 game id.
func newGameID() string {
	return uuid.NewString()
}

// NewPlayerID returns a random UUIDv4 for a browser or socket client.
func NewPlayerID() string {
	return uuid.NewString()
}
