package utils

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// GenerateID returns a new unique identifier string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateBidID returns a lexicographically time-ordered identifier for ledger entries
func GenerateBidID() string {
	return ulid.Make().String()
}

// GenerateLotNumber returns a random six digit lot number
func GenerateLotNumber() string {
	return fmt.Sprintf("%06d", rand.Intn(900000)+100000)
}
