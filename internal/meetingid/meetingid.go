// Package meetingid generates memorable meeting ids such as
// "calm-otter-river-42".
package meetingid

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// maxAttempts bounds the search for an unused id before a longer suffix is used.
const maxAttempts = 64

// New returns a random meeting id.
func New() string {
	return fmt.Sprintf("%s-%s-%s-%d",
		pick(adjectives), pick(animals), pick(places), randomIndex(100))
}

// NewUnique returns an id for which inUse reports false. After maxAttempts
// collisions the numeric suffix is widened so the loop always terminates.
func NewUnique(inUse func(id string) bool) string {
	for range maxAttempts {
		if id := New(); !inUse(id) {
			return id
		}
	}
	for {
		id := fmt.Sprintf("%s-%s-%s-%d",
			pick(adjectives), pick(animals), pick(places), randomIndex(1_000_000))
		if !inUse(id) {
			return id
		}
	}
}

func pick(words []string) string {
	return words[randomIndex(len(words))]
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic(fmt.Sprintf("meetingid: random source failed: %v", err))
	}
	return int(n.Int64())
}
