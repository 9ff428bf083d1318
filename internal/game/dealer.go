package game

import (
	"sync"
)

// RandSource supplies the randomness for dealer hands. *rand.Rand from
// math/rand/v2 satisfies it.
type RandSource interface {
	IntN(n int) int
}

// Dealer generates the server's counter-hand for each round. Access to
// the underlying source is serialized so concurrent rounds from
// different rooms can share one dealer.
type Dealer struct {
	mu  sync.Mutex
	rng RandSource
}

// NewDealer creates a dealer drawing from the given source.
func NewDealer(rng RandSource) *Dealer {
	return &Dealer{rng: rng}
}

// Deal returns a uniformly random hand.
func (d *Dealer) Deal() Hand {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Hands[d.rng.IntN(len(Hands))]
}
