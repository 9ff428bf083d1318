package game

import (
	"fmt"
	"strings"
)

// Hand is one of the three playable hands.
type Hand string

const (
	HandRock     Hand = "Rock"
	HandPaper    Hand = "Paper"
	HandScissors Hand = "Scissors"
)

// Hands lists every playable hand in a stable order.
var Hands = []Hand{HandRock, HandPaper, HandScissors}

// ParseHand converts a wire string into a Hand. Matching is
// case-insensitive so clients can send "rock" or "Rock".
func ParseHand(s string) (Hand, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock":
		return HandRock, nil
	case "paper":
		return HandPaper, nil
	case "scissors":
		return HandScissors, nil
	default:
		return "", fmt.Errorf("invalid hand: %q", s)
	}
}

func (h Hand) String() string {
	return string(h)
}

// beats returns the hand that h defeats.
func (h Hand) beats() Hand {
	switch h {
	case HandRock:
		return HandScissors
	case HandPaper:
		return HandRock
	default:
		return HandPaper
	}
}

// Outcome is the result of a round from the player's perspective.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLose Outcome = "lose"
	OutcomeDraw Outcome = "draw"
)

// Resolve scores a round for the player against the server's hand.
// Rock beats Scissors, Scissors beats Paper, Paper beats Rock; equal
// hands are a draw.
func Resolve(player, server Hand) Outcome {
	switch {
	case player == server:
		return OutcomeDraw
	case player.beats() == server:
		return OutcomeWin
	default:
		return OutcomeLose
	}
}
