package whatinthewiki

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/umputun/wikidaily/pkg/domain"
)

// reveal levels, each unlocks one more clue
const (
	LevelCategories = 1
	LevelImage      = 2
	LevelSections   = 3
	LevelLead       = 4
	LevelFull       = 5
	MaxRevealLevel  = LevelFull
)

// errors of invalid moves
var (
	ErrGameComplete   = errors.New("game is already over")
	ErrFullyRevealed  = errors.New("everything is already revealed")
	ErrNotAnOption    = errors.New("guess is not one of the options")
	ErrAlreadyGuessed = errors.New("option was already guessed")
)

// NewState starts the game of a day with the categories revealed
func NewState(dateKey string) domain.WikiGameState {
	return domain.WikiGameState{DateKey: dateKey, RevealLevel: LevelCategories, Guesses: []string{}}
}

// Reveal unlocks the next clue
func Reveal(st *domain.WikiGameState) error {
	if st.IsComplete {
		return ErrGameComplete
	}
	if st.RevealLevel >= MaxRevealLevel {
		return ErrFullyRevealed
	}
	st.RevealLevel++
	return nil
}

// Guess records a guess and reports whether it was the answer. A wrong guess ends the game
// only when everything is already revealed.
func Guess(st *domain.WikiGameState, p *domain.WikiPuzzle, guess string) (bool, error) {
	if st.IsComplete {
		return false, ErrGameComplete
	}
	idx := slices.IndexFunc(p.Options, func(o string) bool { return strings.EqualFold(o, guess) })
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrNotAnOption, guess)
	}
	guess = p.Options[idx]
	if slices.Contains(st.Guesses, guess) {
		return false, ErrAlreadyGuessed
	}

	st.Guesses = append(st.Guesses, guess)
	correct := guess == p.Title
	switch {
	case correct:
		st.IsComplete, st.IsWon = true, true
	case st.RevealLevel >= MaxRevealLevel:
		st.IsComplete = true
	}
	return correct, nil
}
