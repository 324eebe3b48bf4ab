package linkquest

import (
	"errors"
	"math/rand"
	"slices"

	"github.com/umputun/wikidaily/pkg/domain"
)

// ErrGameComplete is returned for moves on a finished game
var ErrGameComplete = errors.New("game is already complete")

// NewState starts a game of n cards at the first card
func NewState(n int) domain.GameState {
	return domain.GameState{Answers: make([]*bool, n), SkippedIndices: []int{}}
}

// Answer records the player's guess for the current card and moves to the next unanswered
// card, leaving skipped cards for last. The game completes when every card is answered.
func Answer(state *domain.GameState, linked bool) error {
	if state.IsComplete {
		return ErrGameComplete
	}
	if state.CurrentCardIndex < 0 || state.CurrentCardIndex >= len(state.Answers) {
		return errors.New("current card out of range")
	}

	state.Answers[state.CurrentCardIndex] = &linked
	next, ok := nextUnanswered(state)
	if !ok {
		state.IsComplete = true
		return nil
	}
	state.CurrentCardIndex = next
	return nil
}

// Shuffle defers the current card: it is marked skipped and a random unanswered card
// becomes current. Skipped cards are only offered again when nothing else is left.
func Shuffle(state *domain.GameState, rng *rand.Rand) error {
	if state.IsComplete {
		return ErrGameComplete
	}

	cur := state.CurrentCardIndex
	if !slices.Contains(state.SkippedIndices, cur) {
		state.SkippedIndices = append(state.SkippedIndices, cur)
	}
	state.ShuffleCount++

	var fresh, skipped []int
	for i, a := range state.Answers {
		if a != nil || i == cur {
			continue
		}
		if slices.Contains(state.SkippedIndices, i) {
			skipped = append(skipped, i)
			continue
		}
		fresh = append(fresh, i)
	}

	switch {
	case len(fresh) > 0:
		state.CurrentCardIndex = fresh[rng.Intn(len(fresh))]
	case len(skipped) > 0:
		state.CurrentCardIndex = skipped[rng.Intn(len(skipped))]
	}
	return nil
}

// UseHint counts a hint and returns it: the card's short description
func UseHint(state *domain.GameState, game *domain.DailyGame) (string, error) {
	if state.IsComplete {
		return "", ErrGameComplete
	}
	state.HintsUsed++
	if state.CurrentCardIndex < 0 || state.CurrentCardIndex >= len(game.Cards) {
		return "", nil
	}
	return game.Cards[state.CurrentCardIndex].Description, nil
}

// Score grades every answered card against the ground truth
func Score(game *domain.DailyGame, state domain.GameState) domain.GameResult {
	res := domain.GameResult{
		DateKey:         game.DateKey,
		FeaturedArticle: game.FeaturedArticle.Title,
		Total:           len(game.Cards),
		HintsUsed:       state.HintsUsed,
		ShuffleCount:    state.ShuffleCount,
		Cards:           make([]domain.CardResult, 0, len(game.Cards)),
	}
	for i, card := range game.Cards {
		cr := domain.CardResult{Title: card.Title, IsLinked: card.IsLinked}
		if i < len(state.Answers) && state.Answers[i] != nil {
			cr.Answer = *state.Answers[i]
			cr.Correct = cr.Answer == card.IsLinked
		}
		if cr.Correct {
			res.Score++
		}
		res.Cards = append(res.Cards, cr)
	}
	return res
}

// nextUnanswered looks forward from the current card, wrapping around, for an unanswered
// card that was not skipped, then for a skipped one
func nextUnanswered(state *domain.GameState) (int, bool) {
	n := len(state.Answers)
	for _, allowSkipped := range []bool{false, true} {
		for step := 1; step <= n; step++ {
			i := (state.CurrentCardIndex + step) % n
			if state.Answers[i] != nil {
				continue
			}
			if !allowSkipped && slices.Contains(state.SkippedIndices, i) {
				continue
			}
			return i, true
		}
	}
	return 0, false
}
