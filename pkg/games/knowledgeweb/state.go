package knowledgeweb

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/umputun/wikidaily/pkg/domain"
)

// UnlimitedAttempts is the attempts counter of a new game, the game never runs out of attempts
const UnlimitedAttempts = 999

// score of a solved puzzle: full score on the first submission, less for every retry
const (
	maxScore     = 100
	retryPenalty = 15
	minScore     = 10
)

// errors of invalid moves
var (
	ErrGameComplete    = errors.New("puzzle is already solved")
	ErrUnknownPosition = errors.New("unknown position")
	ErrSlotLocked      = errors.New("connection is already solved")
	ErrTitleLocked     = errors.New("article already solves another connection")
	ErrNotInPool       = errors.New("article is not in the answer pool")
	ErrIncomplete      = errors.New("all four connections must be filled")
)

// ValidateSubmission grades submitted connectors slot by slot. A connector is correct only
// when it equals the puzzle's connector exactly, case included.
func ValidateSubmission(p *domain.KnowledgeWebPuzzle, submitted [4]string) [4]domain.ConnectionResult {
	var res [4]domain.ConnectionResult
	for i, conn := range p.Connections {
		res[i] = domain.ConnectionResult{
			Position:  domain.Positions[i],
			Submitted: submitted[i],
			IsCorrect: submitted[i] != "" && submitted[i] == conn.ConnectingArticle,
		}
	}
	return res
}

// NewState starts the game of a puzzle
func NewState(puzzleID string) domain.KnowledgeWebGameState {
	return domain.KnowledgeWebGameState{PuzzleID: puzzleID, Submissions: []domain.Submission{}, AttemptsRemaining: UnlimitedAttempts}
}

// PositionIndex returns the slot index of a layout position
func PositionIndex(position string) (int, error) {
	idx := slices.Index(domain.Positions[:], position)
	if idx < 0 {
		return 0, fmt.Errorf("%w %q", ErrUnknownPosition, position)
	}
	return idx, nil
}

// Locked reports the slots solved by any earlier submission
func Locked(st domain.KnowledgeWebGameState) [4]bool {
	var res [4]bool
	for _, sub := range st.Submissions {
		for i, r := range sub.Results {
			if r.IsCorrect {
				res[i] = true
			}
		}
	}
	return res
}

// Place puts a connector from the answer pool into a slot, an empty title clears the slot.
// A title already placed in another open slot moves to the new one.
func Place(st *domain.KnowledgeWebGameState, p *domain.KnowledgeWebPuzzle, position, title string) error {
	if st.IsComplete {
		return ErrGameComplete
	}
	idx, err := PositionIndex(position)
	if err != nil {
		return err
	}
	locked := Locked(*st)
	if locked[idx] {
		return ErrSlotLocked
	}
	if title == "" {
		st.CurrentConnections[idx] = ""
		return nil
	}
	if !slices.Contains(p.AnswerPool, title) {
		return fmt.Errorf("%w: %q", ErrNotInPool, title)
	}
	for i, placed := range st.CurrentConnections {
		if placed != title || i == idx {
			continue
		}
		if locked[i] {
			return ErrTitleLocked
		}
		st.CurrentConnections[i] = ""
	}
	st.CurrentConnections[idx] = title
	return nil
}

// Submit grades the current connections. Correct ones stay locked in place, wrong ones are
// cleared for another try. The game completes when all four are correct.
func Submit(st *domain.KnowledgeWebGameState, p *domain.KnowledgeWebPuzzle, now time.Time) (domain.Submission, error) {
	if st.IsComplete {
		return domain.Submission{}, ErrGameComplete
	}
	if slices.Contains(st.CurrentConnections[:], "") {
		return domain.Submission{}, ErrIncomplete
	}

	sub := domain.Submission{Results: ValidateSubmission(p, st.CurrentConnections), AllCorrect: true, Timestamp: now.UnixMilli()}
	for i, r := range sub.Results {
		if !r.IsCorrect {
			sub.AllCorrect = false
			st.CurrentConnections[i] = ""
		}
	}
	st.Submissions = append(st.Submissions, sub)
	if st.AttemptsRemaining > 0 {
		st.AttemptsRemaining--
	}

	if sub.AllCorrect {
		st.IsComplete = true
		st.PerfectFirstAttempt = len(st.Submissions) == 1
		st.FinalScore = max(minScore, maxScore-retryPenalty*(len(st.Submissions)-1))
	}
	return sub, nil
}
