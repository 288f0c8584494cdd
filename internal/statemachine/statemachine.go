// Package statemachine decides which lifecycle transitions a research session
// may take. It never mutates a session; the orchestrator applies transitions.
package statemachine

import (
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// Guard evaluates whether an edge may be taken for the given session snapshot.
type Guard func(s *models.Session) bool

type edge struct {
	from models.SessionStatus
	to   models.SessionStatus
}

type transition struct {
	edge
	guard Guard
}

// transitions is kept in progression order; NextState relies on it.
var transitions = []transition{
	{edge{models.StatusCreated, models.StatusAwaitingRefinements}, always},
	// A provider that answers the initial prompt directly skips refinement.
	// Listed after the edge above, so NextState from CREATED stays AWAITING.
	{edge{models.StatusCreated, models.StatusRunningResearch}, noRefinements},
	{edge{models.StatusAwaitingRefinements, models.StatusRefinementsInProgress}, hasRefinements},
	{edge{models.StatusRefinementsInProgress, models.StatusRefinementsComplete}, allRefinementsAnswered},
	{edge{models.StatusRefinementsComplete, models.StatusRunningResearch}, hasRefinedPrompt},
	{edge{models.StatusRunningResearch, models.StatusCompleted}, hasBothResults},
}

var table = func() map[edge]Guard {
	m := make(map[edge]Guard, len(transitions))
	for _, t := range transitions {
		m[t.edge] = t.guard
	}
	return m
}()

func always(*models.Session) bool { return true }

func noRefinements(s *models.Session) bool {
	return len(s.Refinements) == 0
}

func hasRefinements(s *models.Session) bool {
	return len(s.Refinements) > 0
}

func allRefinementsAnswered(s *models.Session) bool {
	if len(s.Refinements) == 0 {
		return false
	}
	for _, r := range s.Refinements {
		if !r.Answered() {
			return false
		}
	}
	return true
}

func hasRefinedPrompt(s *models.Session) bool {
	return s.HasRefinedPrompt()
}

func hasBothResults(s *models.Session) bool {
	return s.HasResults()
}

// CanTransition reports whether moving from -> to is legal for the snapshot.
// Between known statuses, self-transitions and transitions to FAILED are
// always legal.
func CanTransition(from, to models.SessionStatus, s *models.Session) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if to == models.StatusFailed {
		return true
	}
	guard, ok := table[edge{from, to}]
	if !ok {
		return false
	}
	return guard(s)
}

// NextStates returns every status reachable from current right now, including
// current itself and FAILED (unless current already is FAILED).
func NextStates(current models.SessionStatus, s *models.Session) []models.SessionStatus {
	states := []models.SessionStatus{current}
	if current != models.StatusFailed {
		states = append(states, models.StatusFailed)
	}
	for _, t := range transitions {
		if t.from == current && t.guard(s) {
			states = append(states, t.to)
		}
	}
	return states
}

// NextState returns the canonical forward state for the session, if any
// forward edge is currently satisfied. FAILED is never derived.
func NextState(s *models.Session) (models.SessionStatus, bool) {
	for _, candidate := range NextStates(s.Status, s) {
		if candidate == s.Status || candidate == models.StatusFailed {
			continue
		}
		return candidate, true
	}
	return "", false
}

// IsTerminal reports whether no further transitions are expected.
func IsTerminal(status models.SessionStatus) bool {
	return status == models.StatusCompleted || status == models.StatusFailed
}

