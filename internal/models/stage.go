package models

import "strings"

// Stage is a point in the hiring pipeline.
type Stage string

const (
	StageApplied    Stage = "applied"
	StageScreening  Stage = "screening"
	StageInterview1 Stage = "interview1"
	StageInterview2 Stage = "interview2"
	StageInterview3 Stage = "interview3"
	StageInterview4 Stage = "interview4"
	StageInterview5 Stage = "interview5"
	StageInterview6 Stage = "interview6"
	StageOffer      Stage = "offer"
	StageRejected   Stage = "rejected"
)

// StageOrder is the canonical pipeline order. Rejected is terminal and sorts last.
var StageOrder = []Stage{
	StageApplied,
	StageScreening,
	StageInterview1,
	StageInterview2,
	StageInterview3,
	StageInterview4,
	StageInterview5,
	StageInterview6,
	StageOffer,
	StageRejected,
}

var stageAliases = map[string]Stage{
	"interview": StageInterview1,
}

// CanonicalStage maps any raw stage name onto the pipeline. It never fails:
// unknown input becomes StageApplied.
func CanonicalStage(raw string) Stage {
	s := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := stageAliases[s]; ok {
		return alias
	}
	for _, st := range StageOrder {
		if string(st) == s {
			return st
		}
	}
	return StageApplied
}

// IsKnownStage reports whether raw names a stage (aliases included).
func IsKnownStage(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := stageAliases[s]; ok {
		return true
	}
	for _, st := range StageOrder {
		if string(st) == s {
			return true
		}
	}
	return false
}

// Index returns the stage's position in StageOrder, or -1.
func (s Stage) Index() int {
	for i, st := range StageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) IsTerminal() bool {
	return s == StageOffer || s == StageRejected
}

func (s Stage) String() string { return string(s) }

// NextStage decides where a job moves when a new email arrives. Rejected is
// absorbing; otherwise a job never moves backwards. Without a usable
// detection the job advances one step and stops at offer.
func NextStage(current, detected string) Stage {
	cur := CanonicalStage(current)
	if cur == StageRejected {
		return cur
	}
	if IsKnownStage(detected) {
		det := CanonicalStage(detected)
		if det == StageRejected || det.Index() > cur.Index() {
			return det
		}
		return cur
	}
	if cur.IsTerminal() {
		return cur
	}
	return StageOrder[cur.Index()+1]
}
