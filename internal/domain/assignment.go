package domain

import "time"

// Assignment records one task undertaken by one player.
type Assignment struct {
	TaskID         int        `json:"task_id"`
	AssignerID     string     `json:"assigner_id,omitempty"`
	AssignmentTime time.Time  `json:"assignment_time"`
	Completed      bool       `json:"completed"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
	// Verifiers only ever grows. Approvals before RoundStart belong to
	// rejected rounds.
	Verifiers  []string   `json:"verifiers"`
	RoundStart int        `json:"round_start,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// MarkCompleted stamps the completion time. Calling it again re-stamps.
func (a *Assignment) MarkCompleted(now time.Time) {
	t := now.UTC()
	a.Completed = true
	a.CompletionTime = &t
}

// AddVerifier appends without deduplication.
func (a *Assignment) AddVerifier(playerID string) {
	a.Verifiers = append(a.Verifiers, playerID)
}

// MarkVerified records the moment the approval threshold was first reached.
func (a *Assignment) MarkVerified(now time.Time) {
	if a.VerifiedAt != nil {
		return
	}
	t := now.UTC()
	a.VerifiedAt = &t
}

// Reopen sends a rejected completion back to the assignee. Approvals given so
// far stay on record but stop counting.
func (a *Assignment) Reopen() {
	a.Completed = false
	a.CompletionTime = nil
	a.RoundStart = len(a.Verifiers)
}

// RoundVerifiers returns the approvals of the current completion round.
func (a *Assignment) RoundVerifiers() []string {
	if a.RoundStart < 0 || a.RoundStart > len(a.Verifiers) {
		return a.Verifiers
	}
	return a.Verifiers[a.RoundStart:]
}

// IsVerified reports whether the assignment was verified already, or whether
// its completion has at least required distinct verifiers this round.
func (a *Assignment) IsVerified(required int) bool {
	if a.VerifiedAt != nil {
		return true
	}
	if required < 1 {
		required = 1
	}
	if !a.Completed {
		return false
	}
	distinct := map[string]struct{}{}
	for _, v := range a.RoundVerifiers() {
		distinct[v] = struct{}{}
	}
	return len(distinct) >= required
}
