package domain

import (
	"slices"
	"sort"
	"time"
)

type Player struct {
	ID            string              `json:"key"`
	Available     bool                `json:"available"`
	Limits        []string            `json:"limits"`
	Assignments   map[int]*Assignment `json:"assignments"`
	LastBegTime   *time.Time          `json:"last_beg_time,omitempty"`
	LastTreatTime *time.Time          `json:"last_treat_time,omitempty"`
	Credits       int                 `json:"credits"`
}

func NewPlayer(id string, credits int) *Player {
	if credits < 0 {
		credits = 0
	}
	return &Player{
		ID:          id,
		Limits:      []string{},
		Assignments: map[int]*Assignment{},
		Credits:     credits,
	}
}

// ToggleLimit flips membership of id in the limit set.
func (p *Player) ToggleLimit(id string) {
	if i := slices.Index(p.Limits, id); i >= 0 {
		p.Limits = slices.Delete(p.Limits, i, i+1)
		return
	}
	p.Limits = append(p.Limits, id)
	sort.Strings(p.Limits)
}

func (p *Player) UnsetLimits() {
	p.Limits = []string{}
}

func (p *Player) HasLimit(id string) bool {
	return slices.Contains(p.Limits, id)
}

func (p *Player) LimitList() []string {
	return slices.Clone(p.Limits)
}

// AssignTask creates or overwrites the assignment for taskID, resetting progress.
func (p *Player) AssignTask(taskID int, assignerID string, now time.Time) *Assignment {
	if p.Assignments == nil {
		p.Assignments = map[int]*Assignment{}
	}
	a := &Assignment{
		TaskID:         taskID,
		AssignerID:     assignerID,
		AssignmentTime: now.UTC(),
		Verifiers:      []string{},
	}
	p.Assignments[taskID] = a
	return a
}

func (p *Player) ClearAssignments() {
	p.Assignments = map[int]*Assignment{}
}

func (p *Player) Assignment(taskID int) (*Assignment, bool) {
	a, ok := p.Assignments[taskID]
	return a, ok
}

// RemoveAssignment drops the assignment for taskID, reporting whether one existed.
func (p *Player) RemoveAssignment(taskID int) bool {
	if _, ok := p.Assignments[taskID]; !ok {
		return false
	}
	delete(p.Assignments, taskID)
	return true
}

// OpenAssignments returns unverified assignments ordered by task id.
func (p *Player) OpenAssignments(required int) []*Assignment {
	var out []*Assignment
	for _, a := range p.Assignments {
		if !a.IsVerified(required) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

func (p *Player) AddCredits(n int) error {
	if n < 0 {
		return invalid("credits", "cannot add a negative amount (%d)", n)
	}
	p.Credits += n
	return nil
}

func (p *Player) SpendCredits(n int) error {
	if n < 0 {
		return invalid("credits", "cannot spend a negative amount (%d)", n)
	}
	if n > p.Credits {
		return invalid("credits", "insufficient credits: have %d, need %d", p.Credits, n)
	}
	p.Credits -= n
	return nil
}

// BegAllowed reports whether cooldown has elapsed since the last beg.
func (p *Player) BegAllowed(now time.Time, cooldown time.Duration) bool {
	if p.LastBegTime == nil || cooldown <= 0 {
		return true
	}
	return !now.Before(p.LastBegTime.Add(cooldown))
}

func (p *Player) StampBeg(now time.Time) {
	t := now.UTC()
	p.LastBegTime = &t
}
