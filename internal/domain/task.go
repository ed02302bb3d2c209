package domain

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"
)

type Task struct {
	ID               int            `json:"key"`
	CreatorID        string         `json:"creator_id"`
	CreationTime     time.Time      `json:"creation_time"`
	Text             string         `json:"task_text"`
	Name             string         `json:"task_name,omitempty"`
	Categories       []int          `json:"categories"`
	Ratings          map[string]int `json:"ratings"`
	TotalAssignments int            `json:"total_assignments"`
	TotalCompletions int            `json:"total_completions"`
	Deleted          bool           `json:"deleted,omitempty"`
}

func NewTask(id int, creatorID, text, name string, now time.Time) *Task {
	return &Task{
		ID:           id,
		CreatorID:    creatorID,
		CreationTime: now.UTC(),
		Text:         text,
		Name:         name,
		Categories:   []int{},
		Ratings:      map[string]int{},
	}
}

func (t *Task) ToggleCategory(key int) {
	if i := slices.Index(t.Categories, key); i >= 0 {
		t.Categories = slices.Delete(t.Categories, i, i+1)
		return
	}
	t.Categories = append(t.Categories, key)
	sort.Ints(t.Categories)
}

func (t *Task) UnsetCategories() {
	t.Categories = []int{}
}

func (t *Task) HasCategory(key int) bool {
	return slices.Contains(t.Categories, key)
}

func (t *Task) CategoryList() []int {
	return slices.Clone(t.Categories)
}

// AddRating records one rating per player; the latest rating wins.
func (t *Task) AddRating(playerID string, rating int) error {
	if rating < 1 || rating > 5 {
		return invalid("rating", "must be between 1 and 5, got %d", rating)
	}
	if t.Ratings == nil {
		t.Ratings = map[string]int{}
	}
	t.Ratings[playerID] = rating
	return nil
}

func (t *Task) Assigned() {
	t.TotalAssignments++
}

func (t *Task) Completed() error {
	if t.TotalCompletions >= t.TotalAssignments {
		return invalid("total_completions", "task %d has %d completions for %d assignments", t.ID, t.TotalCompletions, t.TotalAssignments)
	}
	t.TotalCompletions++
	return nil
}

// Severity is the mean rating rounded to one decimal, formatted as "X/5".
func (t *Task) Severity() (string, error) {
	if len(t.Ratings) == 0 {
		return "", invalid("ratings", "task %d has no ratings", t.ID)
	}
	sum := 0
	for _, r := range t.Ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(t.Ratings))
	return fmt.Sprintf("%.1f/5", math.Round(mean*10)/10), nil
}

// CompletionRate is completions over assignments rounded to two decimals,
// formatted as a whole percentage.
func (t *Task) CompletionRate() (string, error) {
	if t.TotalAssignments == 0 {
		return "", invalid("total_assignments", "task %d has never been assigned", t.ID)
	}
	ratio := math.Round(float64(t.TotalCompletions)/float64(t.TotalAssignments)*100) / 100
	return fmt.Sprintf("%d%%", int(math.Round(ratio*100))), nil
}

func (t *Task) MarkDeleted() {
	t.Deleted = true
}

func (t *Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("Task #%d", t.ID)
}
