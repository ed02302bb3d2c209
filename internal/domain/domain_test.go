package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SeeWhatSticks/task-mistress/internal/domain"
)

var now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestAssignmentLifecycle(t *testing.T) {
	p := domain.NewPlayer("42", 1)
	_, ok := p.Assignment(7)
	require.False(t, ok)

	a := p.AssignTask(7, "1", now)
	assert.False(t, a.Completed)
	assert.Nil(t, a.CompletionTime)
	assert.Equal(t, "1", a.AssignerID)

	a.MarkCompleted(now.Add(time.Hour))
	assert.True(t, a.Completed)
	require.NotNil(t, a.CompletionTime)

	a.AddVerifier("99")
	assert.Equal(t, []string{"99"}, a.Verifiers)
	assert.True(t, a.IsVerified(1))

	a.AddVerifier("99")
	assert.Equal(t, []string{"99", "99"}, a.Verifiers)
}

func TestReassignResetsProgress(t *testing.T) {
	p := domain.NewPlayer("42", 1)
	a := p.AssignTask(7, "1", now)
	a.MarkCompleted(now)
	a.AddVerifier("2")

	b := p.AssignTask(7, "3", now.Add(time.Minute))
	assert.False(t, b.Completed)
	assert.Empty(t, b.Verifiers)
	assert.Len(t, p.Assignments, 1)
}

func TestReopenStartsNewRound(t *testing.T) {
	a := &domain.Assignment{TaskID: 1}
	a.MarkCompleted(now)
	a.AddVerifier("5")
	a.Reopen()
	assert.False(t, a.Completed)
	assert.Nil(t, a.CompletionTime)
	assert.Equal(t, []string{"5"}, a.Verifiers)
	assert.Empty(t, a.RoundVerifiers())

	a.MarkCompleted(now)
	assert.False(t, a.IsVerified(1))
	a.AddVerifier("6")
	assert.Equal(t, []string{"5", "6"}, a.Verifiers)
	assert.Equal(t, []string{"6"}, a.RoundVerifiers())
	assert.True(t, a.IsVerified(1))
}

func TestVerifiedStaysVerified(t *testing.T) {
	a := &domain.Assignment{TaskID: 1}
	a.MarkCompleted(now)
	a.AddVerifier("5")
	a.MarkVerified(now)
	first := *a.VerifiedAt
	a.MarkVerified(now.Add(time.Hour))
	assert.Equal(t, first, *a.VerifiedAt)

	a.Reopen()
	assert.True(t, a.IsVerified(3))
}

func TestVerificationCountsDistinctVerifiers(t *testing.T) {
	a := &domain.Assignment{TaskID: 1}
	a.MarkCompleted(now)
	a.AddVerifier("5")
	a.AddVerifier("5")
	assert.False(t, a.IsVerified(2))
	a.AddVerifier("6")
	assert.True(t, a.IsVerified(2))
}

func TestLimits(t *testing.T) {
	p := domain.NewPlayer("1", 1)
	p.ToggleLimit("3")
	p.ToggleLimit("1")
	assert.Equal(t, []string{"1", "3"}, p.LimitList())
	p.ToggleLimit("3")
	assert.False(t, p.HasLimit("3"))

	p.UnsetLimits()
	once := p.LimitList()
	p.UnsetLimits()
	assert.Equal(t, once, p.LimitList())
	assert.Empty(t, p.LimitList())
}

func TestCreditsNeverNegative(t *testing.T) {
	p := domain.NewPlayer("1", -4)
	assert.Equal(t, 0, p.Credits)

	require.NoError(t, p.AddCredits(2))
	err := p.SpendCredits(3)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 2, p.Credits)

	require.ErrorIs(t, p.AddCredits(-1), domain.ErrValidation)
	require.ErrorIs(t, p.SpendCredits(-1), domain.ErrValidation)
	require.NoError(t, p.SpendCredits(2))
	assert.Equal(t, 0, p.Credits)
}

func TestBegCooldown(t *testing.T) {
	p := domain.NewPlayer("1", 1)
	assert.True(t, p.BegAllowed(now, time.Hour))
	p.StampBeg(now)
	assert.False(t, p.BegAllowed(now.Add(30*time.Minute), time.Hour))
	assert.True(t, p.BegAllowed(now.Add(time.Hour), time.Hour))
}

func TestOpenAssignmentsSorted(t *testing.T) {
	p := domain.NewPlayer("1", 1)
	p.AssignTask(9, "", now)
	p.AssignTask(2, "", now)
	done := p.AssignTask(5, "", now)
	done.MarkCompleted(now)
	done.AddVerifier("x")

	open := p.OpenAssignments(1)
	require.Len(t, open, 2)
	assert.Equal(t, 2, open[0].TaskID)
	assert.Equal(t, 9, open[1].TaskID)
}

func TestSeverity(t *testing.T) {
	task := domain.NewTask(1, "c", "text", "", now)
	_, err := task.Severity()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	require.NoError(t, task.AddRating("1", 5))
	require.NoError(t, task.AddRating("2", 3))
	sev, err := task.Severity()
	require.NoError(t, err)
	assert.Equal(t, "4.0/5", sev)

	require.NoError(t, task.AddRating("2", 4))
	sev, err = task.Severity()
	require.NoError(t, err)
	assert.Equal(t, "4.5/5", sev)

	require.ErrorIs(t, task.AddRating("3", 6), domain.ErrValidation)
}

func TestCompletionRate(t *testing.T) {
	task := domain.NewTask(1, "c", "text", "", now)
	_, err := task.CompletionRate()
	require.ErrorIs(t, err, domain.ErrValidation)

	task.Assigned()
	task.Assigned()
	task.Assigned()
	require.NoError(t, task.Completed())
	require.NoError(t, task.Completed())
	rate, err := task.CompletionRate()
	require.NoError(t, err)
	assert.Equal(t, "67%", rate)

	require.NoError(t, task.Completed())
	require.ErrorIs(t, task.Completed(), domain.ErrValidation)
	assert.Equal(t, 3, task.TotalCompletions)
}

func TestTaskCategories(t *testing.T) {
	task := domain.NewTask(1, "c", "text", "Named", now)
	task.ToggleCategory(4)
	task.ToggleCategory(2)
	assert.Equal(t, []int{2, 4}, task.CategoryList())
	task.ToggleCategory(4)
	assert.False(t, task.HasCategory(4))
	task.UnsetCategories()
	assert.Empty(t, task.CategoryList())
	assert.Equal(t, "Named", task.DisplayName())
	assert.Equal(t, "Task #3", domain.NewTask(3, "c", "t", "", now).DisplayName())
}
