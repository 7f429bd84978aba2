package ballot

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

// fakeCommitter records commits in memory and can simulate live allocations
// and commit failures per student.
type fakeCommitter struct {
	live      map[string]bool
	failFor   map[string]error
	committed []Assignment
}

func (f *fakeCommitter) HasLiveAllocation(_ context.Context, studentID string) (bool, error) {
	return f.live[studentID], nil
}

func (f *fakeCommitter) Commit(_ context.Context, _ Candidate, asg Assignment) error {
	if err := f.failFor[asg.StudentID]; err != nil {
		return err
	}
	f.committed = append(f.committed, asg)
	return nil
}

func maleStudent(id string) model.Student {
	return model.Student{ID: id, FirstName: "Ade", LastName: id, Gender: model.GenderMale, Level: 200}
}

func appWithChoices(choices ...string) *model.HostelApplication {
	app := &model.HostelApplication{}
	if len(choices) > 0 {
		app.FirstChoiceHostelID = &choices[0]
	}
	if len(choices) > 1 {
		app.SecondChoiceHostelID = &choices[1]
	}
	if len(choices) > 2 {
		app.ThirdChoiceHostelID = &choices[2]
	}
	return app
}

func newTestMatcher(committer Committer) *Matcher {
	index := NewIndex([]store.RoomCandidate{
		{RoomID: "r1", RoomNumber: "101", HostelID: "h1", HostelName: "Alpha Hall", Capacity: 1},
		{RoomID: "r2", RoomNumber: "201", HostelID: "h2", HostelName: "Beta Hall", Capacity: 1},
	})
	return &Matcher{
		Indexes:   map[model.Gender]*Index{model.GenderMale: index},
		Mode:      ModePriorityBased,
		Rng:       rand.New(rand.NewSource(1)),
		Committer: committer,
	}
}

func TestMatcherHonorsFirstChoice(t *testing.T) {
	fc := &fakeCommitter{}
	m := newTestMatcher(fc)

	assignments, failures := m.Match(context.Background(), []Candidate{
		{Student: maleStudent("s1"), Application: appWithChoices("h2")},
	})

	require.Len(t, assignments, 1)
	assert.Empty(t, failures)
	assert.Equal(t, "h2", assignments[0].HostelID)
	assert.Equal(t, 1, assignments[0].BedNumber)
	assert.Len(t, fc.committed, 1)
}

func TestMatcherFallsBackThroughChoices(t *testing.T) {
	fc := &fakeCommitter{}
	m := newTestMatcher(fc)

	// s1 takes the only bed in h2; s2 listed h2 first and must fall back to
	// the second choice.
	assignments, failures := m.Match(context.Background(), []Candidate{
		{Student: maleStudent("s1"), Application: appWithChoices("h2")},
		{Student: maleStudent("s2"), Application: appWithChoices("h2", "h1")},
	})

	require.Len(t, assignments, 2)
	assert.Empty(t, failures)
	assert.Equal(t, "h2", assignments[0].HostelID)
	assert.Equal(t, "h1", assignments[1].HostelID)
}

func TestMatcherFallsBackToAnyRoom(t *testing.T) {
	fc := &fakeCommitter{}
	m := newTestMatcher(fc)

	// No choice listed at all: any free gender-matching room will do.
	assignments, failures := m.Match(context.Background(), []Candidate{
		{Student: maleStudent("s1"), Application: appWithChoices()},
	})

	require.Len(t, assignments, 1)
	assert.Empty(t, failures)
	assert.Equal(t, "h1", assignments[0].HostelID)
}

func TestMatcherExhaustedPool(t *testing.T) {
	fc := &fakeCommitter{}
	m := newTestMatcher(fc)

	candidates := []Candidate{
		{Student: maleStudent("s1"), Application: appWithChoices("h1")},
		{Student: maleStudent("s2"), Application: appWithChoices("h1")},
		{Student: maleStudent("s3"), Application: appWithChoices("h1")},
	}
	assignments, failures := m.Match(context.Background(), candidates)

	assert.Len(t, assignments, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, "s3", failures[0].StudentID)
	assert.Equal(t, apperr.CodeRoomFull, failures[0].Code)
	assert.Equal(t, "No available rooms for male students", failures[0].Reason)
}

func TestMatcherChoiceFallbackReason(t *testing.T) {
	fc := &fakeCommitter{}
	m := newTestMatcher(fc)
	m.ChoiceFallbackReasons = true

	candidates := []Candidate{
		{Student: maleStudent("s1"), Application: appWithChoices("h1")},
		{Student: maleStudent("s2"), Application: appWithChoices("h1")},
		{Student: maleStudent("s3"), Application: appWithChoices("h1")},
	}
	_, failures := m.Match(context.Background(), candidates)

	require.Len(t, failures, 1)
	assert.Equal(t, "No available rooms. Fallback to choice 1 failed (full).", failures[0].Reason)
}

func TestMatcherSkipsAlreadyAllocated(t *testing.T) {
	fc := &fakeCommitter{live: map[string]bool{"s1": true}}
	m := newTestMatcher(fc)

	assignments, failures := m.Match(context.Background(), []Candidate{
		{Student: maleStudent("s1"), Application: appWithChoices("h1")},
		{Student: maleStudent("s2"), Application: appWithChoices("h1")},
	})

	require.Len(t, failures, 1)
	assert.Equal(t, "s1", failures[0].StudentID)
	assert.Equal(t, apperr.CodeAlreadyAllocated, failures[0].Code)

	// The bed s1 would have taken goes to s2.
	require.Len(t, assignments, 1)
	assert.Equal(t, "s2", assignments[0].StudentID)
	assert.Equal(t, "h1", assignments[0].HostelID)
}

func TestMatcherCommitFailureReleasesBed(t *testing.T) {
	fc := &fakeCommitter{failFor: map[string]error{"s1": errors.New("connection reset")}}
	m := newTestMatcher(fc)

	assignments, failures := m.Match(context.Background(), []Candidate{
		{Student: maleStudent("s1"), Application: appWithChoices("h1")},
		{Student: maleStudent("s2"), Application: appWithChoices("h1")},
	})

	require.Len(t, failures, 1)
	assert.Equal(t, "s1", failures[0].StudentID)
	assert.Contains(t, failures[0].Reason, "DB error")

	// The failed commit must not consume the bed.
	require.Len(t, assignments, 1)
	assert.Equal(t, "s2", assignments[0].StudentID)
	assert.Equal(t, 1, assignments[0].BedNumber)
}

func TestMatcherNoIndexForGender(t *testing.T) {
	fc := &fakeCommitter{}
	m := newTestMatcher(fc)

	female := model.Student{ID: "f1", FirstName: "Bola", LastName: "f1", Gender: model.GenderFemale, Level: 100}
	assignments, failures := m.Match(context.Background(), []Candidate{
		{Student: female, Application: appWithChoices("h1")},
	})

	assert.Empty(t, assignments)
	require.Len(t, failures, 1)
	assert.Equal(t, "No available rooms for female students", failures[0].Reason)
}

func TestMatcherRandomModeFillsEveryBed(t *testing.T) {
	fc := &fakeCommitter{}
	index := NewIndex([]store.RoomCandidate{
		{RoomID: "r1", RoomNumber: "101", HostelID: "h1", HostelName: "Alpha Hall", Capacity: 2},
		{RoomID: "r2", RoomNumber: "102", HostelID: "h1", HostelName: "Alpha Hall", Capacity: 2},
	})
	m := &Matcher{
		Indexes:   map[model.Gender]*Index{model.GenderMale: index},
		Mode:      ModeRandom,
		Rng:       rand.New(rand.NewSource(42)),
		Committer: fc,
	}

	var candidates []Candidate
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		candidates = append(candidates, Candidate{Student: maleStudent(id)})
	}
	assignments, failures := m.Match(context.Background(), candidates)

	assert.Len(t, assignments, 4)
	assert.Empty(t, failures)
	assert.Equal(t, 0, index.FreeBeds())
}
