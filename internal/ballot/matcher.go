package ballot

import (
	"context"
	"fmt"
	"math/rand"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
)

// Mode selects how candidates are ordered and rooms are picked.
type Mode string

const (
	ModePriorityBased Mode = "priority_based"
	ModeRandom        Mode = "random"
)

// Candidate is one student entering the matcher, with their application (nil
// for bulk assignment of students who never applied) and computed score.
type Candidate struct {
	Student     model.Student
	Application *model.HostelApplication
	Score       float64
}

// Assignment is one successful match.
type Assignment struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	HostelID    string  `json:"hostel_id"`
	HostelName  string  `json:"hostel_name"`
	RoomID      string  `json:"room_id"`
	RoomNumber  string  `json:"room_number"`
	BedNumber   int     `json:"bed_number"`
	Score       float64 `json:"-"`
}

// Failure is one candidate the matcher could not place, with a
// human-readable reason.
type Failure struct {
	StudentID   string      `json:"student_id"`
	StudentName string      `json:"student_name"`
	Reason      string      `json:"reason"`
	Code        apperr.Code `json:"-"`
}

// Committer persists one candidate's match as a single atomic unit. The
// matcher treats a commit error as a per-candidate failure and moves on.
type Committer interface {
	HasLiveAllocation(ctx context.Context, studentID string) (bool, error)
	Commit(ctx context.Context, cand Candidate, asg Assignment) error
}

// Matcher walks an ordered candidate list against per-gender availability
// indexes. Candidates must already be sorted; the matcher never reorders
// rooms except through the occupancy updates it performs itself.
type Matcher struct {
	Indexes   map[model.Gender]*Index
	Mode      Mode
	Rng       *rand.Rand
	Committer Committer

	// ChoiceFallbackReasons reports the more specific "fallback to first
	// choice failed" reason when a candidate's first choice was present but
	// the pool is exhausted. Used by bulk auto-assign; ballot runs report the
	// plain per-gender reason.
	ChoiceFallbackReasons bool
}

// Match processes candidates in order. One candidate's failure never aborts
// the batch; both lists are always returned.
func (m *Matcher) Match(ctx context.Context, candidates []Candidate) ([]Assignment, []Failure) {
	var assignments []Assignment
	var failures []Failure

	for _, cand := range candidates {
		asg, fail := m.place(ctx, cand)
		if fail != nil {
			failures = append(failures, *fail)
			continue
		}
		assignments = append(assignments, *asg)
	}
	return assignments, failures
}

func (m *Matcher) place(ctx context.Context, cand Candidate) (*Assignment, *Failure) {
	name := cand.Student.FullName()

	// Re-entrancy guard: never hand a second live bed to the same student.
	live, err := m.Committer.HasLiveAllocation(ctx, cand.Student.ID)
	if err != nil {
		return nil, &Failure{
			StudentID:   cand.Student.ID,
			StudentName: name,
			Reason:      fmt.Sprintf("DB error: %v", err),
			Code:        apperr.CodeDB,
		}
	}
	if live {
		return nil, &Failure{
			StudentID:   cand.Student.ID,
			StudentName: name,
			Reason:      "Already allocated",
			Code:        apperr.CodeAlreadyAllocated,
		}
	}

	index := m.Indexes[cand.Student.Gender]
	var slot *RoomSlot
	if index != nil {
		slot = m.pickRoom(index, cand)
	}
	if slot == nil {
		return nil, &Failure{
			StudentID:   cand.Student.ID,
			StudentName: name,
			Reason:      m.noRoomReason(cand),
			Code:        apperr.CodeRoomFull,
		}
	}

	bed := index.Reserve(slot)
	asg := Assignment{
		StudentID:   cand.Student.ID,
		StudentName: name,
		HostelID:    slot.HostelID,
		HostelName:  slot.HostelName,
		RoomID:      slot.RoomID,
		RoomNumber:  slot.RoomNumber,
		BedNumber:   bed,
		Score:       cand.Score,
	}

	if err := m.Committer.Commit(ctx, cand, asg); err != nil {
		index.Release(slot)
		return nil, &Failure{
			StudentID:   cand.Student.ID,
			StudentName: name,
			Reason:      fmt.Sprintf("DB error: %v", err),
			Code:        apperr.CodeOf(err),
		}
	}
	return &asg, nil
}

// pickRoom applies the mode's room selection: random draw, or ranked hostel
// preferences with a fall back to any gender-matching room.
func (m *Matcher) pickRoom(index *Index, cand Candidate) *RoomSlot {
	if m.Mode == ModeRandom {
		return index.RandomFree(m.Rng)
	}
	if cand.Application != nil {
		for _, hostelID := range cand.Application.ChoiceHostelIDs() {
			if slot := index.FirstFreeInHostel(hostelID); slot != nil {
				return slot
			}
		}
	}
	return index.FirstFree()
}

func (m *Matcher) noRoomReason(cand Candidate) string {
	if m.ChoiceFallbackReasons && cand.Application != nil && cand.Application.FirstChoiceHostelID != nil {
		return "No available rooms. Fallback to choice 1 failed (full)."
	}
	return fmt.Sprintf("No available rooms for %s students", cand.Student.Gender)
}
