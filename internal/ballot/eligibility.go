package ballot

import (
	"context"
	"time"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

// Checker validates that a student may submit an application. All checks run
// before any mutation; the checker has no side effects.
type Checker struct {
	Store store.Store
}

// Check verifies the student, the session window, the one-application rule,
// the single-live-allocation rule, and the gender match of every chosen
// hostel. The first violated rule is returned.
func (c *Checker) Check(ctx context.Context, student *model.Student, session *model.AcademicSession, hostelIDs []string, now time.Time) error {
	if !student.IsEligible || !student.IsActive {
		return apperr.BadRequest(apperr.CodeNotEligible, "you are not eligible to apply")
	}

	if !session.ApplicationWindowOpen(now) {
		return apperr.BadRequest(apperr.CodePeriodClosed, "application period is closed")
	}

	existing, err := c.Store.ApplicationFor(ctx, student.ID, session.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperr.Conflict(apperr.CodeAlreadyApplied, "you have already applied for this session")
	}

	live, err := c.Store.HasLiveAllocation(ctx, student.ID, session.ID)
	if err != nil {
		return err
	}
	if live {
		return apperr.Conflict(apperr.CodeAlreadyAllocated, "you already have an allocation for this session")
	}

	if len(hostelIDs) == 0 {
		return apperr.BadRequest(apperr.CodeInvalidPreference, "at least one hostel choice is required")
	}

	// A hostel listed as more than one choice is harmless; only unknown ids
	// are rejected.
	unique := make(map[string]struct{}, len(hostelIDs))
	for _, id := range hostelIDs {
		unique[id] = struct{}{}
	}
	hostels, err := c.Store.HostelsByIDs(ctx, hostelIDs)
	if err != nil {
		return err
	}
	if len(hostels) != len(unique) {
		return apperr.BadRequest(apperr.CodeInvalidPreference, "invalid hostel selection")
	}
	for _, h := range hostels {
		if !h.IsActive {
			return apperr.BadRequest(apperr.CodeInvalidPreference, "selected hostel is not active")
		}
		if h.Gender != student.Gender {
			return apperr.BadRequest(apperr.CodeGenderMismatch, "hostel selection does not match your gender")
		}
	}
	return nil
}
