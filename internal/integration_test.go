package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/ballot"
	"hostel-allocation-backend/internal/db"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := testDB.DB()
		sqlDB.Close()
	})

	require.NoError(t, db.Migrate(testDB))
	return store.NewGormStore(testDB)
}

func seedSession(t *testing.T, s store.Store) *model.AcademicSession {
	now := time.Now().UTC()
	session := &model.AcademicSession{
		Name:                 "2026/2027",
		StartDate:            now.AddDate(0, -1, 0),
		EndDate:              now.AddDate(0, 8, 0),
		ApplicationStartDate: now.AddDate(0, 0, -14),
		ApplicationEndDate:   now.AddDate(0, 0, 14),
		IsActive:             true,
	}
	require.NoError(t, s.SaveSession(context.Background(), session))
	return session
}

// seedMaleHostel creates one male hostel with two single-bed rooms.
func seedMaleHostel(t *testing.T, s store.Store) (*model.Hostel, []model.Room) {
	hostel := &model.Hostel{Name: "Kongi Hall", Gender: model.GenderMale, TotalCapacity: 2, IsActive: true}
	require.NoError(t, s.DB().Create(hostel).Error)

	rooms := []model.Room{
		{HostelID: hostel.ID, RoomNumber: "101", Capacity: 1, RoomType: "standard", IsAvailable: true},
		{HostelID: hostel.ID, RoomNumber: "102", Capacity: 1, RoomType: "standard", IsAvailable: true},
	}
	for i := range rooms {
		require.NoError(t, s.DB().Create(&rooms[i]).Error)
	}
	return hostel, rooms
}

func seedVerifiedApplicant(t *testing.T, s store.Store, sessionID, hostelID, matric string, verifiedDaysAgo int) *model.Student {
	student := &model.Student{
		MatricNumber: matric,
		FirstName:    "Test",
		LastName:     matric,
		Gender:       model.GenderMale,
		Level:        200,
		IsEligible:   true,
		IsActive:     true,
	}
	require.NoError(t, s.DB().Create(student).Error)

	verifiedAt := time.Now().UTC().AddDate(0, 0, -verifiedDaysAgo)
	app := &model.HostelApplication{
		StudentID:           student.ID,
		SessionID:           sessionID,
		FirstChoiceHostelID: &hostelID,
		PaymentVerified:     true,
		PaymentVerifiedAt:   &verifiedAt,
		Status:              model.AppStatusPaymentVerified,
	}
	require.NoError(t, s.DB().Create(app).Error)
	return student
}

// TestBallotLifecycle walks the whole ballot flow: three verified male
// applicants compete for two single-bed rooms, the run is auto-approved, a
// re-run places nobody, and a reversal frees every bed.
func TestBallotLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := ballot.NewService(s, nil)

	session := seedSession(t, s)
	hostel, rooms := seedMaleHostel(t, s)

	// Later verification scores higher, so m3 (verified 60 days ago) is the
	// candidate the pool cannot hold.
	seedVerifiedApplicant(t, s, session.ID, hostel.ID, "M1", 1)
	seedVerifiedApplicant(t, s, session.ID, hostel.ID, "M2", 5)
	m3 := seedVerifiedApplicant(t, s, session.ID, hostel.ID, "M3", 60)

	result, err := svc.Run(ctx, session.ID, "admin-1")
	require.NoError(t, err)

	assert.Len(t, result.Assignments, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, m3.ID, result.Failures[0].StudentID)
	assert.Equal(t, "No available rooms for male students", result.Failures[0].Reason)

	// Auto-approval: the run record is approved with final counts.
	run, err := s.BallotRunByID(ctx, result.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusApproved, run.Status)
	assert.Equal(t, 3, run.TotalApplicants)
	assert.Equal(t, 3, run.TotalVerified)
	assert.Equal(t, 2, run.TotalSpaces)
	assert.Equal(t, 2, run.TotalAllocated)
	assert.Equal(t, 1, run.TotalUnallocated)
	assert.NotNil(t, run.ApprovedAt)

	// Winners hold allocated applications; the loser stays in the pool as
	// not_allocated.
	var statuses []string
	require.NoError(t, s.DB().Model(&model.HostelApplication{}).
		Where("session_id = ?", session.ID).
		Order("status ASC").Pluck("status", &statuses).Error)
	assert.Equal(t, []string{"allocated", "allocated", "not_allocated"}, statuses)

	// Occupancy counters reflect the two committed beds.
	var freshHostel model.Hostel
	require.NoError(t, s.DB().First(&freshHostel, "id = ?", hostel.ID).Error)
	assert.Equal(t, 2, freshHostel.CurrentOccupancy)
	for _, r := range rooms {
		var room model.Room
		require.NoError(t, s.DB().First(&room, "id = ?", r.ID).Error)
		assert.Equal(t, 1, room.CurrentOccupancy)
	}

	t.Run("re-run places nobody once the pool is empty of beds", func(t *testing.T) {
		rerun, err := svc.Run(ctx, session.ID, "admin-1")
		require.NoError(t, err)

		assert.Empty(t, rerun.Assignments)
		require.Len(t, rerun.Failures, 1)
		assert.Equal(t, m3.ID, rerun.Failures[0].StudentID)

		// The winners of the first run are untouched.
		var allocated int64
		require.NoError(t, s.DB().Model(&model.Allocation{}).
			Where("session_id = ? AND status IN ?", session.ID, model.LiveAllocationStatuses).
			Count(&allocated).Error)
		assert.Equal(t, int64(2), allocated)
	})

	t.Run("approving an approved run conflicts", func(t *testing.T) {
		_, err := svc.Approve(ctx, result.Run.ID, "admin-1", true)
		require.Error(t, err)
		assert.Equal(t, apperr.CodeBallotAlreadyApproved, apperr.CodeOf(err))
	})

	t.Run("reversal frees every bed and resets applications", func(t *testing.T) {
		run, err := svc.Approve(ctx, result.Run.ID, "admin-2", false)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusRejected, run.Status)

		var live int64
		require.NoError(t, s.DB().Model(&model.Allocation{}).
			Where("session_id = ? AND status IN ?", session.ID, model.LiveAllocationStatuses).
			Count(&live).Error)
		assert.Equal(t, int64(0), live)

		var freshHostel model.Hostel
		require.NoError(t, s.DB().First(&freshHostel, "id = ?", hostel.ID).Error)
		assert.Equal(t, 0, freshHostel.CurrentOccupancy)

		// Only applications tied to the reversed run are reset; m3's belongs
		// to the re-run and keeps its not_allocated record.
		var winners []model.HostelApplication
		require.NoError(t, s.DB().
			Where("session_id = ? AND student_id <> ?", session.ID, m3.ID).
			Find(&winners).Error)
		require.Len(t, winners, 2)
		for _, app := range winners {
			assert.Equal(t, model.AppStatusPaymentVerified, app.Status)
			assert.Nil(t, app.PriorityScore)
			assert.Nil(t, app.BallotRunID)
		}

		var loser model.HostelApplication
		require.NoError(t, s.DB().First(&loser, "student_id = ?", m3.ID).Error)
		assert.Equal(t, model.AppStatusNotAllocated, loser.Status)
	})
}

// TestBallotHonorsPriorityOrder verifies the higher-scoring candidate takes
// the contested bed.
func TestBallotHonorsPriorityOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := ballot.NewService(s, nil)

	session := seedSession(t, s)
	hostel := &model.Hostel{Name: "Sodeinde Hall", Gender: model.GenderMale, TotalCapacity: 1, IsActive: true}
	require.NoError(t, s.DB().Create(hostel).Error)
	room := &model.Room{HostelID: hostel.ID, RoomNumber: "101", Capacity: 1, RoomType: "standard", IsAvailable: true}
	require.NoError(t, s.DB().Create(room).Error)

	slow := seedVerifiedApplicant(t, s, session.ID, hostel.ID, "SLOW", 40)
	fast := seedVerifiedApplicant(t, s, session.ID, hostel.ID, "FAST", 2)

	result, err := svc.Run(ctx, session.ID, "admin-1")
	require.NoError(t, err)

	require.Len(t, result.Assignments, 1)
	assert.Equal(t, fast.ID, result.Assignments[0].StudentID)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, slow.ID, result.Failures[0].StudentID)
}

// TestManualAllocation exercises the admin direct-assignment path and its
// guard rails.
func TestManualAllocation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := ballot.NewService(s, nil)

	session := seedSession(t, s)
	hostel, rooms := seedMaleHostel(t, s)
	student := seedVerifiedApplicant(t, s, session.ID, hostel.ID, "MAN1", 3)

	alloc, err := svc.ManualAllocate(ctx, "admin-1", ballot.ManualParams{
		StudentID:      student.ID,
		RoomID:         rooms[0].ID,
		SessionID:      session.ID,
		BedSpaceNumber: 1,
		Reason:         "medical priority",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AllocTypeManual, alloc.AllocationType)
	assert.Equal(t, model.AllocStatusActive, alloc.Status)
	require.NotNil(t, alloc.ApplicationID)

	var app model.HostelApplication
	require.NoError(t, s.DB().First(&app, "id = ?", *alloc.ApplicationID).Error)
	assert.Equal(t, model.AppStatusAllocated, app.Status)

	t.Run("second allocation for the same student conflicts", func(t *testing.T) {
		_, err := svc.ManualAllocate(ctx, "admin-1", ballot.ManualParams{
			StudentID:      student.ID,
			RoomID:         rooms[1].ID,
			SessionID:      session.ID,
			BedSpaceNumber: 1,
			Reason:         "duplicate",
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeAlreadyAllocated, apperr.CodeOf(err))
	})

	t.Run("gender mismatch is refused", func(t *testing.T) {
		female := &model.Student{
			MatricNumber: "F1", FirstName: "Test", LastName: "F1",
			Gender: model.GenderFemale, Level: 100, IsEligible: true, IsActive: true,
		}
		require.NoError(t, s.DB().Create(female).Error)

		_, err := svc.ManualAllocate(ctx, "admin-1", ballot.ManualParams{
			StudentID:      female.ID,
			RoomID:         rooms[1].ID,
			SessionID:      session.ID,
			BedSpaceNumber: 1,
			Reason:         "wrong hostel",
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeGenderMismatch, apperr.CodeOf(err))
	})

	t.Run("full room is refused", func(t *testing.T) {
		other := &model.Student{
			MatricNumber: "MAN2", FirstName: "Test", LastName: "MAN2",
			Gender: model.GenderMale, Level: 300, IsEligible: true, IsActive: true,
		}
		require.NoError(t, s.DB().Create(other).Error)

		_, err := svc.ManualAllocate(ctx, "admin-1", ballot.ManualParams{
			StudentID:      other.ID,
			RoomID:         rooms[0].ID,
			SessionID:      session.ID,
			BedSpaceNumber: 1,
			Reason:         "no space",
		})
		require.Error(t, err)
		assert.Equal(t, apperr.CodeRoomFull, apperr.CodeOf(err))
	})
}

// TestBulkAutoAssign covers the explicit-list placement used by admins,
// including students without any application.
func TestBulkAutoAssign(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := ballot.NewService(s, nil)

	session := seedSession(t, s)
	hostel, _ := seedMaleHostel(t, s)

	applicant := seedVerifiedApplicant(t, s, session.ID, hostel.ID, "B1", 2)
	walkIn := &model.Student{
		MatricNumber: "B2", FirstName: "Test", LastName: "B2",
		Gender: model.GenderMale, Level: 400, IsEligible: true, IsActive: true,
	}
	require.NoError(t, s.DB().Create(walkIn).Error)

	result, err := svc.BulkAssign(ctx, "admin-1", []string{applicant.ID, walkIn.ID}, "", ballot.ModePriorityBased)
	require.NoError(t, err)

	assert.Equal(t, 2, result.AllocatedCount)
	assert.Equal(t, 0, result.FailedCount)

	// Bulk placements are manual-type allocations; the applicant's
	// application is marked allocated directly.
	var allocs []model.Allocation
	require.NoError(t, s.DB().Where("session_id = ?", session.ID).Find(&allocs).Error)
	require.Len(t, allocs, 2)
	for _, a := range allocs {
		assert.Equal(t, model.AllocTypeManual, a.AllocationType)
	}

	var app model.HostelApplication
	require.NoError(t, s.DB().First(&app, "student_id = ?", applicant.ID).Error)
	assert.Equal(t, model.AppStatusAllocated, app.Status)

	t.Run("exhausted pool reports the choice fallback reason", func(t *testing.T) {
		extra := seedVerifiedApplicant(t, s, session.ID, hostel.ID, "B3", 4)

		result, err := svc.BulkAssign(ctx, "admin-1", []string{extra.ID}, session.ID, ballot.ModePriorityBased)
		require.NoError(t, err)

		assert.Equal(t, 0, result.AllocatedCount)
		require.Len(t, result.FailedStudents, 1)
		assert.Equal(t, "No available rooms. Fallback to choice 1 failed (full).", result.FailedStudents[0].Reason)
	})
}

// TestEligibilityChecker verifies each admission rule in isolation.
func TestEligibilityChecker(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	checker := ballot.Checker{Store: s}

	session := seedSession(t, s)
	hostel, _ := seedMaleHostel(t, s)
	now := time.Now().UTC()

	student := &model.Student{
		MatricNumber: "E1", FirstName: "Test", LastName: "E1",
		Gender: model.GenderMale, Level: 100, IsEligible: true, IsActive: true,
	}
	require.NoError(t, s.DB().Create(student).Error)

	t.Run("eligible student passes", func(t *testing.T) {
		assert.NoError(t, checker.Check(ctx, student, session, []string{hostel.ID}, now))
	})

	t.Run("ineligible student is refused", func(t *testing.T) {
		barred := *student
		barred.IsEligible = false
		err := checker.Check(ctx, &barred, session, []string{hostel.ID}, now)
		assert.Equal(t, apperr.CodeNotEligible, apperr.CodeOf(err))
	})

	t.Run("closed window is refused", func(t *testing.T) {
		err := checker.Check(ctx, student, session, []string{hostel.ID}, session.ApplicationEndDate.AddDate(0, 0, 1))
		assert.Equal(t, apperr.CodePeriodClosed, apperr.CodeOf(err))
	})

	t.Run("gender-mismatched hostel is refused", func(t *testing.T) {
		femaleHostel := &model.Hostel{Name: "Queens Hall", Gender: model.GenderFemale, IsActive: true}
		require.NoError(t, s.DB().Create(femaleHostel).Error)

		err := checker.Check(ctx, student, session, []string{femaleHostel.ID}, now)
		assert.Equal(t, apperr.CodeGenderMismatch, apperr.CodeOf(err))
	})

	t.Run("unknown hostel is refused", func(t *testing.T) {
		err := checker.Check(ctx, student, session, []string{"no-such-hostel"}, now)
		assert.Equal(t, apperr.CodeInvalidPreference, apperr.CodeOf(err))
	})

	t.Run("repeated hostel choice is accepted", func(t *testing.T) {
		assert.NoError(t, checker.Check(ctx, student, session, []string{hostel.ID, hostel.ID}, now))
	})

	t.Run("duplicate application is refused", func(t *testing.T) {
		app := &model.HostelApplication{
			StudentID: student.ID, SessionID: session.ID,
			FirstChoiceHostelID: &hostel.ID, Status: model.AppStatusPending,
		}
		require.NoError(t, s.DB().Create(app).Error)

		err := checker.Check(ctx, student, session, []string{hostel.ID}, now)
		assert.Equal(t, apperr.CodeAlreadyApplied, apperr.CodeOf(err))
	})
}
