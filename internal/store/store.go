package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
)

// Store defines the persistence operations the allocation engine depends on.
// Plain CRUD handlers work against DB() directly.
type Store interface {
	DB() *gorm.DB

	ActiveSession(ctx context.Context) (*model.AcademicSession, error)
	SessionByID(ctx context.Context, id string) (*model.AcademicSession, error)
	SaveSession(ctx context.Context, session *model.AcademicSession) error

	StudentByID(ctx context.Context, id string) (*model.Student, error)
	StudentsByIDs(ctx context.Context, ids []string) ([]model.Student, error)
	HostelsByIDs(ctx context.Context, ids []string) ([]model.Hostel, error)

	ApplicationFor(ctx context.Context, studentID, sessionID string) (*model.HostelApplication, error)
	CreateApplication(ctx context.Context, app *model.HostelApplication) error
	BallotPool(ctx context.Context, sessionID string) ([]model.HostelApplication, error)
	ApplicationsForStudents(ctx context.Context, sessionID string, studentIDs []string) ([]model.HostelApplication, error)
	ApplicationCounts(ctx context.Context, sessionID string) (total, verified int64, err error)
	MarkNotAllocated(ctx context.Context, applicationID, runID string, score float64) error

	HasLiveAllocation(ctx context.Context, studentID, sessionID string) (bool, error)
	RoomWithHostel(ctx context.Context, roomID string) (*model.Room, error)
	AvailableRooms(ctx context.Context, gender model.Gender) ([]RoomCandidate, error)
	CommitAssignment(ctx context.Context, alloc *model.Allocation, appUpdate *ApplicationUpdate) error

	BallotConfigFor(ctx context.Context, sessionID string) (*model.BallotConfig, error)
	UpsertBallotConfig(ctx context.Context, cfg *model.BallotConfig) error
	CreateBallotRun(ctx context.Context, run *model.BallotRun) error
	FinalizeBallotRun(ctx context.Context, run *model.BallotRun) error
	BallotRunByID(ctx context.Context, id string) (*model.BallotRun, error)
	ApproveBallotRun(ctx context.Context, run *model.BallotRun, actorID string, at time.Time) error
	ReverseBallotRun(ctx context.Context, run *model.BallotRun) error

	ReconcileOccupancy(ctx context.Context) (int, error)

	Audit(ctx context.Context, actorID *string, action, entityType, entityID string, payload any, reason string)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB { return s.db }

// --- Sessions ---

func (s *gormStore) ActiveSession(ctx context.Context) (*model.AcademicSession, error) {
	var session model.AcademicSession
	err := s.db.WithContext(ctx).Where("is_active = ?", true).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.BadRequest(apperr.CodeSessionNotActive, "no active academic session")
	}
	if err != nil {
		return nil, apperr.DB("failed to fetch active session", err)
	}
	return &session, nil
}

func (s *gormStore) SessionByID(ctx context.Context, id string) (*model.AcademicSession, error) {
	var session model.AcademicSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.CodeSessionNotFound, "session not found")
	}
	if err != nil {
		return nil, apperr.DB("failed to fetch session", err)
	}
	return &session, nil
}

// SaveSession creates or updates a session. Setting IsActive deactivates all
// other sessions in the same transaction, preserving the single-active-session
// invariant.
func (s *gormStore) SaveSession(ctx context.Context, session *model.AcademicSession) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if session.IsActive {
			if err := tx.Model(&model.AcademicSession{}).
				Where("is_active = ? AND id <> ?", true, session.ID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		return tx.Save(session).Error
	})
	if err != nil {
		return apperr.DB("failed to save session", err)
	}
	return nil
}

// --- Students / Hostels ---

func (s *gormStore) StudentByID(ctx context.Context, id string) (*model.Student, error) {
	var student model.Student
	err := s.db.WithContext(ctx).First(&student, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.CodeStudentNotFound, "student not found")
	}
	if err != nil {
		return nil, apperr.DB("failed to fetch student", err)
	}
	return &student, nil
}

func (s *gormStore) StudentsByIDs(ctx context.Context, ids []string) ([]model.Student, error) {
	var students []model.Student
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, apperr.DB("failed to fetch students", err)
	}
	return students, nil
}

func (s *gormStore) HostelsByIDs(ctx context.Context, ids []string) ([]model.Hostel, error) {
	var hostels []model.Hostel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&hostels).Error; err != nil {
		return nil, apperr.DB("failed to fetch hostels", err)
	}
	return hostels, nil
}

// --- Applications ---

func (s *gormStore) ApplicationFor(ctx context.Context, studentID, sessionID string) (*model.HostelApplication, error) {
	var app model.HostelApplication
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND session_id = ?", studentID, sessionID).
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.DB("failed to fetch application", err)
	}
	return &app, nil
}

func (s *gormStore) CreateApplication(ctx context.Context, app *model.HostelApplication) error {
	if err := s.db.WithContext(ctx).Create(app).Error; err != nil {
		return apperr.DB("failed to create application", err)
	}
	return nil
}

// BallotPool returns the applications eligible for the next ballot run:
// payment verified and not already processed to a terminal success. Students
// who failed a previous run (not_allocated) re-enter the pool, which is what
// makes re-running the ballot safe but not a no-op.
func (s *gormStore) BallotPool(ctx context.Context, sessionID string) ([]model.HostelApplication, error) {
	var apps []model.HostelApplication
	err := s.db.WithContext(ctx).
		Preload("Student").
		Where("session_id = ? AND payment_verified = ?", sessionID, true).
		Where("status IN ?", []model.ApplicationStatus{model.AppStatusPaymentVerified, model.AppStatusNotAllocated}).
		Find(&apps).Error
	if err != nil {
		return nil, apperr.DB("failed to fetch ballot pool", err)
	}
	return apps, nil
}

func (s *gormStore) ApplicationsForStudents(ctx context.Context, sessionID string, studentIDs []string) ([]model.HostelApplication, error) {
	var apps []model.HostelApplication
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND payment_verified = ? AND student_id IN ?", sessionID, true, studentIDs).
		Find(&apps).Error
	if err != nil {
		return nil, apperr.DB("failed to fetch applications", err)
	}
	return apps, nil
}

func (s *gormStore) ApplicationCounts(ctx context.Context, sessionID string) (total, verified int64, err error) {
	base := s.db.WithContext(ctx).Model(&model.HostelApplication{}).Where("session_id = ?", sessionID)
	if err = base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, apperr.DB("failed to count applications", err)
	}
	if err = base.Session(&gorm.Session{}).Where("payment_verified = ?", true).Count(&verified).Error; err != nil {
		return 0, 0, apperr.DB("failed to count verified applications", err)
	}
	return total, verified, nil
}

func (s *gormStore) MarkNotAllocated(ctx context.Context, applicationID, runID string, score float64) error {
	err := s.db.WithContext(ctx).Model(&model.HostelApplication{}).
		Where("id = ?", applicationID).
		Updates(map[string]any{
			"status":         model.AppStatusNotAllocated,
			"priority_score": score,
			"ballot_run_id":  runID,
		}).Error
	if err != nil {
		return apperr.DB("failed to mark application not allocated", err)
	}
	return nil
}

// --- Allocations ---

func (s *gormStore) HasLiveAllocation(ctx context.Context, studentID, sessionID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Allocation{}).
		Where("student_id = ? AND session_id = ? AND status IN ?", studentID, sessionID, model.LiveAllocationStatuses).
		Count(&count).Error
	if err != nil {
		return false, apperr.DB("failed to check existing allocation", err)
	}
	return count > 0, nil
}

func (s *gormStore) RoomWithHostel(ctx context.Context, roomID string) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).Preload("Hostel").First(&room, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.CodeRoomNotFound, "room not found")
	}
	if err != nil {
		return nil, apperr.DB("failed to fetch room", err)
	}
	return &room, nil
}

// AvailableRooms returns every allocatable room for the given gender, joined
// with its hostel and ordered by room number so matching is deterministic.
func (s *gormStore) AvailableRooms(ctx context.Context, gender model.Gender) ([]RoomCandidate, error) {
	var rows []RoomCandidate
	err := s.db.WithContext(ctx).Model(&model.Room{}).
		Select("rooms.id AS room_id, rooms.room_number, rooms.floor_number, rooms.capacity, rooms.current_occupancy, hostels.id AS hostel_id, hostels.name AS hostel_name").
		Joins("JOIN hostels ON hostels.id = rooms.hostel_id AND hostels.deleted_at IS NULL").
		Where("rooms.is_available = ? AND rooms.current_occupancy < rooms.capacity", true).
		Where("hostels.gender = ? AND hostels.is_active = ?", gender, true).
		Order("rooms.room_number ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.DB("failed to fetch available rooms", err)
	}
	return rows, nil
}

// CommitAssignment persists one candidate's match as a single atomic unit:
// allocation insert, room and hostel occupancy increments, and the
// application status update. The guarded room update re-checks capacity so a
// stale in-memory index can never oversell a bed.
func (s *gormStore) CommitAssignment(ctx context.Context, alloc *model.Allocation, appUpdate *ApplicationUpdate) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Room{}).
			Where("id = ? AND current_occupancy < capacity", alloc.RoomID).
			Update("current_occupancy", gorm.Expr("current_occupancy + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.BadRequest(apperr.CodeRoomFull, "room is full")
		}

		if err := tx.Model(&model.Hostel{}).
			Where("id = ?", alloc.HostelID).
			Update("current_occupancy", gorm.Expr("current_occupancy + 1")).Error; err != nil {
			return err
		}

		if err := tx.Create(alloc).Error; err != nil {
			return err
		}

		if appUpdate != nil {
			updates := map[string]any{"status": appUpdate.Status}
			if appUpdate.Score != nil {
				updates["priority_score"] = *appUpdate.Score
			}
			if appUpdate.BallotRunID != nil {
				updates["ballot_run_id"] = *appUpdate.BallotRunID
			}
			if err := tx.Model(&model.HostelApplication{}).
				Where("id = ?", appUpdate.ID).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return err
		}
		return apperr.DB("failed to commit assignment", err)
	}
	return nil
}

// --- Ballot config / runs ---

func (s *gormStore) BallotConfigFor(ctx context.Context, sessionID string) (*model.BallotConfig, error) {
	var cfg model.BallotConfig
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.DB("failed to fetch ballot configuration", err)
	}
	return &cfg, nil
}

func (s *gormStore) UpsertBallotConfig(ctx context.Context, cfg *model.BallotConfig) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"payment_weight", "category_weight", "level_weight",
			"fresh_student_score", "final_year_score", "level300_score", "level200_score",
			"created_by", "updated_at",
		}),
	}).Create(cfg).Error
	if err != nil {
		return apperr.DB("failed to save ballot configuration", err)
	}
	return nil
}

func (s *gormStore) CreateBallotRun(ctx context.Context, run *model.BallotRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return apperr.DB("failed to create ballot run", err)
	}
	return nil
}

func (s *gormStore) FinalizeBallotRun(ctx context.Context, run *model.BallotRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return apperr.DB("failed to finalize ballot run", err)
	}
	return nil
}

func (s *gormStore) BallotRunByID(ctx context.Context, id string) (*model.BallotRun, error) {
	var run model.BallotRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(apperr.CodeBallotNotFound, "ballot run not found")
	}
	if err != nil {
		return nil, apperr.DB("failed to fetch ballot run", err)
	}
	return &run, nil
}

// ApproveBallotRun marks the run approved and flips its balloted
// applications to allocated.
func (s *gormStore) ApproveBallotRun(ctx context.Context, run *model.BallotRun, actorID string, at time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run.Status = model.RunStatusApproved
		run.ApprovedAt = &at
		run.ApprovedBy = &actorID
		if err := tx.Save(run).Error; err != nil {
			return err
		}
		return tx.Model(&model.HostelApplication{}).
			Where("ballot_run_id = ? AND status = ?", run.ID, model.AppStatusBalloted).
			Update("status", model.AppStatusAllocated).Error
	})
	if err != nil {
		return apperr.DB("failed to approve ballot run", err)
	}
	return nil
}

// ReverseBallotRun rejects a run and undoes its effects. The reversal is
// session-scoped: every live allocation in the run's session is removed and
// the room/hostel occupancy counters are decremented by the number of
// allocations removed. Applications tied to the run return to
// payment_verified with score and run reference cleared.
func (s *gormStore) ReverseBallotRun(ctx context.Context, run *model.BallotRun) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		run.Status = model.RunStatusRejected
		if err := tx.Save(run).Error; err != nil {
			return err
		}

		var allocations []model.Allocation
		if err := tx.Where("session_id = ? AND status IN ?", run.SessionID, model.LiveAllocationStatuses).
			Find(&allocations).Error; err != nil {
			return err
		}

		roomCounts := make(map[string]int)
		hostelCounts := make(map[string]int)
		for _, a := range allocations {
			roomCounts[a.RoomID]++
			hostelCounts[a.HostelID]++
		}

		for roomID, n := range roomCounts {
			var room model.Room
			if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
				return err
			}
			occ := room.CurrentOccupancy - n
			if occ < 0 {
				occ = 0
			}
			if err := tx.Model(&room).Update("current_occupancy", occ).Error; err != nil {
				return err
			}
		}
		for hostelID, n := range hostelCounts {
			var hostel model.Hostel
			if err := tx.First(&hostel, "id = ?", hostelID).Error; err != nil {
				return err
			}
			occ := hostel.CurrentOccupancy - n
			if occ < 0 {
				occ = 0
			}
			if err := tx.Model(&hostel).Update("current_occupancy", occ).Error; err != nil {
				return err
			}
		}

		if len(allocations) > 0 {
			if err := tx.Unscoped().
				Where("session_id = ? AND status IN ?", run.SessionID, model.LiveAllocationStatuses).
				Delete(&model.Allocation{}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&model.HostelApplication{}).
			Where("ballot_run_id = ?", run.ID).
			Updates(map[string]any{
				"status":         model.AppStatusPaymentVerified,
				"priority_score": nil,
				"ballot_run_id":  nil,
			}).Error
	})
	if err != nil {
		return apperr.DB("failed to reverse ballot run", err)
	}
	return nil
}

// --- Reconciliation ---

// ReconcileOccupancy recomputes every room and hostel occupancy counter from
// the live allocations and repairs any drift. Returns the number of rows
// corrected. The counters are denormalized, so a crashed run or manual data
// surgery can leave them stale; this is the safety net.
func (s *gormStore) ReconcileOccupancy(ctx context.Context) (int, error) {
	fixed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		type occRow struct {
			ID    string
			Count int
		}

		var roomCounts []occRow
		if err := tx.Model(&model.Allocation{}).
			Select("room_id AS id, COUNT(*) AS count").
			Where("status IN ?", model.LiveAllocationStatuses).
			Group("room_id").
			Scan(&roomCounts).Error; err != nil {
			return err
		}
		liveByRoom := make(map[string]int, len(roomCounts))
		for _, r := range roomCounts {
			liveByRoom[r.ID] = r.Count
		}

		var rooms []model.Room
		if err := tx.Find(&rooms).Error; err != nil {
			return err
		}
		for _, room := range rooms {
			want := liveByRoom[room.ID]
			if room.CurrentOccupancy == want {
				continue
			}
			log.Printf("reconcile: room %s occupancy %d, expected %d", room.ID, room.CurrentOccupancy, want)
			if err := tx.Model(&model.Room{}).Where("id = ?", room.ID).
				Update("current_occupancy", want).Error; err != nil {
				return err
			}
			fixed++
		}

		var hostelCounts []occRow
		if err := tx.Model(&model.Allocation{}).
			Select("hostel_id AS id, COUNT(*) AS count").
			Where("status IN ?", model.LiveAllocationStatuses).
			Group("hostel_id").
			Scan(&hostelCounts).Error; err != nil {
			return err
		}
		liveByHostel := make(map[string]int, len(hostelCounts))
		for _, h := range hostelCounts {
			liveByHostel[h.ID] = h.Count
		}

		var hostels []model.Hostel
		if err := tx.Find(&hostels).Error; err != nil {
			return err
		}
		for _, hostel := range hostels {
			want := liveByHostel[hostel.ID]
			if hostel.CurrentOccupancy == want {
				continue
			}
			log.Printf("reconcile: hostel %s occupancy %d, expected %d", hostel.ID, hostel.CurrentOccupancy, want)
			if err := tx.Model(&model.Hostel{}).Where("id = ?", hostel.ID).
				Update("current_occupancy", want).Error; err != nil {
				return err
			}
			fixed++
		}
		return nil
	})
	if err != nil {
		return 0, apperr.DB("failed to reconcile occupancy", err)
	}
	return fixed, nil
}

// --- Audit ---

// Audit writes one audit entry. Failures are logged, never propagated: an
// audit miss must not fail the action it describes.
func (s *gormStore) Audit(ctx context.Context, actorID *string, action, entityType, entityID string, payload any, reason string) {
	var encoded string
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.Printf("audit: failed to encode payload for %s: %v", action, err)
		} else {
			encoded = string(b)
		}
	}
	entry := model.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    encoded,
		Reason:     reason,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		log.Printf("audit: failed to record %s: %v", action, err)
	}
}
