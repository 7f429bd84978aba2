package ballot

import (
	"context"

	"hostel-allocation-backend/internal/apperr"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

// ManualParams describes an administrator's direct room assignment.
type ManualParams struct {
	StudentID      string `json:"student_id" binding:"required"`
	RoomID         string `json:"room_id" binding:"required"`
	SessionID      string `json:"session_id" binding:"required"`
	BedSpaceNumber int    `json:"bed_space_number" binding:"required,min=1"`
	Reason         string `json:"reason" binding:"required"`
}

// ManualAllocate places one student in a specific room, bypassing the
// lottery but not the constraints: live-allocation, capacity, and gender
// checks all still apply.
func (s *Service) ManualAllocate(ctx context.Context, actorID string, params ManualParams) (*model.Allocation, error) {
	live, err := s.store.HasLiveAllocation(ctx, params.StudentID, params.SessionID)
	if err != nil {
		return nil, err
	}
	if live {
		return nil, apperr.Conflict(apperr.CodeAlreadyAllocated, "student already has an allocation")
	}

	room, err := s.store.RoomWithHostel(ctx, params.RoomID)
	if err != nil {
		return nil, err
	}
	if !room.HasFreeBed() {
		return nil, apperr.BadRequest(apperr.CodeRoomFull, "room is full")
	}

	student, err := s.store.StudentByID(ctx, params.StudentID)
	if err != nil {
		return nil, err
	}
	if student.Gender != room.Hostel.Gender {
		return nil, apperr.BadRequest(apperr.CodeGenderMismatch, "gender mismatch with hostel")
	}

	app, err := s.store.ApplicationFor(ctx, params.StudentID, params.SessionID)
	if err != nil {
		return nil, err
	}

	alloc := &model.Allocation{
		StudentID:      params.StudentID,
		HostelID:       room.HostelID,
		RoomID:         room.ID,
		SessionID:      params.SessionID,
		BedSpaceNumber: params.BedSpaceNumber,
		AllocationType: model.AllocTypeManual,
		AllocatedBy:    &actorID,
		Reason:         params.Reason,
		Status:         model.AllocStatusActive,
	}
	var update *store.ApplicationUpdate
	if app != nil {
		alloc.ApplicationID = &app.ID
		update = &store.ApplicationUpdate{ID: app.ID, Status: model.AppStatusAllocated}
	}
	if err := s.store.CommitAssignment(ctx, alloc, update); err != nil {
		return nil, err
	}

	s.store.Audit(ctx, &actorID, "manual_allocation", "allocation", alloc.ID, params, params.Reason)
	if s.notifier != nil {
		s.notifier.AllocationConfirmed(params.StudentID)
	}
	return alloc, nil
}
