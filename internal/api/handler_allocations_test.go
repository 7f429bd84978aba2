package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

func seedOccupiedRoom(t *testing.T, s store.Store, session *model.AcademicSession) (*model.Hostel, *model.Room, *model.Allocation) {
	hostel := &model.Hostel{
		Name: "Kongi Hall", Gender: model.GenderMale, IsActive: true,
		TotalCapacity: 4, CurrentOccupancy: 1,
	}
	require.NoError(t, s.DB().Create(hostel).Error)

	room := &model.Room{
		HostelID: hostel.ID, RoomNumber: "101", Capacity: 4,
		CurrentOccupancy: 1, IsAvailable: true,
	}
	require.NoError(t, s.DB().Create(room).Error)

	student := &model.Student{
		MatricNumber: "F/ND/24/010", FirstName: "Ade", LastName: "Bello",
		Gender: model.GenderMale, Level: 100, IsEligible: true, IsActive: true,
	}
	require.NoError(t, s.DB().Create(student).Error)

	alloc := &model.Allocation{
		StudentID: student.ID, HostelID: hostel.ID, RoomID: room.ID,
		SessionID: session.ID, BedSpaceNumber: 1,
		AllocationType: model.AllocTypeManual, Status: model.AllocStatusActive,
	}
	require.NoError(t, s.DB().Create(alloc).Error)
	return hostel, room, alloc
}

func TestWardenCheckInAndOut(t *testing.T) {
	router, s := setupTestRouter(t)
	session := seedActiveSession(t, s)
	hostel, room, alloc := seedOccupiedRoom(t, s, session)

	t.Run("check-out before check-in conflicts", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/warden/allocations/"+alloc.ID+"/check-out", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "not in status checked_in")
	})

	t.Run("check-in moves the allocation to checked_in", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/warden/allocations/"+alloc.ID+"/check-in", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got model.Allocation
		require.NoError(t, s.DB().First(&got, "id = ?", alloc.ID).Error)
		assert.Equal(t, model.AllocStatusCheckedIn, got.Status)

		// The student still holds the bed; counters are untouched.
		var r model.Room
		require.NoError(t, s.DB().First(&r, "id = ?", room.ID).Error)
		assert.Equal(t, 1, r.CurrentOccupancy)
	})

	t.Run("second check-in conflicts", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/warden/allocations/"+alloc.ID+"/check-in", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "not in status active")
	})

	t.Run("check-out frees the bed", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/warden/allocations/"+alloc.ID+"/check-out", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got model.Allocation
		require.NoError(t, s.DB().First(&got, "id = ?", alloc.ID).Error)
		assert.Equal(t, model.AllocStatusCheckedOut, got.Status)

		var r model.Room
		require.NoError(t, s.DB().First(&r, "id = ?", room.ID).Error)
		assert.Equal(t, 0, r.CurrentOccupancy)

		var h model.Hostel
		require.NoError(t, s.DB().First(&h, "id = ?", hostel.ID).Error)
		assert.Equal(t, 0, h.CurrentOccupancy)
	})

	t.Run("second check-out conflicts", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/warden/allocations/"+alloc.ID+"/check-out", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("unknown allocation is a 404", func(t *testing.T) {
		w := doJSON(router, http.MethodPost, "/api/warden/allocations/no-such/check-in", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "ALLOC_NOT_FOUND")
	})
}
