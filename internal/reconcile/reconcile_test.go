package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hostel-allocation-backend/config"
	"hostel-allocation-backend/internal/db"
	"hostel-allocation-backend/internal/model"
	"hostel-allocation-backend/internal/store"
)

func TestRunOnceRepairsDrift(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := testDB.DB()
		sqlDB.Close()
	})
	require.NoError(t, db.Migrate(testDB))
	s := store.NewGormStore(testDB)

	// One live allocation, but the counters claim three beds are taken.
	hostel := &model.Hostel{Name: "Kongi Hall", Gender: model.GenderMale, TotalCapacity: 4, CurrentOccupancy: 3, IsActive: true}
	require.NoError(t, testDB.Create(hostel).Error)
	room := &model.Room{HostelID: hostel.ID, RoomNumber: "101", Capacity: 4, CurrentOccupancy: 3, RoomType: "standard", IsAvailable: true}
	require.NoError(t, testDB.Create(room).Error)

	student := &model.Student{MatricNumber: "F/ND/23/0001", FirstName: "Ade", LastName: "Bello", Gender: model.GenderMale, Level: 200, IsEligible: true, IsActive: true}
	require.NoError(t, testDB.Create(student).Error)
	alloc := &model.Allocation{
		StudentID: student.ID, HostelID: hostel.ID, RoomID: room.ID,
		SessionID: "sess-1", BedSpaceNumber: 1,
		AllocationType: model.AllocTypeManual, Status: model.AllocStatusActive,
	}
	require.NoError(t, testDB.Create(alloc).Error)

	svc := NewService(&config.ReconcileConfig{Enabled: true, IntervalMinutes: 30}, s)
	svc.RunOnce(context.Background())

	var freshRoom model.Room
	require.NoError(t, testDB.First(&freshRoom, "id = ?", room.ID).Error)
	assert.Equal(t, 1, freshRoom.CurrentOccupancy)

	var freshHostel model.Hostel
	require.NoError(t, testDB.First(&freshHostel, "id = ?", hostel.ID).Error)
	assert.Equal(t, 1, freshHostel.CurrentOccupancy)

	// A second pass finds nothing to fix.
	fixed, err := s.ReconcileOccupancy(context.Background())
	require.NoError(t, err)
	assert.Zero(t, fixed)
}
