package store

import "hostel-allocation-backend/internal/model"

// RoomCandidate is one allocatable room row, joined with its hostel, as read
// by the availability index at the start of a run.
type RoomCandidate struct {
	RoomID           string
	RoomNumber       string
	FloorNumber      int
	Capacity         int
	CurrentOccupancy int
	HostelID         string
	HostelName       string
}

// ApplicationUpdate describes the application-side mutation committed
// together with a new allocation.
type ApplicationUpdate struct {
	ID          string
	Status      model.ApplicationStatus
	Score       *float64
	BallotRunID *string
}
