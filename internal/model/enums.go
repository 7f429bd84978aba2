package model

// Gender partitions students and hostels.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ApplicationStatus tracks a hostel application through its lifecycle.
type ApplicationStatus string

const (
	AppStatusPending         ApplicationStatus = "pending"
	AppStatusPaymentVerified ApplicationStatus = "payment_verified"
	AppStatusBalloted        ApplicationStatus = "balloted"
	AppStatusAllocated       ApplicationStatus = "allocated"
	AppStatusNotAllocated    ApplicationStatus = "not_allocated"
	AppStatusRejected        ApplicationStatus = "rejected"
)

// AllocationStatus tracks a bed assignment through its lifecycle.
type AllocationStatus string

const (
	AllocStatusActive     AllocationStatus = "active"
	AllocStatusCheckedIn  AllocationStatus = "checked_in"
	AllocStatusCheckedOut AllocationStatus = "checked_out"
	AllocStatusRevoked    AllocationStatus = "revoked"
)

// LiveAllocationStatuses are the statuses under which a student holds a bed.
// A student may have at most one allocation in these statuses per session.
var LiveAllocationStatuses = []AllocationStatus{AllocStatusActive, AllocStatusCheckedIn}

// AllocationType records how an allocation came to exist.
type AllocationType string

const (
	AllocTypeBallot AllocationType = "ballot"
	AllocTypeManual AllocationType = "manual"
)

// BallotRunStatus tracks one execution of the ballot.
type BallotRunStatus string

const (
	RunStatusRunning   BallotRunStatus = "running"
	RunStatusCompleted BallotRunStatus = "completed"
	RunStatusApproved  BallotRunStatus = "approved"
	RunStatusRejected  BallotRunStatus = "rejected"
)
