package ballot

import (
	"math/rand"

	"hostel-allocation-backend/internal/store"
)

// RoomSlot is one room's live view inside an availability index. Occupancy
// is mutated in memory as the matcher reserves beds, so capacity is never
// oversold within a single run.
type RoomSlot struct {
	RoomID      string
	RoomNumber  string
	FloorNumber int
	HostelID    string
	HostelName  string
	Capacity    int
	Occupancy   int
}

// Free reports whether the slot still has an unassigned bed.
func (s *RoomSlot) Free() bool {
	return s.Occupancy < s.Capacity
}

// Index is the gender-partitioned room availability index for one run. Slots
// keep the store's room-number ordering, which makes matching deterministic.
type Index struct {
	slots []*RoomSlot
}

// NewIndex builds an index from the rooms read at the start of a run. The
// store already returns the rows filtered (active, available, free capacity,
// matching gender) and ordered by room number.
func NewIndex(rooms []store.RoomCandidate) *Index {
	slots := make([]*RoomSlot, 0, len(rooms))
	for _, r := range rooms {
		slots = append(slots, &RoomSlot{
			RoomID:      r.RoomID,
			RoomNumber:  r.RoomNumber,
			FloorNumber: r.FloorNumber,
			HostelID:    r.HostelID,
			HostelName:  r.HostelName,
			Capacity:    r.Capacity,
			Occupancy:   r.CurrentOccupancy,
		})
	}
	return &Index{slots: slots}
}

// FreeBeds returns the total number of unassigned beds in the index.
func (ix *Index) FreeBeds() int {
	total := 0
	for _, s := range ix.slots {
		total += s.Capacity - s.Occupancy
	}
	return total
}

// FirstFreeInHostel returns the first room with a free bed in the given
// hostel, in room-number order.
func (ix *Index) FirstFreeInHostel(hostelID string) *RoomSlot {
	for _, s := range ix.slots {
		if s.HostelID == hostelID && s.Free() {
			return s
		}
	}
	return nil
}

// FirstFree returns the first room with a free bed anywhere in the index.
func (ix *Index) FirstFree() *RoomSlot {
	for _, s := range ix.slots {
		if s.Free() {
			return s
		}
	}
	return nil
}

// RandomFree picks a uniformly random room among those with a free bed.
func (ix *Index) RandomFree(rng *rand.Rand) *RoomSlot {
	var free []*RoomSlot
	for _, s := range ix.slots {
		if s.Free() {
			free = append(free, s)
		}
	}
	if len(free) == 0 {
		return nil
	}
	return free[rng.Intn(len(free))]
}

// Reserve takes the next bed in the slot and returns its number. Beds are
// numbered contiguously from 1; the caller must hold a Free() slot.
func (ix *Index) Reserve(slot *RoomSlot) int {
	slot.Occupancy++
	return slot.Occupancy
}

// Release undoes a Reserve after a failed persist, so the bed stays
// available to later candidates in the same run.
func (ix *Index) Release(slot *RoomSlot) {
	if slot.Occupancy > 0 {
		slot.Occupancy--
	}
}
