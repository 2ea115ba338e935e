package bedsvc

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingrea/wardboard/internal/ward"
)

var (
	// ErrBedNotFound is returned for unknown bed ids.
	ErrBedNotFound = errors.New("bedsvc: bed not found")
	// ErrBedOccupied is returned when assigning to a bed that has a patient.
	ErrBedOccupied = errors.New("bedsvc: bed already occupied")
	// ErrBedVacant is returned when deassigning a bed without a patient.
	ErrBedVacant = errors.New("bedsvc: bed has no patient")
)

// Patient is an admitted intake as the service stores it.
type Patient struct {
	ID         string
	BedID      string
	Intake     ward.PatientIntake
	AdmittedAt time.Time
}

// Store is the in-memory ward: a fixed set of beds and the patients
// currently in them.
type Store struct {
	mu       sync.RWMutex
	beds     []ward.Bed
	index    map[string]int
	patients map[string]Patient
	clock    func() time.Time
}

// NewStore creates count vacant beds numbered B1..Bn with ids 1..n.
func NewStore(count int) *Store {
	s := &Store{
		index:    map[string]int{},
		patients: map[string]Patient{},
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for i := 1; i <= count; i++ {
		id := ward.NumericID(int64(i))
		s.index[id.String()] = len(s.beds)
		s.beds = append(s.beds, ward.Bed{ID: id, BedNumber: "B" + strconv.Itoa(i)})
	}
	return s
}

// Beds returns a copy of every bed in id order.
func (s *Store) Beds() []ward.Bed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ward.Bed, len(s.beds))
	for i, bed := range s.beds {
		out[i] = bed
		if bed.PatientID != nil {
			pid := *bed.PatientID
			out[i].PatientID = &pid
		}
	}
	return out
}

// Assign admits intake into bedID and returns the new patient id.
func (s *Store) Assign(bedID string, intake ward.PatientIntake) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[bedID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBedNotFound, bedID)
	}
	if s.beds[idx].Occupied() {
		return "", fmt.Errorf("%w: %s", ErrBedOccupied, bedID)
	}
	patientID := uuid.NewString()
	pid := ward.StringID(patientID)
	s.beds[idx].PatientID = &pid
	s.patients[patientID] = Patient{
		ID:         patientID,
		BedID:      bedID,
		Intake:     intake,
		AdmittedAt: s.clock(),
	}
	return patientID, nil
}

// Deassign discharges the patient in bedID.
func (s *Store) Deassign(bedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[bedID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBedNotFound, bedID)
	}
	bed := s.beds[idx]
	if !bed.Occupied() {
		return fmt.Errorf("%w: %s", ErrBedVacant, bedID)
	}
	delete(s.patients, bed.PatientID.String())
	s.beds[idx].PatientID = nil
	return nil
}

// Patient looks up an admitted patient by id.
func (s *Store) Patient(id string) (Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	return p, ok
}
