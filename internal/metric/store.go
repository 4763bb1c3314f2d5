// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Centralised store of transcode run metrics.

package metric

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrRecordNotFound = errors.New("record not found")

type ID int64

type Store struct {
	mu      sync.RWMutex
	records map[ID]Record
	next    ID
}

func NewStore() *Store {
	return &Store{
		records: make(map[ID]Record),
	}
}

func (s *Store) Insert(r Record) ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[s.next] = r
	id := s.next
	s.next++

	return id
}

func (s *Store) Get(id ID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return r, fmt.Errorf("getting record: %w", ErrRecordNotFound)
	}

	return r, nil
}

func (s *Store) Exists(id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.records[id]

	return exists
}

func (s *Store) GetIDs() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]ID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}

// Records returns all records ordered by ID.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]ID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, s.records[id])
	}
	return records
}

func (s *Store) Update(id ID, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("updating record: %w", ErrRecordNotFound)
	}

	s.records[id] = r
	return nil
}

func (s *Store) Delete(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("deleting record: %w", ErrRecordNotFound)
	}

	delete(s.records, id)
	return nil
}

// Sample is a progress ratio of a stage observed at Offset from start of a run.
type Sample struct {
	Stage  string
	Offset time.Duration
	Ratio  float64
}

// Record contains metrics of a single transcode run.
type Record struct {
	Name       string
	SourceFile string
	OutputRoot string
	Status     string
	Error      string

	VideoDuration  float64
	Width          int
	Height         int
	FPS            float64
	Rotate         int
	HasAudio       bool
	ExpectedFrames float64
	FrameCount     int

	HElapsed      string
	Elapsed       time.Duration
	AudioElapsed  time.Duration
	ImageElapsed  time.Duration
	ProgressCount int
	// Frames produced per second of wall time
	ImageSpeed float64

	// Progress step statistics of image stage
	ImageStepMean  float64
	ImageStepMax   float64
	ImageStepStDev float64

	Timeline []Sample `csv:"-"`
}

// Run status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)
