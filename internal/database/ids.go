package database

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces document ids in ObjectId hex form (24 hex digits).
type IDGenerator interface {
	NewID() string
}

// RandomIDs generates ids from the current time and random uuid bytes.
type RandomIDs struct{}

// NewID returns a time-prefixed random id.
func (RandomIDs) NewID() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[:4], uint32(time.Now().Unix()))
	u := uuid.New()
	copy(b[4:], u[:8])
	return hex.EncodeToString(b[:])
}

// SequentialIDs generates deterministic ids for tests:
// 000000010000000000000001, 000000020000000000000002, ...
type SequentialIDs struct {
	mu      sync.Mutex
	counter uint64
}

// NewID returns the next sequential id.
func (s *SequentialIDs) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return fmt.Sprintf("%08x%016x", s.counter, s.counter)
}

// Reset restarts the sequence.
func (s *SequentialIDs) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter = 0
}
