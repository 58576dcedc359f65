// Package series holds the accumulated x/y data plotted for the current
// stream session.
package series

import (
	"sync"

	"github.com/nupi-ai/chartfeed/internal/protocol"
)

// Snapshot is a point-in-time copy of a Series. X and Y always have the same
// length.
type Snapshot struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Len returns the number of points in the snapshot.
func (s Snapshot) Len() int {
	return len(s.X)
}

// Series is an append-only pair of parallel x/y sequences.
type Series struct {
	mu sync.RWMutex
	x  []float64
	y  []float64
}

// New returns an empty series.
func New() *Series {
	return &Series{}
}

// Append adds points in order and returns the resulting length.
func (s *Series) Append(points []protocol.Point) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		s.x = append(s.x, p.X)
		s.y = append(s.y, p.Y)
	}
	return len(s.x)
}

// Reset drops every point.
func (s *Series) Reset() {
	s.mu.Lock()
	s.x = nil
	s.y = nil
	s.mu.Unlock()
}

// Len returns the current number of points.
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.x)
}

// Snapshot copies the current contents.
func (s *Series) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		X: append([]float64{}, s.x...),
		Y: append([]float64{}, s.y...),
	}
}
