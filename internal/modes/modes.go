package modes

import (
	"errors"
	"fmt"
	"strings"
)

// Name identifies a delivery mode.
type Name string

const (
	SmallPeriodicChunks  Name = "SMALL_PERIODIC_CHUNKS"
	LargeInitialChunk    Name = "LARGE_INITIAL_CHUNK"
	MediumPeriodicChunks Name = "MEDIUM_PERIODIC_CHUNKS"
)

// Default is the mode a fresh client starts with.
const Default = SmallPeriodicChunks

// ErrUnknownMode is returned when a mode name is not in the registry.
var ErrUnknownMode = errors.New("modes: unknown mode")

// Mode describes how much data is requested up front and per periodic request.
type Mode struct {
	Name             Name
	InitialChunkSize int
	chunkSizes       []int
}

// ChunkSizes returns the selectable chunk sizes in display order.
func (m Mode) ChunkSizes() []int {
	return append([]int(nil), m.chunkSizes...)
}

// DefaultChunkSize is the first selectable chunk size.
func (m Mode) DefaultChunkSize() int {
	if len(m.chunkSizes) == 0 {
		return 0
	}
	return m.chunkSizes[0]
}

// Allows reports whether size is one of the mode's chunk sizes.
func (m Mode) Allows(size int) bool {
	for _, s := range m.chunkSizes {
		if s == size {
			return true
		}
	}
	return false
}

// DisplayName renders the mode name for humans ("SMALL PERIODIC CHUNKS").
func (m Mode) DisplayName() string {
	return strings.ReplaceAll(string(m.Name), "_", " ")
}

var registry = []Mode{
	{
		Name:             MediumPeriodicChunks,
		InitialChunkSize: 10000,
		chunkSizes:       []int{10000, 20000, 30000, 40000, 50000},
	},
	{
		Name:             LargeInitialChunk,
		InitialChunkSize: 1000000,
		chunkSizes:       []int{1, 5, 10, 15},
	},
	{
		Name:             SmallPeriodicChunks,
		InitialChunkSize: 500,
		chunkSizes:       []int{500, 1000, 2500, 5000},
	},
}

// All returns every registered mode in declaration order.
func All() []Mode {
	out := make([]Mode, len(registry))
	copy(out, registry)
	return out
}

// Lookup returns the mode registered under name.
func Lookup(name string) (Mode, error) {
	for _, m := range registry {
		if string(m.Name) == name {
			return m, nil
		}
	}
	return Mode{}, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// ChunkSizes returns the selectable chunk sizes of the named mode.
func ChunkSizes(name string) ([]int, error) {
	m, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	return m.ChunkSizes(), nil
}
