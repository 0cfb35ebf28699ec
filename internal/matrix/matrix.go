// Package matrix supplies the items the pcmatrix pipeline moves around:
// small integer matrices, a seeded random generator, multiplication and a
// release tracker that catches leaks and double releases.
package matrix

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SinaHkz/pcmatrix/pkg/types"
)

const (
	// MaxDim bounds rows and columns of randomly sized matrices.
	MaxDim = 4
	// MaxValue bounds cell values, which start at 1.
	MaxValue = 10
)

type Matrix struct {
	Rows, Cols int
	Cells      [][]int

	released atomic.Bool
}

// Sum adds up every cell.
func Sum(m *Matrix) int64 {
	var s int64
	for _, row := range m.Cells {
		for _, v := range row {
			s += int64(v)
		}
	}
	return s
}

// Display writes m one row per line, each row framed by '|'.
func Display(w io.Writer, m *Matrix) error {
	_, err := io.WriteString(w, m.String())
	return err
}

func (m *Matrix) String() string {
	var sb strings.Builder
	for _, row := range m.Cells {
		sb.WriteByte('|')
		for _, v := range row {
			fmt.Fprintf(&sb, "%5d", v)
		}
		sb.WriteString("|\n")
	}
	return sb.String()
}

// Arena allocates matrices and keeps count of the ones not yet released.
type Arena struct {
	allocated atomic.Int64
	live      atomic.Int64
	doubles   atomic.Int64
}

// New returns a zeroed rows×cols matrix.
func (a *Arena) New(rows, cols int) *Matrix {
	cells := make([][]int, rows)
	for i := range cells {
		cells[i] = make([]int, cols)
	}
	a.allocated.Add(1)
	a.live.Add(1)
	return &Matrix{Rows: rows, Cols: cols, Cells: cells}
}

// Release ends the life of m. Releasing nil is a no-op; releasing twice is
// counted and otherwise ignored.
func (a *Arena) Release(m *Matrix) {
	if m == nil {
		return
	}
	if !m.released.CompareAndSwap(false, true) {
		a.doubles.Add(1)
		return
	}
	a.live.Add(-1)
}

// Multiply returns x·y, or types.ErrIncompatible when x.Cols != y.Rows.
func (a *Arena) Multiply(x, y *Matrix) (*Matrix, error) {
	if x.Cols != y.Rows {
		return nil, fmt.Errorf("%w: %dx%d · %dx%d", types.ErrIncompatible, x.Rows, x.Cols, y.Rows, y.Cols)
	}
	p := a.New(x.Rows, y.Cols)
	for i := 0; i < x.Rows; i++ {
		for j := 0; j < y.Cols; j++ {
			s := 0
			for k := 0; k < x.Cols; k++ {
				s += x.Cells[i][k] * y.Cells[k][j]
			}
			p.Cells[i][j] = s
		}
	}
	return p, nil
}

func (a *Arena) Allocated() int64      { return a.allocated.Load() }
func (a *Arena) Live() int64           { return a.live.Load() }
func (a *Arena) DoubleReleases() int64 { return a.doubles.Load() }

// Generator creates random matrices. Mode 0 picks rows and columns in
// 1..MaxDim for every matrix; mode n > 0 always yields n×n.
type Generator struct {
	arena *Arena
	mode  int

	mu  sync.Mutex // rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// NewGenerator seeds from the clock when seed is 0.
func NewGenerator(arena *Arena, mode int, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{arena: arena, mode: mode, rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Generate() (*Matrix, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rows, cols := g.mode, g.mode
	if g.mode == 0 {
		rows = 1 + g.rng.Intn(MaxDim)
		cols = 1 + g.rng.Intn(MaxDim)
	}
	m := g.arena.New(rows, cols)
	for i := range m.Cells {
		for j := range m.Cells[i] {
			m.Cells[i][j] = 1 + g.rng.Intn(MaxValue)
		}
	}
	return m, nil
}

// Kit bundles everything the workers need from this package for one
// Arena.
type Kit struct {
	*Generator
	Arena *Arena
}

// NewKit returns a Kit over a fresh Arena.
func NewKit(mode int, seed int64) Kit {
	a := &Arena{}
	return Kit{Generator: NewGenerator(a, mode, seed), Arena: a}
}

func (k Kit) Combine(a, b *Matrix) (*Matrix, error) { return k.Arena.Multiply(a, b) }
func (k Kit) Release(m *Matrix)                     { k.Arena.Release(m) }
func (k Kit) Sum(m *Matrix) int64                   { return Sum(m) }
