// Package matrix provides dense origin-destination matrices over flat
// slices with identifier maps fixed at construction.
//
// Matrices carry no locks. Concurrent writers must partition cells so that
// each cell has exactly one writer, e.g. one worker per origin row.
package matrix

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateID = errors.New("matrix: duplicate id")
	ErrUnknownID   = errors.New("matrix: unknown id")
)

// Index maps identifiers to contiguous positions in construction order.
type Index[K comparable] struct {
	ids []K
	pos map[K]int
}

// NewIndex builds an Index over ids. Duplicates are rejected.
func NewIndex[K comparable](ids []K) (*Index[K], error) {
	ix := &Index[K]{
		ids: make([]K, len(ids)),
		pos: make(map[K]int, len(ids)),
	}
	copy(ix.ids, ids)
	for i, id := range ids {
		if _, dup := ix.pos[id]; dup {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateID, id)
		}
		ix.pos[id] = i
	}
	return ix, nil
}

// Pos returns the position of id.
func (ix *Index[K]) Pos(id K) (int, bool) {
	i, ok := ix.pos[id]
	return i, ok
}

func (ix *Index[K]) ID(i int) K { return ix.ids[i] }
func (ix *Index[K]) Len() int   { return len(ix.ids) }
func (ix *Index[K]) IDs() []K   { return ix.ids }

// Dense is a rows x cols matrix stored row-major in one slice.
type Dense[T any] struct {
	rows, cols *Index[string]
	data       []T
}

// NewDense allocates a zero-valued matrix.
func NewDense[T any](rows, cols *Index[string]) *Dense[T] {
	return &Dense[T]{
		rows: rows,
		cols: cols,
		data: make([]T, rows.Len()*cols.Len()),
	}
}

func (m *Dense[T]) Rows() *Index[string] { return m.rows }
func (m *Dense[T]) Cols() *Index[string] { return m.cols }

func (m *Dense[T]) at(r, c int) int {
	if r < 0 || r >= m.rows.Len() || c < 0 || c >= m.cols.Len() {
		panic(fmt.Sprintf("matrix: cell (%d, %d) out of range %dx%d", r, c, m.rows.Len(), m.cols.Len()))
	}
	return r*m.cols.Len() + c
}

func (m *Dense[T]) Get(r, c int) T    { return m.data[m.at(r, c)] }
func (m *Dense[T]) Set(r, c int, v T) { m.data[m.at(r, c)] = v }

// Row returns row r as a slice sharing the matrix storage.
// A matrix without columns yields empty rows.
func (m *Dense[T]) Row(r int) []T {
	if r < 0 || r >= m.rows.Len() {
		panic(fmt.Sprintf("matrix: row %d out of range %d", r, m.rows.Len()))
	}
	n := m.cols.Len()
	return m.data[r*n : r*n+n]
}

func (m *Dense[T]) cell(origin, destination string) (int, error) {
	r, ok := m.rows.Pos(origin)
	if !ok {
		return 0, fmt.Errorf("%w: origin %q", ErrUnknownID, origin)
	}
	c, ok := m.cols.Pos(destination)
	if !ok {
		return 0, fmt.Errorf("%w: destination %q", ErrUnknownID, destination)
	}
	return r*m.cols.Len() + c, nil
}

// GetByID reads the cell of an (origin, destination) id pair.
func (m *Dense[T]) GetByID(origin, destination string) (T, error) {
	i, err := m.cell(origin, destination)
	if err != nil {
		var zero T
		return zero, err
	}
	return m.data[i], nil
}

// SetByID writes the cell of an (origin, destination) id pair.
func (m *Dense[T]) SetByID(origin, destination string, v T) error {
	i, err := m.cell(origin, destination)
	if err != nil {
		return err
	}
	m.data[i] = v
	return nil
}

// Number is the set of element types arithmetic matrices support.
type Number interface {
	~float32 | ~float64 | ~int16 | ~int32 | ~int64
}

// Numeric adds in-place arithmetic to Dense.
type Numeric[T Number] struct {
	*Dense[T]
}

func NewNumeric[T Number](rows, cols *Index[string]) *Numeric[T] {
	return &Numeric[T]{NewDense[T](rows, cols)}
}

func (m *Numeric[T]) Add(r, c int, v T)      { m.data[m.at(r, c)] += v }
func (m *Numeric[T]) Multiply(r, c int, v T) { m.data[m.at(r, c)] *= v }

// Fill sets every cell to v.
func (m *Numeric[T]) Fill(v T) {
	for i := range m.data {
		m.data[i] = v
	}
}

// NewFloat allocates a float64 matrix.
func NewFloat(rows, cols *Index[string]) *Numeric[float64] { return NewNumeric[float64](rows, cols) }

// NewShort allocates an int16 matrix for compact counts or minutes.
func NewShort(rows, cols *Index[string]) *Numeric[int16] { return NewNumeric[int16](rows, cols) }

// NewObject allocates a matrix of arbitrary values, e.g. link paths.
func NewObject[T any](rows, cols *Index[string]) *Dense[T] { return NewDense[T](rows, cols) }
