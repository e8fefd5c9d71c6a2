package matrix

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// Formatter renders one cell. Returning false skips the cell.
type Formatter[T any] func(v T) (string, bool)

// FormatFloat writes finite values with prec decimals and skips unreached
// (+Inf or NaN) cells.
func FormatFloat(prec int) Formatter[float64] {
	return func(v float64) (string, bool) {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', prec, 64), true
	}
}

// FormatShort writes every int16 cell.
func FormatShort(v int16) (string, bool) {
	return strconv.FormatInt(int64(v), 10), true
}

// WriteCSV writes m in long form with header origin,destination,value.
func WriteCSV[T any](w io.Writer, m *Dense[T], format Formatter[T]) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"origin", "destination", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, 3)
	for r := 0; r < m.rows.Len(); r++ {
		row := m.Row(r)
		rec[0] = m.rows.ID(r)
		for c, v := range row {
			s, ok := format(v)
			if !ok {
				continue
			}
			rec[1] = m.cols.ID(c)
			rec[2] = s
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write row %s: %w", rec[0], err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
