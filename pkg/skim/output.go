package skim

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"access_router/pkg/matrix"
)

// WriteOutput writes one long-form CSV per profile and indicator into dir,
// named <profile>_<indicator>.csv, plus outliers.csv when any were found.
// Unreached pairs are omitted. Returns the written paths.
func WriteOutput(dir string, out *Output) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var written []string
	for _, r := range out.Results {
		indicators := map[string]*matrix.Numeric[float64]{
			"cost":     r.Cost,
			"time":     r.Time,
			"distance": r.Distance,
		}
		for i, m := range r.Attributes {
			indicators[r.AttrNames[i]] = m
		}
		for name, m := range indicators {
			path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", r.Profile, name))
			if err := writeFile(path, func(f *os.File) error {
				return matrix.WriteCSV(f, m.Dense, matrix.FormatFloat(3))
			}); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}

	if len(out.Outliers) > 0 {
		path := filepath.Join(dir, "outliers.csv")
		if err := writeFile(path, func(f *os.File) error { return writeOutliers(f, out.Outliers) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	sort.Strings(written)
	return written, nil
}

func writeOutliers(f *os.File, outliers map[string]Detour) error {
	keys := make([]string, 0, len(outliers))
	for k := range outliers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := csv.NewWriter(f)
	w.Write([]string{"origin", "destination", "ratio", "distance_0", "distance_1"})
	for _, k := range keys {
		d := outliers[k]
		w.Write([]string{
			d.Origin,
			d.Destination,
			strconv.FormatFloat(d.Ratio, 'f', 4, 64),
			strconv.FormatFloat(d.Distance[0], 'f', 1, 64),
			strconv.FormatFloat(d.Distance[1], 'f', 1, 64),
		})
	}
	w.Flush()
	return w.Error()
}

// WriteAccessibility writes zone,<profile>... rows to path.
func WriteAccessibility(path string, acc *Accessibility) error {
	profiles := make([]string, 0, len(acc.Scores))
	for p := range acc.Scores {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)

	return writeFile(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		w.Write(append([]string{"zone"}, profiles...))
		rec := make([]string, len(profiles)+1)
		for row, id := range acc.Origins.IDs() {
			rec[0] = id
			for i, p := range profiles {
				rec[i+1] = strconv.FormatFloat(acc.Scores[p][row], 'f', 4, 64)
			}
			w.Write(rec)
		}
		w.Flush()
		return w.Error()
	})
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
