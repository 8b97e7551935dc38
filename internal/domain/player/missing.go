package player

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// MissingStrategy decides how absent numeric values are treated when a
// snapshot is loaded.
type MissingStrategy string

const (
	MissingKeep   MissingStrategy = "keep"
	MissingZero   MissingStrategy = "zero"
	MissingMean   MissingStrategy = "mean"
	MissingMedian MissingStrategy = "median"
	MissingDrop   MissingStrategy = "drop"
)

func ParseMissingStrategy(v string) (MissingStrategy, error) {
	s := MissingStrategy(strings.ToLower(strings.TrimSpace(v)))
	switch s {
	case "":
		return MissingKeep, nil
	case MissingKeep, MissingZero, MissingMean, MissingMedian, MissingDrop:
		return s, nil
	default:
		return "", fmt.Errorf("invalid missing value strategy %q", v)
	}
}

// FillMissing returns a copy of t with absent stats replaced according to
// strategy. Only columns that carry at least one numeric value are
// considered numeric. MissingDrop removes every row with a gap. NaN and
// infinite values are dropped first, so every strategy sees them as gaps.
func FillMissing(t Table, strategy MissingStrategy) Table {
	out := t.Clone()
	for _, r := range out.Records {
		for col, v := range r.Stats {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				delete(r.Stats, col)
			}
		}
	}
	if strategy == MissingKeep || strategy == "" {
		return out
	}

	numeric := numericColumns(out)

	if strategy == MissingDrop {
		kept := out.Records[:0]
		for _, r := range out.Records {
			complete := true
			for _, col := range numeric {
				if _, ok := r.Stats[col]; !ok {
					complete = false
					break
				}
			}
			if complete {
				kept = append(kept, r)
			}
		}
		out.Records = kept
		return out
	}

	for _, col := range numeric {
		fill := 0.0
		switch strategy {
		case MissingMean:
			fill = stat.Mean(presentValues(out, col), nil)
		case MissingMedian:
			fill = median(presentValues(out, col))
		}
		for i := range out.Records {
			if _, ok := out.Records[i].Stats[col]; !ok {
				out.Records[i].Stats[col] = fill
			}
		}
	}
	return out
}

func numericColumns(t Table) []string {
	out := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		for _, r := range t.Records {
			if _, ok := r.Stats[col]; ok {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

func presentValues(t Table, col string) []float64 {
	out := make([]float64, 0, len(t.Records))
	for _, r := range t.Records {
		if v, ok := r.Stats[col]; ok {
			out = append(out, v)
		}
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
