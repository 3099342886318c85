package history

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the sizes, in bytes, of the recorded versions.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	Max    float64
	Latest int
}

func Summarize(versions []string) Summary {
	s := Summary{Count: len(versions)}
	if len(versions) == 0 {
		return s
	}
	sizes := make([]float64, len(versions))
	for i, v := range versions {
		sizes[i] = float64(len(v))
	}
	s.Mean = stat.Mean(sizes, nil)
	// sample deviation is undefined for a single version
	if len(sizes) > 1 {
		s.StdDev = stat.StdDev(sizes, nil)
	}
	s.Max = floats.Max(sizes)
	s.Latest = len(versions[len(versions)-1])
	return s
}

func (s Summary) String() string {
	if s.Count == 0 {
		return "versions: 0"
	}
	return fmt.Sprintf("versions: %d\nmean size: %.1f\nstddev: %.1f\nmax size: %.0f\nlatest size: %d",
		s.Count, s.Mean, s.StdDev, s.Max, s.Latest)
}

