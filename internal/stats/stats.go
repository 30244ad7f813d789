package stats

import (
	"math"
	"sort"
	"strconv"
)

// Summary of a month of ratings.
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64 // population
}

// Summarize returns false for an empty input.
func Summarize(ratings []int) (Summary, bool) {
	n := len(ratings)
	if n == 0 {
		return Summary{}, false
	}

	sorted := make([]int, n)
	copy(sorted, ratings)
	sort.Ints(sorted)

	var sum float64
	for _, r := range sorted {
		sum += float64(r)
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 1 {
		median = float64(sorted[n/2])
	} else {
		median = float64(sorted[n/2-1]+sorted[n/2]) / 2
	}

	var sq float64
	for _, r := range sorted {
		d := float64(r) - mean
		sq += d * d
	}

	return Summary{
		Count:  n,
		Mean:   mean,
		Median: median,
		StdDev: math.Sqrt(sq / float64(n)),
	}, true
}

// Format prints whole numbers without decimals and everything else with two.
func Format(v float64) string {
	r := math.Round(v*100) / 100
	if r == math.Trunc(r) {
		return strconv.FormatFloat(r, 'f', 0, 64)
	}
	return strconv.FormatFloat(r, 'f', 2, 64)
}
