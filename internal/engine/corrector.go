package engine

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// DefaultZThreshold is the |z| above which a value is replaced by its group mean.
const DefaultZThreshold = 3.0

// Corrector replaces statistical outliers within a reading-type group by the
// group mean.
type Corrector struct {
	Threshold float64
}

// CorrectGroup rewrites values in place. Mean and sample standard deviation
// are computed once over the uncorrected values. It returns the number of
// replaced values, or a warning when the group has fewer than two values or
// zero spread and was left untouched.
func (c Corrector) CorrectGroup(readingType string, values []float64) (int, *DegenerateGroupWarning) {
	if len(values) < 2 {
		return 0, &DegenerateGroupWarning{ReadingType: readingType, Count: len(values)}
	}

	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return 0, &DegenerateGroupWarning{ReadingType: readingType, Count: len(values), StdDev: std}
	}

	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultZThreshold
	}

	corrected := 0
	for i, v := range values {
		if math.Abs((v-mean)/std) > threshold {
			values[i] = mean
			corrected++
		}
	}
	return corrected, nil
}
