package engine

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/chrissnell/sensorpipe/internal/types"
)

// DefaultRollingWindow is the number of daily averages in the trailing mean.
const DefaultRollingWindow = 7

const dateLayout = "2006-01-02"

type seriesKey struct {
	sensorID    string
	readingType string
}

type dayKey struct {
	seriesKey
	date string
}

type accumulator struct {
	sum float64
	n   int
}

func (a accumulator) mean() float64 {
	return a.sum / float64(a.n)
}

// aggregate fills Date, DailyAvg and Rolling7DayAvg on every row. Dates are
// taken from the timestamps as already localized. The rolling mean runs over
// the distinct dates present in each (sensor, type) series, not calendar days.
func aggregate(rows []types.EnrichedReading, window int) {
	if window < 1 {
		window = DefaultRollingWindow
	}

	daily := make(map[dayKey]*accumulator)
	dates := make(map[seriesKey][]string)

	for i := range rows {
		r := &rows[i]
		r.Date = r.Timestamp.Format(dateLayout)

		sk := seriesKey{sensorID: r.SensorID, readingType: r.ReadingType}
		dk := dayKey{seriesKey: sk, date: r.Date}
		acc, ok := daily[dk]
		if !ok {
			acc = &accumulator{}
			daily[dk] = acc
			dates[sk] = append(dates[sk], r.Date)
		}
		acc.sum += *r.Value
		acc.n++
	}

	rolling := make(map[dayKey]float64, len(daily))
	for sk, ds := range dates {
		sort.Strings(ds)
		avgs := make([]float64, len(ds))
		for i, d := range ds {
			avgs[i] = daily[dayKey{seriesKey: sk, date: d}].mean()
		}
		for i, d := range ds {
			start := i - window + 1
			if start < 0 {
				start = 0
			}
			rolling[dayKey{seriesKey: sk, date: d}] = stat.Mean(avgs[start:i+1], nil)
		}
	}

	for i := range rows {
		r := &rows[i]
		dk := dayKey{seriesKey: seriesKey{sensorID: r.SensorID, readingType: r.ReadingType}, date: r.Date}
		r.DailyAvg = daily[dk].mean()
		r.Rolling7DayAvg = rolling[dk]
	}
}
