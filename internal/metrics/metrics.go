// Package metrics implements the training stress and fitness model:
// per-activity TSS, normalized power, and the CTL/ATL/TSB time series.
package metrics

import (
	"math"
	"sort"
	"time"
)

// Time constants for the fitness model (days)
const (
	CTLDays = 42.0 // chronic load - "fitness"
	ATLDays = 7.0  // acute load - "fatigue"
)

// DefaultTSSPerHour is used when an activity has neither power nor
// heart rate data
const DefaultTSSPerHour = 50.0

// TSSFromPower computes Training Stress Score from normalized power.
// Returns 0 when FTP or NP is not positive.
func TSSFromPower(durationSeconds int, normalizedPower, ftp float64) float64 {
	if ftp <= 0 || normalizedPower <= 0 || durationSeconds <= 0 {
		return 0
	}
	hours := float64(durationSeconds) / 3600.0
	intensity := normalizedPower / ftp
	return round1(hours * normalizedPower * intensity / ftp * 100)
}

// TSSFromHeartRate estimates Training Stress Score from average heart
// rate against the athlete's threshold heart rate. Returns 0 when
// either rate is not positive.
func TSSFromHeartRate(durationSeconds int, avgHR, thresholdHR float64) float64 {
	if thresholdHR <= 0 || avgHR <= 0 || durationSeconds <= 0 {
		return 0
	}
	hours := float64(durationSeconds) / 3600.0
	intensity := avgHR / thresholdHR
	return round1(hours * intensity * intensity * 100)
}

// TSSFromDuration is the last-resort estimate for activities with no
// power or heart rate data
func TSSFromDuration(durationSeconds int) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return round1(float64(durationSeconds) / 3600.0 * DefaultTSSPerHour)
}

// NormalizedPower computes NP from a power stream: 30-second rolling
// average, fourth power, mean, fourth root. The rolling window covers
// 30 seconds' worth of samples at the stream's sampling interval, with
// a floor of one sample. Streams shorter than one window return 0.
func NormalizedPower(watts []float64, samplingIntervalSeconds int) float64 {
	if samplingIntervalSeconds <= 0 {
		samplingIntervalSeconds = 1
	}
	window := 30 / samplingIntervalSeconds
	if window < 1 {
		window = 1
	}
	if len(watts) < window {
		return 0
	}

	var sum float64
	for _, w := range watts[:window] {
		sum += w
	}

	var fourthPowerSum float64
	n := len(watts) - window + 1
	for i := 0; ; i++ {
		avg := sum / float64(window)
		fourthPowerSum += avg * avg * avg * avg
		if i+window >= len(watts) {
			break
		}
		sum += watts[i+window] - watts[i]
	}

	return round1(math.Pow(fourthPowerSum/float64(n), 0.25))
}

// IntensityFactor is NP relative to FTP. Returns 0 when FTP is not positive.
func IntensityFactor(normalizedPower, ftp float64) float64 {
	if ftp <= 0 {
		return 0
	}
	return round3(normalizedPower / ftp)
}

// VariabilityIndex is NP over average power, a measure of how surgy an
// effort was. Returns 0 when average power is not positive.
func VariabilityIndex(normalizedPower, avgPower float64) float64 {
	if avgPower <= 0 {
		return 0
	}
	return round3(normalizedPower / avgPower)
}

// EfficiencyFactor is NP over average heart rate. Returns 0 when
// average heart rate is not positive.
func EfficiencyFactor(normalizedPower, avgHR float64) float64 {
	if avgHR <= 0 {
		return 0
	}
	return round3(normalizedPower / avgHR)
}

// EstimateFTP estimates functional threshold power from a maximal
// effort's power and duration, preferring NP and falling back to
// average power when no NP is available. Efforts outside the
// recognized test durations (roughly 5, 20 and 60 minutes) return 0.
func EstimateFTP(durationSeconds int, avgPower, normalizedPower float64) float64 {
	power := normalizedPower
	if power <= 0 {
		power = avgPower
	}
	if power <= 0 {
		return 0
	}
	d := float64(durationSeconds)
	switch {
	case within(d, 5*60, 0.10):
		return round1(power * 0.93)
	case within(d, 20*60, 0.10):
		return round1(power * 0.95)
	case within(d, 60*60, 0.10):
		return round1(power)
	default:
		return 0
	}
}

func within(v, target, tolerance float64) bool {
	return v >= target*(1-tolerance) && v <= target*(1+tolerance)
}

// DailyTSS is one day's aggregate training stress
type DailyTSS struct {
	Date          time.Time
	TSS           float64
	ActivityCount int
}

// FitnessPoint is one day of the CTL/ATL/TSB series
type FitnessPoint struct {
	Date          time.Time
	DailyTSS      float64
	ActivityCount int
	CTL           float64
	ATL           float64
	TSB           float64
	RampRate      float64
}

// Seed carries the previous day's CTL/ATL into a fold so an
// incremental recompute continues the series instead of restarting it.
// PriorCTLs holds up to seven CTL values from the days leading into
// the fold, oldest first and ending the day before the first folded
// day, so the trailing-7-day ramp rate stays exact across the join.
type Seed struct {
	CTL       float64
	ATL       float64
	PriorCTLs []float64
}

// FitnessSeries folds daily TSS values into the CTL/ATL/TSB series.
// Each value moves the averages by 1/42 (CTL) and 1/7 (ATL) of the
// distance to that day's TSS. Days with no entry between the first and
// last date count as zero-TSS rest days, which keeps the recursion
// continuous. RampRate is the CTL change over the trailing 7 days.
func FitnessSeries(days []DailyTSS, seed Seed) []FitnessPoint {
	if len(days) == 0 {
		return nil
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})

	type dayLoad struct {
		tss   float64
		count int
	}
	loadMap := make(map[string]dayLoad)
	for _, d := range days {
		key := d.Date.Format("2006-01-02")
		entry := loadMap[key]
		entry.tss += d.TSS
		entry.count += d.ActivityCount
		loadMap[key] = entry
	}

	start := dateOnly(days[0].Date)
	end := dateOnly(days[len(days)-1].Date)

	ctl, atl := seed.CTL, seed.ATL
	var series []FitnessPoint
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		load := loadMap[d.Format("2006-01-02")]

		ctl = round2(ctl + (load.tss-ctl)/CTLDays)
		atl = round2(atl + (load.tss-atl)/ATLDays)

		point := FitnessPoint{
			Date:          d,
			DailyTSS:      round1(load.tss),
			ActivityCount: load.count,
			CTL:           ctl,
			ATL:           atl,
			TSB:           round2(ctl - atl),
		}
		i := len(series)
		switch {
		case i >= 7:
			point.RampRate = round2(ctl - series[i-7].CTL)
		case len(seed.PriorCTLs) > 0:
			// A short history means the whole series is younger than a
			// week, matching a from-scratch fold's zero baseline
			prior := 0.0
			if j := len(seed.PriorCTLs) + i - 7; j >= 0 {
				prior = seed.PriorCTLs[j]
			}
			point.RampRate = round2(ctl - prior)
		default:
			point.RampRate = round2(ctl - seed.CTL)
		}
		series = append(series, point)
	}

	return series
}

// FormDescription returns a human-readable description of TSB
func FormDescription(tsb float64) string {
	switch {
	case tsb > 25:
		return "Very fresh (possibly detrained)"
	case tsb > 10:
		return "Fresh and ready to race"
	case tsb > 0:
		return "Neutral - good for training"
	case tsb > -10:
		return "Slightly fatigued"
	case tsb > -25:
		return "Tired but building fitness"
	default:
		return "Very fatigued - rest needed"
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
