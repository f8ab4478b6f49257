package metrics

import (
	"math"

	"stravaload/internal/store"
)

// zoneCeiling caps the top zone so every sample falls in some band
const zoneCeiling = 10000

// DefaultHRZones builds the standard five-zone model from maximum
// heart rate. Bands are half-open: a sample on a boundary belongs to
// the higher zone.
func DefaultHRZones(athleteID int64, maxHR float64) []store.TrainingZone {
	bands := []struct {
		number    int
		low, high float64 // fraction of max HR; high < 0 means open-ended
		name      string
		desc      string
	}{
		{1, 0.00, 0.60, "Recovery", "Active recovery, very easy effort"},
		{2, 0.60, 0.70, "Endurance", "Aerobic base building"},
		{3, 0.70, 0.80, "Tempo", "Sustained moderate effort"},
		{4, 0.80, 0.90, "Threshold", "Lactate threshold work"},
		{5, 0.90, -1, "VO2 Max", "Maximal aerobic effort"},
	}

	zones := make([]store.TrainingZone, 0, len(bands))
	for _, b := range bands {
		high := float64(zoneCeiling)
		if b.high >= 0 {
			high = math.Round(maxHR * b.high)
		}
		zones = append(zones, store.TrainingZone{
			AthleteID:   athleteID,
			ZoneType:    store.ZoneTypeHeartRate,
			ZoneNumber:  b.number,
			MinValue:    math.Round(maxHR * b.low),
			MaxValue:    high,
			Name:        b.name,
			Description: b.desc,
		})
	}
	return zones
}

// DefaultPowerZones builds the standard seven-zone model from FTP
func DefaultPowerZones(athleteID int64, ftp float64) []store.TrainingZone {
	bands := []struct {
		number    int
		low, high float64 // fraction of FTP; high < 0 means open-ended
		name      string
		desc      string
	}{
		{1, 0.00, 0.55, "Active Recovery", "Very easy spinning"},
		{2, 0.55, 0.75, "Endurance", "All-day aerobic pace"},
		{3, 0.75, 0.90, "Tempo", "Brisk group ride effort"},
		{4, 0.90, 1.05, "Threshold", "Time trial effort"},
		{5, 1.05, 1.20, "VO2 Max", "Hard 3-8 minute intervals"},
		{6, 1.20, 1.50, "Anaerobic", "Short maximal intervals"},
		{7, 1.50, -1, "Neuromuscular", "Sprints"},
	}

	zones := make([]store.TrainingZone, 0, len(bands))
	for _, b := range bands {
		high := float64(zoneCeiling)
		if b.high >= 0 {
			high = math.Round(ftp * b.high)
		}
		zones = append(zones, store.TrainingZone{
			AthleteID:   athleteID,
			ZoneType:    store.ZoneTypePower,
			ZoneNumber:  b.number,
			MinValue:    math.Round(ftp * b.low),
			MaxValue:    high,
			Name:        b.name,
			Description: b.desc,
		})
	}
	return zones
}

// TimeInZones buckets a sample stream into seconds per zone, with each
// sample worth one sampling interval. Zones are checked in the order
// given and each sample counts toward the first zone whose half-open
// [min, max) interval contains it. Samples matching no zone are
// dropped.
func TimeInZones(samples []float64, zones []store.TrainingZone, samplingIntervalSeconds int) map[int]int {
	if samplingIntervalSeconds <= 0 {
		samplingIntervalSeconds = 1
	}
	result := make(map[int]int, len(zones))
	for _, z := range zones {
		result[z.ZoneNumber] = 0
	}
	for _, v := range samples {
		for i := range zones {
			if zones[i].Contains(v) {
				result[zones[i].ZoneNumber] += samplingIntervalSeconds
				break
			}
		}
	}
	return result
}
