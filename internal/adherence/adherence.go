// Package adherence derives streaks and adherence percentages from
// medication taken logs.
package adherence

import (
	"math"
	"sort"
	"time"

	"healthcare-companion-server/internal/models"
)

// MonthlyWindowDays is the trailing window used for the headline adherence figure.
const MonthlyWindowDays = 30

// Stats is the summary served to patients.
type Stats struct {
	Streak           int `json:"streak"`
	MonthlyAdherence int `json:"monthlyAdherence"`
}

// Summarize computes both figures for today.
func Summarize(meds []models.Medication, today time.Time) Stats {
	return Stats{
		Streak:           Streak(meds, today),
		MonthlyAdherence: MonthlyAdherence(meds, today),
	}
}

// Streak counts consecutive calendar days, ending today or yesterday, with at
// least one taken dose of a medication that was active that day. Calendar
// days follow today's location.
func Streak(meds []models.Medication, today time.Time) int {
	loc := today.Location()
	seen := make(map[string]struct{})
	for i := range meds {
		for date := range meds[i].TakenLog.TakenDates() {
			if _, ok := seen[date]; ok {
				continue
			}
			day, err := time.ParseInLocation(models.DateLayout, date, loc)
			if err != nil || !meds[i].ActiveOn(day) {
				continue
			}
			seen[date] = struct{}{}
		}
	}

	// ordinal day numbers avoid DST-length days; future entries never count
	todayNum := dayNumber(time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC))
	days := make([]int, 0, len(seen))
	for date := range seen {
		d, _ := time.Parse(models.DateLayout, date)
		if n := dayNumber(d); n <= todayNum {
			days = append(days, n)
		}
	}
	if len(days) == 0 {
		return 0
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))

	if todayNum-days[0] > 1 {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] != 1 {
			break
		}
		streak++
	}
	return streak
}

func dayNumber(d time.Time) int {
	return int(d.Unix() / 86400)
}

// MonthlyAdherence is Adherence over the trailing 30 days.
func MonthlyAdherence(meds []models.Medication, today time.Time) int {
	return Adherence(meds, today, MonthlyWindowDays)
}

// Adherence is the rounded percentage of expected doses marked taken over the
// windowDays ending today. Each medication contributes its dose count on each
// day it is active; taken doses are capped at that count. With nothing
// expected the result is 100.
func Adherence(meds []models.Medication, today time.Time, windowDays int) int {
	if windowDays <= 0 {
		return 100
	}
	loc := today.Location()
	y, m, d := today.Date()
	var expected, taken int

	for offset := windowDays - 1; offset >= 0; offset-- {
		day := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		key := day.Format(models.DateLayout)
		for i := range meds {
			if !meds[i].ActiveOn(day) {
				continue
			}
			want := meds[i].ExpectedDoses()
			got := meds[i].TakenLog.TakenOn(key)
			if got > want {
				got = want
			}
			expected += want
			taken += got
		}
	}

	if expected == 0 {
		return 100
	}
	return int(math.Round(100 * float64(taken) / float64(expected)))
}
