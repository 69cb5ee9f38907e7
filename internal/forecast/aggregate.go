package forecast

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lox/weathertrack/internal/models"
)

// ErrInvalidInput marks structurally impossible input, such as an empty day.
var ErrInvalidInput = errors.New("invalid forecast input")

// MaxDays caps the number of daily summaries produced from a feed.
const MaxDays = 5

const (
	dateLayout   = "2006-01-02"
	middayPrefix = "12:00"
)

// DayGroup is the samples of one calendar day, in feed order.
type DayGroup struct {
	Date    string
	Samples []models.ForecastSample
}

// DayKey returns the calendar date of a sample as written by the feed. The
// feed's own date-time text is authoritative; dt is only used when it is absent.
func DayKey(s models.ForecastSample) string {
	if s.DtTxt != "" {
		date, _, _ := strings.Cut(s.DtTxt, " ")
		return date
	}
	return time.Unix(s.Dt, 0).UTC().Format(dateLayout)
}

func isMidday(s models.ForecastSample) bool {
	if s.DtTxt != "" {
		_, clock, ok := strings.Cut(s.DtTxt, " ")
		return ok && strings.HasPrefix(clock, middayPrefix)
	}
	t := time.Unix(s.Dt, 0).UTC()
	return t.Hour() == 12 && t.Minute() == 0
}

// GroupByDay buckets samples by calendar date. Days keep first-occurrence order.
func GroupByDay(samples []models.ForecastSample) []DayGroup {
	groups := []DayGroup{}
	index := make(map[string]int)
	for _, s := range samples {
		key := DayKey(s)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Date: key})
		}
		groups[i].Samples = append(groups[i].Samples, s)
	}
	return groups
}

// HighLow returns the max and min of the samples' temperatures.
func HighLow(day []models.ForecastSample) (high, low float64, err error) {
	if len(day) == 0 {
		return 0, 0, fmt.Errorf("high/low: empty day: %w", ErrInvalidInput)
	}
	high, low = day[0].Main.Temp, day[0].Main.Temp
	for _, s := range day[1:] {
		if s.Main.Temp > high {
			high = s.Main.Temp
		}
		if s.Main.Temp < low {
			low = s.Main.Temp
		}
	}
	return high, low, nil
}

// RepresentativeCondition picks the midday sample, falling back to the first
// sample of the day.
func RepresentativeCondition(day []models.ForecastSample) (description, icon string, err error) {
	if len(day) == 0 {
		return "", "", fmt.Errorf("representative condition: empty day: %w", ErrInvalidInput)
	}
	rep := day[0]
	for _, s := range day {
		if isMidday(s) {
			rep = s
			break
		}
	}
	if len(rep.Weather) == 0 {
		return "", "", nil
	}
	return rep.Weather[0].Description, rep.Weather[0].Icon, nil
}

// PeakPrecipitation returns the highest probability of precipitation in the day.
func PeakPrecipitation(day []models.ForecastSample) (float64, error) {
	if len(day) == 0 {
		return 0, fmt.Errorf("peak precipitation: empty day: %w", ErrInvalidInput)
	}
	peak := day[0].Pop
	for _, s := range day[1:] {
		if s.Pop > peak {
			peak = s.Pop
		}
	}
	return peak, nil
}

// Summarize turns a 3-hourly feed into at most MaxDays daily summaries.
func Summarize(samples []models.ForecastSample) ([]models.DailySummary, error) {
	groups := GroupByDay(samples)
	if len(groups) > MaxDays {
		groups = groups[:MaxDays]
	}

	summaries := make([]models.DailySummary, 0, len(groups))
	for _, g := range groups {
		high, low, err := HighLow(g.Samples)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", g.Date, err)
		}
		desc, icon, err := RepresentativeCondition(g.Samples)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", g.Date, err)
		}
		pop, err := PeakPrecipitation(g.Samples)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", g.Date, err)
		}
		summaries = append(summaries, models.DailySummary{
			Date:              g.Date,
			High:              high,
			Low:               low,
			Condition:         desc,
			IconCode:          icon,
			PrecipProbability: pop,
		})
	}
	return summaries, nil
}
