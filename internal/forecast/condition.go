package forecast

import (
	"strings"
	"time"
)

// WeatherCondition is a coarse category used to pick backgrounds and animations.
type WeatherCondition string

const (
	ConditionClearWarm    WeatherCondition = "clear_warm"
	ConditionClearCool    WeatherCondition = "clear_cool"
	ConditionPartlyCloudy WeatherCondition = "partly_cloudy"
	ConditionMostlyCloudy WeatherCondition = "mostly_cloudy"
	ConditionLightRain    WeatherCondition = "light_rain"
	ConditionHeavyRain    WeatherCondition = "heavy_rain"
	ConditionStorm        WeatherCondition = "storm"
	ConditionSnow         WeatherCondition = "snow"
	ConditionFog          WeatherCondition = "fog"
	ConditionHot          WeatherCondition = "hot"
	ConditionFrost        WeatherCondition = "frost"
)

// TimeOfDay represents the lighting period.
type TimeOfDay string

const (
	TimeDay   TimeOfDay = "day"
	TimeDusk  TimeOfDay = "dusk"
	TimeNight TimeOfDay = "night"
	TimeDawn  TimeOfDay = "dawn"
)

// GetTimeOfDay returns the time-of-day category for t in its own location.
func GetTimeOfDay(t time.Time) TimeOfDay {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 7:
		return TimeDawn
	case hour >= 7 && hour < 17:
		return TimeDay
	case hour >= 17 && hour < 20:
		return TimeDusk
	default:
		return TimeNight
	}
}

// TimeOfDayFromIcon reads the day/night suffix of an icon code ("01d", "10n").
func TimeOfDayFromIcon(icon string) TimeOfDay {
	if strings.HasSuffix(icon, "n") {
		return TimeNight
	}
	return TimeDay
}

// Categorize maps a condition group ("Rain", "Clouds", ...) and its description
// onto a WeatherCondition. Temperature extremes take priority over the sky.
func Categorize(main, description string, high, low float64) WeatherCondition {
	if high >= 35 {
		return ConditionHot
	}
	if low <= 0 && !strings.EqualFold(main, "Snow") {
		return ConditionFrost
	}

	desc := strings.ToLower(description)
	switch strings.ToLower(main) {
	case "thunderstorm":
		return ConditionStorm
	case "snow":
		return ConditionSnow
	case "rain":
		if strings.Contains(desc, "heavy") || strings.Contains(desc, "extreme") {
			return ConditionHeavyRain
		}
		return ConditionLightRain
	case "drizzle":
		return ConditionLightRain
	case "mist", "fog", "haze", "smoke", "dust", "sand":
		return ConditionFog
	case "clouds":
		if strings.Contains(desc, "overcast") || strings.Contains(desc, "broken") {
			return ConditionMostlyCloudy
		}
		return ConditionPartlyCloudy
	}

	// Unknown group: fall back to the description text.
	switch {
	case strings.Contains(desc, "thunder") || strings.Contains(desc, "storm"):
		return ConditionStorm
	case strings.Contains(desc, "snow") || strings.Contains(desc, "sleet"):
		return ConditionSnow
	case strings.Contains(desc, "heavy rain"):
		return ConditionHeavyRain
	case strings.Contains(desc, "rain") || strings.Contains(desc, "shower") || strings.Contains(desc, "drizzle"):
		return ConditionLightRain
	case strings.Contains(desc, "fog") || strings.Contains(desc, "mist") || strings.Contains(desc, "haze"):
		return ConditionFog
	case strings.Contains(desc, "overcast"):
		return ConditionMostlyCloudy
	case strings.Contains(desc, "cloud"):
		return ConditionPartlyCloudy
	}

	if high >= 25 {
		return ConditionClearWarm
	}
	return ConditionClearCool
}
