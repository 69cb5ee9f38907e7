package forecast

import (
	"testing"
	"time"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name        string
		main        string
		description string
		high        float64
		low         float64
		want        WeatherCondition
	}{
		{"hot day overrides sky", "Clouds", "few clouds", 38, 22, ConditionHot},
		{"frost overrides clear", "Clear", "clear sky", 8, -2, ConditionFrost},
		{"snow is not frost", "Snow", "light snow", 1, -3, ConditionSnow},
		{"thunderstorm", "Thunderstorm", "thunderstorm with rain", 28, 18, ConditionStorm},
		{"heavy rain", "Rain", "heavy intensity rain", 20, 15, ConditionHeavyRain},
		{"light rain", "Rain", "light rain", 22, 14, ConditionLightRain},
		{"drizzle", "Drizzle", "light intensity drizzle", 18, 12, ConditionLightRain},
		{"mist", "Mist", "mist", 18, 12, ConditionFog},
		{"overcast", "Clouds", "overcast clouds", 20, 12, ConditionMostlyCloudy},
		{"broken clouds", "Clouds", "broken clouds", 20, 12, ConditionMostlyCloudy},
		{"scattered clouds", "Clouds", "scattered clouds", 26, 16, ConditionPartlyCloudy},
		{"clear warm", "Clear", "clear sky", 28, 18, ConditionClearWarm},
		{"clear cool", "Clear", "clear sky", 18, 8, ConditionClearCool},
		{"unknown group uses description", "", "Showers developing", 20, 12, ConditionLightRain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Categorize(tt.main, tt.description, tt.high, tt.low)
			if got != tt.want {
				t.Errorf("Categorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeOfDay(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2024, 3, 1, h, 0, 0, 0, time.UTC) }
	tests := []struct {
		hour int
		want TimeOfDay
	}{
		{3, TimeNight},
		{5, TimeDawn},
		{12, TimeDay},
		{18, TimeDusk},
		{22, TimeNight},
	}
	for _, tt := range tests {
		if got := GetTimeOfDay(at(tt.hour)); got != tt.want {
			t.Errorf("GetTimeOfDay(%d:00) = %v, want %v", tt.hour, got, tt.want)
		}
	}

	if got := TimeOfDayFromIcon("10n"); got != TimeNight {
		t.Errorf("TimeOfDayFromIcon(10n) = %v, want night", got)
	}
	if got := TimeOfDayFromIcon("01d"); got != TimeDay {
		t.Errorf("TimeOfDayFromIcon(01d) = %v, want day", got)
	}
}
