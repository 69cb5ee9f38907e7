package ingest

import (
	"github.com/lox/weathertrack/internal/models"
)

const (
	FlagTempOutOfRange     = "temp_out_of_range"
	FlagTempRangeInverted  = "temp_range_inverted"
	FlagHumidityInvalid    = "humidity_invalid"
	FlagWindDirInvalid     = "wind_dir_invalid"
	FlagWindSpeedUnlikely  = "wind_speed_unlikely"
	FlagPressureOutOfRange = "pressure_out_of_range"
	FlagPrecipNegative     = "precip_negative"
	FlagNoCondition        = "no_condition"
)

// Plausibility bounds in metric units. They sit just outside the recorded
// surface extremes, so anything beyond them is a feed fault.
const (
	minTempC       = -90
	maxTempC       = 60
	maxWindSpeedMS = 120
	minPressureHPa = 850
	maxPressureHPa = 1090
)

// ValidateObservation returns quality flags for obs. The observation is still
// stored when flagged; flags are logged and counted.
func ValidateObservation(obs models.Observation) []string {
	var flags []string

	if obs.Main.Temp < minTempC || obs.Main.Temp > maxTempC {
		flags = append(flags, FlagTempOutOfRange)
	}

	if obs.Main.TempMin > obs.Main.TempMax {
		flags = append(flags, FlagTempRangeInverted)
	}

	if obs.Main.Humidity < 0 || obs.Main.Humidity > 100 {
		flags = append(flags, FlagHumidityInvalid)
	}

	if obs.Wind.Deg < 0 || obs.Wind.Deg > 360 {
		flags = append(flags, FlagWindDirInvalid)
	}

	if obs.Wind.Speed < 0 || obs.Wind.Speed > maxWindSpeedMS {
		flags = append(flags, FlagWindSpeedUnlikely)
	}

	// OWM omits pressure for some stations; zero means missing.
	if obs.Main.Pressure != 0 && (obs.Main.Pressure < minPressureHPa || obs.Main.Pressure > maxPressureHPa) {
		flags = append(flags, FlagPressureOutOfRange)
	}

	if negativePrecip(obs.Rain) || negativePrecip(obs.Snow) {
		flags = append(flags, FlagPrecipNegative)
	}

	if len(obs.Weather) == 0 {
		flags = append(flags, FlagNoCondition)
	}

	return flags
}

func negativePrecip(p *models.Precip) bool {
	return p != nil && p.OneHour != nil && *p.OneHour < 0
}
