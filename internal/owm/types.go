package owm

import (
	"time"

	"github.com/lox/weathertrack/internal/models"
)

// CurrentWeather is the /data/2.5/weather payload.
type CurrentWeather struct {
	Coord      models.Coord       `json:"coord"`
	Weather    []models.Condition `json:"weather"`
	Main       models.MainReading `json:"main"`
	Visibility int                `json:"visibility"`
	Wind       models.Wind        `json:"wind"`
	Clouds     Clouds             `json:"clouds"`
	Rain       *models.Precip     `json:"rain,omitempty"`
	Snow       *models.Precip     `json:"snow,omitempty"`
	Dt         int64              `json:"dt"`
	Sys        Sys                `json:"sys"`
	Timezone   int                `json:"timezone"`
	ID         int64              `json:"id"`
	Name       string             `json:"name"`
}

type Clouds struct {
	All int `json:"all"`
}

type Sys struct {
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// Observation extracts the fields the history store records.
func (c CurrentWeather) Observation() models.Observation {
	return models.Observation{
		Main:    c.Main,
		Wind:    c.Wind,
		Rain:    c.Rain,
		Snow:    c.Snow,
		Weather: c.Weather,
	}
}

// LocalTime is the observation time at the reported place, using the
// payload's UTC offset. ok is false when the payload carries no dt.
func (c CurrentWeather) LocalTime() (t time.Time, ok bool) {
	if c.Dt == 0 {
		return time.Time{}, false
	}
	return time.Unix(c.Dt, 0).In(time.FixedZone("", c.Timezone)), true
}

// Forecast is the /data/2.5/forecast payload: 3-hourly samples for five days.
type Forecast struct {
	Cnt  int                     `json:"cnt"`
	List []models.ForecastSample `json:"list"`
	City ForecastCity            `json:"city"`
}

type ForecastCity struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Coord    models.Coord `json:"coord"`
	Country  string       `json:"country"`
	Timezone int          `json:"timezone"`
	Sunrise  int64        `json:"sunrise"`
	Sunset   int64        `json:"sunset"`
}

type airPollutionResponse struct {
	Coord models.Coord `json:"coord"`
	List  []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components models.AirComponents `json:"components"`
		Dt         int64                `json:"dt"`
	} `json:"list"`
}
