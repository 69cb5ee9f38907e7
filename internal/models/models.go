package models

import (
	"fmt"
	"strconv"
	"time"
)

// MainReading is the "main" block shared by current-weather and forecast payloads.
type MainReading struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  float64 `json:"pressure"`
	Humidity  float64 `json:"humidity"`
}

type Condition struct {
	ID          int    `json:"id,omitempty"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type Wind struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg,omitempty"`
	Gust  float64 `json:"gust,omitempty"`
}

// Precip holds the optional last-hour accumulation in millimetres.
type Precip struct {
	OneHour *float64 `json:"1h,omitempty"`
}

// Observation is the measurement bundle a current-weather fetch hands to the
// history store.
type Observation struct {
	Main    MainReading `json:"main"`
	Wind    Wind        `json:"wind"`
	Rain    *Precip     `json:"rain,omitempty"`
	Snow    *Precip     `json:"snow,omitempty"`
	Weather []Condition `json:"weather"`
}

// PrecipitationMM returns rain over the last hour, else snow, else zero.
func (o Observation) PrecipitationMM() float64 {
	if o.Rain != nil && o.Rain.OneHour != nil && *o.Rain.OneHour != 0 {
		return *o.Rain.OneHour
	}
	if o.Snow != nil && o.Snow.OneHour != nil && *o.Snow.OneHour != 0 {
		return *o.Snow.OneHour
	}
	return 0
}

// PrimaryCondition returns the first weather condition, or the zero value.
func (o Observation) PrimaryCondition() Condition {
	if len(o.Weather) == 0 {
		return Condition{}
	}
	return o.Weather[0]
}

// ForecastSample is one 3-hour entry of the forecast feed.
type ForecastSample struct {
	Dt      int64       `json:"dt"`
	Main    MainReading `json:"main"`
	Weather []Condition `json:"weather"`
	Wind    Wind        `json:"wind"`
	Pop     float64     `json:"pop"`
	DtTxt   string      `json:"dt_txt"`
}

type DailySummary struct {
	Date              string  `json:"date"`
	High              float64 `json:"high"`
	Low               float64 `json:"low"`
	Condition         string  `json:"condition"`
	IconCode          string  `json:"iconCode"`
	PrecipProbability float64 `json:"precipProbability"`
}

// Snapshot is one persisted hourly observation for a location. Timestamp is
// unix milliseconds, matching the export format.
type Snapshot struct {
	ID                 int64   `json:"id,omitempty"`
	LocationKey        string  `json:"locationKey"`
	LocationName       string  `json:"locationName"`
	Timestamp          int64   `json:"timestamp"`
	Date               string  `json:"date"`
	Temp               float64 `json:"temp"`
	TempMin            float64 `json:"tempMin"`
	TempMax            float64 `json:"tempMax"`
	FeelsLike          float64 `json:"feelsLike"`
	Humidity           float64 `json:"humidity"`
	Pressure           float64 `json:"pressure"`
	WindSpeed          float64 `json:"windSpeed"`
	Precipitation      float64 `json:"precipitation"`
	WeatherCondition   string  `json:"weatherCondition"`
	WeatherIcon        string  `json:"weatherIcon"`
	WeatherDescription string  `json:"weatherDescription"`
}

func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// ApplyObservation copies the measurement fields of obs onto s.
func (s *Snapshot) ApplyObservation(obs Observation) {
	cond := obs.PrimaryCondition()
	s.Temp = obs.Main.Temp
	s.TempMin = obs.Main.TempMin
	s.TempMax = obs.Main.TempMax
	s.FeelsLike = obs.Main.FeelsLike
	s.Humidity = obs.Main.Humidity
	s.Pressure = obs.Main.Pressure
	s.WindSpeed = obs.Wind.Speed
	s.Precipitation = obs.PrecipitationMM()
	s.WeatherCondition = cond.Main
	s.WeatherIcon = cond.Icon
	s.WeatherDescription = cond.Description
}

// LocationKey quantises coordinates to two decimals. Nearby points share a key
// and therefore a history series.
func LocationKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

type Favorite struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	AddedAt time.Time `json:"addedAt"`
}

// FavoriteID mirrors the identity used by the favorites list.
func FavoriteID(lat, lon float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "-" + strconv.FormatFloat(lon, 'f', -1, 64)
}

type SavedLocation struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type City struct {
	Name       string            `json:"name"`
	LocalNames map[string]string `json:"local_names,omitempty"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Country    string            `json:"country"`
	State      string            `json:"state,omitempty"`
}

type AirComponents struct {
	CO   float64 `json:"co"`
	NO   float64 `json:"no"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
	SO2  float64 `json:"so2"`
	PM25 float64 `json:"pm2_5"`
	PM10 float64 `json:"pm10"`
	NH3  float64 `json:"nh3"`
}

type AirQuality struct {
	AQI        int           `json:"aqi"`
	Components AirComponents `json:"components"`
	Dt         int64         `json:"dt"`
}
