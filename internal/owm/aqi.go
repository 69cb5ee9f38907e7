package owm

// AQILevel describes one band of the OpenWeatherMap 1-5 air quality index.
type AQILevel struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	General   string `json:"general"`
	Sensitive string `json:"sensitive"`
}

var aqiLevels = map[int]AQILevel{
	1: {1, "Good",
		"Air quality is excellent. Perfect day for outdoor activities!",
		"Enjoy your outdoor activities."},
	2: {2, "Fair",
		"Air quality is acceptable. Outdoor activities are fine for most people.",
		"Unusually sensitive individuals should consider reducing prolonged outdoor exertion."},
	3: {3, "Moderate",
		"Acceptable air quality. Sensitive groups may experience minor breathing discomfort.",
		"Consider reducing prolonged or heavy outdoor exertion."},
	4: {4, "Poor",
		"Unhealthy air quality. Everyone may experience health effects.",
		"Avoid prolonged outdoor exertion. Keep outdoor activities short."},
	5: {5, "Very Poor",
		"Hazardous air quality. Health warnings of emergency conditions.",
		"Avoid all outdoor physical activities. Stay indoors with windows closed."},
}

// LookupAQI returns the band for aqi, or false when it is outside 1-5.
func LookupAQI(aqi int) (AQILevel, bool) {
	l, ok := aqiLevels[aqi]
	return l, ok
}
