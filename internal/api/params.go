package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// coords reads and range-checks the lat and lon query parameters.
func coords(r *http.Request) (lat, lon float64, err error) {
	q := r.URL.Query()
	lat, err = parseFloat(q.Get("lat"), "lat")
	if err != nil {
		return 0, 0, err
	}
	lon, err = parseFloat(q.Get("lon"), "lon")
	if err != nil {
		return 0, 0, err
	}
	if err := checkCoords(lat, lon); err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func checkCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("lat %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("lon %v out of range", lon)
	}
	return nil
}

func parseFloat(raw, name string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// positiveInt parses an optional positive integer, returning def when absent.
func positiveInt(raw, name string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}
