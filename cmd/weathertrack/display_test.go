package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lox/weathertrack/internal/models"
)

func TestDisplayForecast(t *testing.T) {
	var buf bytes.Buffer
	displayForecast(&buf, "Bright", []models.DailySummary{
		{Date: "2024-03-10", High: 25, Low: 22, Condition: "scattered clouds", PrecipProbability: 0.4},
		{Date: "2024-03-11", High: 17, Low: 17, Condition: "light rain", PrecipProbability: 1},
	})

	out := buf.String()
	for _, want := range []string{
		"5-Day Forecast for Bright:",
		"Sun 2024-03-10: Scattered Clouds",
		"High:  25.0°. Low:  22.0°. Rain:  40%.",
		"Mon 2024-03-11: Light Rain",
		"Rain: 100%.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDisplayHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	displayHistory(&buf, "1.00,2.00", nil)
	if !strings.Contains(buf.String(), "No history recorded yet.") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
