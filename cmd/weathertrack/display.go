package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lox/weathertrack/internal/ingest"
	"github.com/lox/weathertrack/internal/models"
)

var title = cases.Title(language.English)

func underline(w io.Writer, header string) {
	fmt.Fprintf(w, "%s\n%s\n", header, strings.Repeat("-", len(header)))
}

func displayReport(w io.Writer, r *ingest.Report) {
	underline(w, fmt.Sprintf("Current Weather for %s:", r.Name))

	obs := r.Current.Observation()
	cond := obs.PrimaryCondition()
	fmt.Fprintf(w, "Conditions:  %s\n", title.String(cond.Description))
	fmt.Fprintf(w, "Temperature: %.1f°\n", obs.Main.Temp)
	fmt.Fprintf(w, "  Max:       %.1f°\n", obs.Main.TempMax)
	fmt.Fprintf(w, "  Min:       %.1f°\n", obs.Main.TempMin)
	fmt.Fprintf(w, "Feels Like:  %.1f°\n", obs.Main.FeelsLike)
	fmt.Fprintf(w, "Humidity:    %.0f%%\n", obs.Main.Humidity)
	fmt.Fprintf(w, "Wind Speed:  %.1f\n", obs.Wind.Speed)
	if p := obs.PrecipitationMM(); p > 0 {
		fmt.Fprintf(w, "Precip 1h:   %.1f mm\n", p)
	}
	if r.AirLevel != nil {
		fmt.Fprintf(w, "Air Quality: %s. %s\n", r.AirLevel.Label, r.AirLevel.General)
	}
	if len(r.QualityFlags) > 0 {
		fmt.Fprintf(w, "Flags:       %s\n", strings.Join(r.QualityFlags, ", "))
	}

	if len(r.Daily) > 0 {
		fmt.Fprintln(w)
		displayForecast(w, r.Name, r.Daily)
	}
}

func displayForecast(w io.Writer, location string, daily []models.DailySummary) {
	underline(w, fmt.Sprintf("5-Day Forecast for %s:", location))

	for _, day := range daily {
		date, err := time.Parse("2006-01-02", day.Date)
		dow := "   "
		if err == nil {
			dow = date.Format("Mon")
		}
		fmt.Fprintf(w, "%s %s: %-25s High: %5.1f°. Low: %5.1f°. Rain: %3.0f%%.\n",
			dow,
			day.Date,
			title.String(day.Condition),
			day.High,
			day.Low,
			day.PrecipProbability*100)
	}
}

func displayHistory(w io.Writer, key string, snaps []models.Snapshot) {
	underline(w, fmt.Sprintf("History for %s (%d snapshots):", key, len(snaps)))
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No history recorded yet.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTEMP\tMIN\tMAX\tHUMIDITY\tWIND\tPRECIP\tCONDITIONS")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.1f\t%.0f%%\t%.1f\t%.1f\t%s\n",
			s.Time().Format("Mon 02 Jan 15:04"),
			s.Temp, s.TempMin, s.TempMax, s.Humidity, s.WindSpeed, s.Precipitation,
			title.String(s.WeatherDescription))
	}
	tw.Flush()
}

func displayFavorites(w io.Writer, favs []models.Favorite) {
	if len(favs) == 0 {
		fmt.Fprintln(w, "No favorites yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLAT\tLON\tADDED")
	for _, f := range favs {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%s\n", f.ID, f.Name, f.Lat, f.Lon, humanize.Time(f.AddedAt))
	}
	tw.Flush()
}
