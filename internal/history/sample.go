package history

import (
	"context"
	"fmt"
	"log"

	"github.com/lox/weathertrack/internal/metrics"
	"github.com/lox/weathertrack/internal/models"
)

// SampleDays is how many days back GenerateSample goes, today excluded.
const SampleDays = 30

// GenerateSample fills the location with one synthetic snapshot per day from
// SampleDays ago through today, scattered around currentTemp. It exists for
// demos and does not deduplicate against real data.
func (s *Store) GenerateSample(ctx context.Context, lat, lon float64, name string, currentTemp float64) ([]models.Snapshot, error) {
	if err := s.checkReady(); err != nil {
		return nil, fmt.Errorf("generate sample: %w", err)
	}

	key := models.LocationKey(lat, lon)
	now := s.now()

	s.rngMu.Lock()
	snaps := make([]models.Snapshot, 0, SampleDays+1)
	for i := SampleDays; i >= 0; i-- {
		at := now.AddDate(0, 0, -i)

		base := currentTemp + (s.rng.Float64()-0.5)*10
		spread := s.rng.Float64() * 5

		snap := models.Snapshot{
			LocationKey:        key,
			LocationName:       name,
			Timestamp:          at.UnixMilli(),
			Date:               at.Format(dateLayout),
			Temp:               base,
			TempMin:            base - spread,
			TempMax:            base + spread,
			FeelsLike:          base - 2 + s.rng.Float64()*4,
			Humidity:           50 + s.rng.Float64()*40,
			Pressure:           1010 + s.rng.Float64()*20,
			WindSpeed:          s.rng.Float64() * 10,
			WeatherIcon:        "01d",
			WeatherDescription: "sample data",
		}
		if s.rng.Float64() > 0.7 {
			snap.Precipitation = s.rng.Float64() * 10
		}
		switch {
		case s.rng.Float64() > 0.7:
			snap.WeatherCondition = "Rain"
		case s.rng.Float64() > 0.5:
			snap.WeatherCondition = "Clouds"
		default:
			snap.WeatherCondition = "Clear"
		}
		snaps = append(snaps, snap)
	}
	s.rngMu.Unlock()

	if err := s.backend.BulkInsert(ctx, snaps); err != nil {
		return nil, fmt.Errorf("generate sample %s: %w", key, unavailable(err))
	}
	metrics.SnapshotsImported.Add(float64(len(snaps)))
	log.Printf("history: generated %d sample snapshots for %s", len(snaps), name)
	return snaps, nil
}
