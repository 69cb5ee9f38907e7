package ingest

import (
	"bytes"
	"context"
	"errors"
	"log"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lox/weathertrack/internal/forecast"
	"github.com/lox/weathertrack/internal/history"
	"github.com/lox/weathertrack/internal/models"
	"github.com/lox/weathertrack/internal/owm"
	"github.com/lox/weathertrack/internal/store"
)

func TestValidateObservation(t *testing.T) {
	valid := func() models.Observation {
		return models.Observation{
			Main:    models.MainReading{Temp: 18, TempMin: 15, TempMax: 21, Humidity: 60, Pressure: 1013},
			Wind:    models.Wind{Speed: 4, Deg: 180},
			Weather: []models.Condition{{Main: "Clear", Description: "clear sky", Icon: "01d"}},
		}
	}
	neg := -0.5

	tests := []struct {
		name      string
		mutate    func(o *models.Observation)
		wantFlags []string
	}{
		{"valid observation", func(o *models.Observation) {}, nil},
		{"temp too cold", func(o *models.Observation) { o.Main.Temp = -95; o.Main.TempMin = -96 }, []string{FlagTempOutOfRange}},
		{"temp too hot", func(o *models.Observation) { o.Main.Temp = 65; o.Main.TempMax = 66 }, []string{FlagTempOutOfRange}},
		{"temp at hot boundary", func(o *models.Observation) { o.Main.Temp = 60; o.Main.TempMax = 60 }, nil},
		{"min above max", func(o *models.Observation) { o.Main.TempMin = 25 }, []string{FlagTempRangeInverted}},
		{"humidity over 100", func(o *models.Observation) { o.Main.Humidity = 101 }, []string{FlagHumidityInvalid}},
		{"wind dir over 360", func(o *models.Observation) { o.Wind.Deg = 361 }, []string{FlagWindDirInvalid}},
		{"negative wind", func(o *models.Observation) { o.Wind.Speed = -1 }, []string{FlagWindSpeedUnlikely}},
		{"pressure too low", func(o *models.Observation) { o.Main.Pressure = 700 }, []string{FlagPressureOutOfRange}},
		{"pressure missing", func(o *models.Observation) { o.Main.Pressure = 0 }, nil},
		{"negative rain", func(o *models.Observation) { o.Rain = &models.Precip{OneHour: &neg} }, []string{FlagPrecipNegative}},
		{"negative snow", func(o *models.Observation) { o.Snow = &models.Precip{OneHour: &neg} }, []string{FlagPrecipNegative}},
		{"no condition", func(o *models.Observation) { o.Weather = nil }, []string{FlagNoCondition}},
		{
			"multiple flags",
			func(o *models.Observation) { o.Main.Humidity = -1; o.Wind.Speed = 500 },
			[]string{FlagHumidityInvalid, FlagWindSpeedUnlikely},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := valid()
			tt.mutate(&obs)
			got := ValidateObservation(obs)
			if !reflect.DeepEqual(got, tt.wantFlags) {
				t.Errorf("ValidateObservation() = %v, want %v", got, tt.wantFlags)
			}
		})
	}
}

type fakeWeather struct {
	current    *owm.CurrentWeather
	currentErr error
	forecast   *owm.Forecast
	fcErr      error
	air        *models.AirQuality
	airErr     error

	mu    sync.Mutex
	calls []string
}

func (f *fakeWeather) called(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeWeather) Current(ctx context.Context, lat, lon float64) (*owm.CurrentWeather, error) {
	f.called(models.LocationKey(lat, lon))
	return f.current, f.currentErr
}

func (f *fakeWeather) Forecast(ctx context.Context, lat, lon float64) (*owm.Forecast, error) {
	return f.forecast, f.fcErr
}

func (f *fakeWeather) AirPollution(ctx context.Context, lat, lon float64) (*models.AirQuality, error) {
	return f.air, f.airErr
}

type fakeRecorder struct {
	mu   sync.Mutex
	next int64
	runs map[string]*store.RefreshRun
}

func (r *fakeRecorder) StartRefreshRun(ctx context.Context, endpoint, locationKey string) (*store.RefreshRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string]*store.RefreshRun)
	}
	r.next++
	run := &store.RefreshRun{ID: r.next, Endpoint: endpoint}
	r.runs[endpoint] = run
	return run, nil
}

func (r *fakeRecorder) CompleteRefreshRun(ctx context.Context, run *store.RefreshRun, runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.Success = runErr == nil
	if runErr != nil {
		run.ErrorMessage.String = runErr.Error()
		run.ErrorMessage.Valid = true
	}
	return nil
}

func (r *fakeRecorder) run(endpoint string) *store.RefreshRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[endpoint]
}

func testCurrent() *owm.CurrentWeather {
	rain := 0.4
	return &owm.CurrentWeather{
		Name:    "Bright",
		Main:    models.MainReading{Temp: 14.2, FeelsLike: 13, TempMin: 12, TempMax: 16, Humidity: 70, Pressure: 1010},
		Wind:    models.Wind{Speed: 3.1, Deg: 200},
		Rain:    &models.Precip{OneHour: &rain},
		Weather: []models.Condition{{Main: "Rain", Description: "light rain", Icon: "10n"}},
	}
}

func testForecast() *owm.Forecast {
	s := func(dtTxt string, temp float64) models.ForecastSample {
		return models.ForecastSample{
			DtTxt:   dtTxt,
			Main:    models.MainReading{Temp: temp},
			Weather: []models.Condition{{Main: "Clouds", Description: "scattered clouds", Icon: "03d"}},
			Pop:     0.3,
		}
	}
	return &owm.Forecast{List: []models.ForecastSample{
		s("2024-03-10 12:00:00", 20),
		s("2024-03-10 15:00:00", 22),
		s("2024-03-11 12:00:00", 18),
	}}
}

var testNow = time.Date(2024, 3, 10, 14, 5, 0, 0, time.UTC)

func setupHistory(t *testing.T) *history.Store {
	t.Helper()
	h := history.New(history.NewMemoryBackend(),
		history.WithClock(history.ClockFunc(func() time.Time { return testNow })),
		history.WithLocation(time.UTC),
	)
	if err := h.Init(context.Background()); err != nil {
		t.Fatalf("init history: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRefresh_SavesSnapshot(t *testing.T) {
	hist := setupHistory(t)
	rec := &fakeRecorder{}
	w := &fakeWeather{
		current:  testCurrent(),
		forecast: testForecast(),
		air:      &models.AirQuality{AQI: 2},
	}
	tr := NewTracker(w, hist, rec)

	report, err := tr.Refresh(context.Background(), -36.7312, 146.9601, "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if report.LocationKey != "-36.73,146.96" {
		t.Errorf("LocationKey = %q, want -36.73,146.96", report.LocationKey)
	}
	if report.Name != "Bright" {
		t.Errorf("Name = %q, want name from current weather", report.Name)
	}
	if report.Condition != forecast.ConditionLightRain {
		t.Errorf("Condition = %q, want %q", report.Condition, forecast.ConditionLightRain)
	}
	if report.TimeOfDay != forecast.TimeNight {
		t.Errorf("TimeOfDay = %q, want night", report.TimeOfDay)
	}
	if len(report.Daily) != 2 {
		t.Errorf("len(Daily) = %d, want 2", len(report.Daily))
	}
	if report.AirLevel == nil || report.AirLevel.Label != "Fair" {
		t.Errorf("AirLevel = %+v, want Fair", report.AirLevel)
	}
	if len(report.QualityFlags) != 0 {
		t.Errorf("QualityFlags = %v, want none", report.QualityFlags)
	}

	if report.Snapshot == nil {
		t.Fatal("expected snapshot in report")
	}
	if report.Snapshot.Precipitation != 0.4 {
		t.Errorf("Precipitation = %v, want 0.4", report.Snapshot.Precipitation)
	}

	snaps, err := hist.History(context.Background(), -36.7312, 146.9601, 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(snaps) != 1 || snaps[0].LocationName != "Bright" {
		t.Errorf("history = %+v, want one snapshot named Bright", snaps)
	}

	for _, ep := range []string{"weather", "forecast", "air_pollution"} {
		run := rec.run(ep)
		if run == nil || !run.Success {
			t.Errorf("run %s = %+v, want successful", ep, run)
		}
	}
}

func TestRefresh_TimeOfDayFromLocalClock(t *testing.T) {
	tests := []struct {
		name string
		dt   int64
		tz   int
		want forecast.TimeOfDay
	}{
		{"no timestamp uses icon", 0, 0, forecast.TimeNight},
		{"dusk in UTC+11", time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC).Unix(), 11 * 3600, forecast.TimeDusk},
		{"dawn in UTC-5", time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC).Unix(), -5 * 3600, forecast.TimeDawn},
		{"midday", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC).Unix(), 0, forecast.TimeDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := testCurrent()
			current.Dt = tt.dt
			current.Timezone = tt.tz
			tr := NewTracker(&fakeWeather{current: current}, nil, nil)

			report, err := tr.Refresh(context.Background(), -36.73, 146.96, "")
			if err != nil {
				t.Fatalf("Refresh: %v", err)
			}
			if report.TimeOfDay != tt.want {
				t.Errorf("TimeOfDay = %q, want %q", report.TimeOfDay, tt.want)
			}
		})
	}
}

func TestRefresh_ExplicitNameWins(t *testing.T) {
	hist := setupHistory(t)
	tr := NewTracker(&fakeWeather{current: testCurrent()}, hist, nil)

	report, err := tr.Refresh(context.Background(), -36.73, 146.96, "Home")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if report.Name != "Home" || report.Snapshot.LocationName != "Home" {
		t.Errorf("name = %q / %q, want Home", report.Name, report.Snapshot.LocationName)
	}
}

func TestRefresh_OptionalFetchesDegrade(t *testing.T) {
	hist := setupHistory(t)
	rec := &fakeRecorder{}
	w := &fakeWeather{
		current: testCurrent(),
		fcErr:   owm.ErrUnavailable,
		airErr:  errors.New("timeout"),
	}
	tr := NewTracker(w, hist, rec)

	report, err := tr.Refresh(context.Background(), 1, 2, "x")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if report.Daily != nil {
		t.Errorf("Daily = %v, want nil", report.Daily)
	}
	if report.Air != nil || report.AirLevel != nil {
		t.Errorf("air = %v / %v, want nil", report.Air, report.AirLevel)
	}
	if report.Snapshot == nil {
		t.Error("snapshot should still be saved")
	}
	if run := rec.run("forecast"); run == nil || run.Success || !run.ErrorMessage.Valid {
		t.Errorf("forecast run = %+v, want failed with message", run)
	}
}

func TestRefresh_CurrentRequired(t *testing.T) {
	hist := setupHistory(t)
	w := &fakeWeather{
		currentErr: owm.ErrNotFound,
		forecast:   testForecast(),
	}
	tr := NewTracker(w, hist, nil)

	report, err := tr.Refresh(context.Background(), 1, 2, "x")
	if !errors.Is(err, owm.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}

	info, err := hist.Info(context.Background())
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Count != 0 {
		t.Errorf("Count = %d, want 0", info.Count)
	}
}

func TestRefresh_SaveFailureKeepsReport(t *testing.T) {
	hist := setupHistory(t)
	hist.Close()
	tr := NewTracker(&fakeWeather{current: testCurrent()}, hist, nil)

	report, err := tr.Refresh(context.Background(), 1, 2, "x")
	if !errors.Is(err, history.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	if report == nil || report.Current == nil {
		t.Fatal("report should still carry the current weather")
	}
	if report.Snapshot != nil {
		t.Errorf("Snapshot = %+v, want nil", report.Snapshot)
	}
}

func TestRefresh_FlagsImplausibleObservation(t *testing.T) {
	cw := testCurrent()
	cw.Main.Humidity = 140
	tr := NewTracker(&fakeWeather{current: cw}, nil, nil)

	report, err := tr.Refresh(context.Background(), 1, 2, "x")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !reflect.DeepEqual(report.QualityFlags, []string{FlagHumidityInvalid}) {
		t.Errorf("QualityFlags = %v, want [%s]", report.QualityFlags, FlagHumidityInvalid)
	}
}

type fakeLocations struct {
	favs    []models.Favorite
	last    *models.SavedLocation
	lastErr error
}

func (f fakeLocations) ListFavorites(ctx context.Context) ([]models.Favorite, error) {
	return f.favs, nil
}

func (f fakeLocations) LastLocation(ctx context.Context) (*models.SavedLocation, error) {
	return f.last, f.lastErr
}

type countingRefresher struct {
	mu   sync.Mutex
	keys []string
	fail map[string]bool
}

func (c *countingRefresher) Refresh(ctx context.Context, lat, lon float64, name string) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := models.LocationKey(lat, lon)
	c.keys = append(c.keys, key)
	if c.fail[key] {
		return nil, errors.New("boom")
	}
	return &Report{LocationKey: key, Name: name}, nil
}

func TestScheduler_RefreshAllDedupesLocations(t *testing.T) {
	locs := fakeLocations{
		favs: []models.Favorite{
			{Name: "Bright", Lat: -36.73, Lon: 146.96},
			{Name: "Bright again", Lat: -36.7301, Lon: 146.9602},
			{Name: "Paris", Lat: 48.85, Lon: 2.35},
		},
		last: &models.SavedLocation{Lat: 48.85, Lon: 2.35, Name: "Paris"},
	}
	r := &countingRefresher{fail: map[string]bool{"48.85,2.35": true}}
	s := newScheduler(r, locs, time.Hour)

	ok := s.RefreshAll(context.Background())
	if ok != 1 {
		t.Errorf("RefreshAll = %d, want 1", ok)
	}
	want := []string{"-36.73,146.96", "48.85,2.35"}
	if !reflect.DeepEqual(r.keys, want) {
		t.Errorf("refreshed %v, want %v", r.keys, want)
	}
}

type reportRefresher struct{ current *owm.CurrentWeather }

func (r reportRefresher) Refresh(ctx context.Context, lat, lon float64, name string) (*Report, error) {
	return &Report{LocationKey: models.LocationKey(lat, lon), Name: name, Current: r.current}, nil
}

func TestScheduler_LogsTemperatureWithoutUnit(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(prev) })

	// Units follow --units; an imperial reading must not be labelled Celsius.
	current := testCurrent()
	current.Main.Temp = 68.5
	locs := fakeLocations{last: &models.SavedLocation{Lat: 40.71, Lon: -74.01, Name: "New York"}}
	s := newScheduler(reportRefresher{current: current}, locs, time.Hour)

	if ok := s.RefreshAll(context.Background()); ok != 1 {
		t.Fatalf("RefreshAll = %d, want 1", ok)
	}
	out := buf.String()
	if !strings.Contains(out, "New York: 68.5°") {
		t.Errorf("log missing temperature:\n%s", out)
	}
	if strings.Contains(out, "°C") || strings.Contains(out, "°F") {
		t.Errorf("log hardcodes a unit:\n%s", out)
	}
}

func TestScheduler_LastLocationOnly(t *testing.T) {
	locs := fakeLocations{last: &models.SavedLocation{Lat: 51.51, Lon: -0.13, Name: "London"}}
	r := &countingRefresher{}
	s := newScheduler(r, locs, time.Hour)

	if ok := s.RefreshAll(context.Background()); ok != 1 {
		t.Errorf("RefreshAll = %d, want 1", ok)
	}
}

func TestScheduler_LastLocationErrorIgnored(t *testing.T) {
	locs := fakeLocations{
		favs:    []models.Favorite{{Name: "Bright", Lat: -36.73, Lon: 146.96}},
		lastErr: errors.New("disk gone"),
	}
	r := &countingRefresher{}
	s := newScheduler(r, locs, time.Hour)

	if ok := s.RefreshAll(context.Background()); ok != 1 {
		t.Errorf("RefreshAll = %d, want 1", ok)
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	r := &countingRefresher{}
	s := newScheduler(r, fakeLocations{last: &models.SavedLocation{Lat: 1, Lon: 2}}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// The initial pass runs before the first tick.
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		n := len(r.keys)
		r.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("initial refresh did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	s := newScheduler(&countingRefresher{}, fakeLocations{}, 0)
	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
}
