// Package historytest holds the contract tests every history.Backend must pass.
package historytest

import (
	"context"
	"testing"
	"time"

	"github.com/lox/weathertrack/internal/history"
	"github.com/lox/weathertrack/internal/models"
)

// NewBackend returns a fresh, uninitialised backend. Cleanup is the caller's
// job (usually via t.Cleanup).
type NewBackend func(t *testing.T) history.Backend

var base = time.Date(2024, 6, 15, 10, 20, 0, 0, time.UTC)

func snap(key string, at time.Time, temp float64) models.Snapshot {
	return models.Snapshot{
		LocationKey:      key,
		LocationName:     "Test",
		Timestamp:        at.UnixMilli(),
		Date:             at.Format("2006-01-02"),
		Temp:             temp,
		TempMin:          temp - 1,
		TempMax:          temp + 1,
		WeatherCondition: "Clear",
		WeatherIcon:      "01d",
	}
}

func initBackend(t *testing.T, newBackend NewBackend) history.Backend {
	t.Helper()
	b := newBackend(t)
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return b
}

// RunBackendSuite exercises the Backend contract and then the Store
// behaviours that depend on it.
func RunBackendSuite(t *testing.T, newBackend NewBackend) {
	t.Run("InsertAssignsIDs", func(t *testing.T) {
		b := initBackend(t, newBackend)
		ctx := context.Background()

		first := snap("1.00,2.00", base, 10)
		second := snap("1.00,2.00", base.Add(time.Hour), 11)
		if err := b.Insert(ctx, &first); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if err := b.Insert(ctx, &second); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if first.ID == 0 || second.ID == 0 {
			t.Fatalf("IDs not assigned: %d, %d", first.ID, second.ID)
		}
		if first.ID == second.ID {
			t.Errorf("duplicate ID %d", first.ID)
		}

		n, err := b.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != 2 {
			t.Errorf("Count = %d, want 2", n)
		}
	})

	t.Run("FindByLocationDate", func(t *testing.T) {
		b := initBackend(t, newBackend)
		ctx := context.Background()

		for _, s := range []models.Snapshot{
			snap("1.00,2.00", base, 10),
			snap("1.00,2.00", base.Add(2*time.Hour), 12),
			snap("1.00,2.00", base.AddDate(0, 0, -1), 9),
			snap("3.00,4.00", base, 20),
		} {
			if err := b.Insert(ctx, &s); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		got, err := b.FindByLocationDate(ctx, "1.00,2.00", "2024-06-15")
		if err != nil {
			t.Fatalf("FindByLocationDate: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		for _, s := range got {
			if s.LocationKey != "1.00,2.00" || s.Date != "2024-06-15" {
				t.Errorf("unexpected snapshot %+v", s)
			}
		}

		none, err := b.FindByLocationDate(ctx, "9.00,9.00", "2024-06-15")
		if err != nil {
			t.Fatalf("FindByLocationDate: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("len = %d, want 0", len(none))
		}
	})

	t.Run("UpdateKeepsID", func(t *testing.T) {
		b := initBackend(t, newBackend)
		ctx := context.Background()

		s := snap("1.00,2.00", base, 10)
		if err := b.Insert(ctx, &s); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		s.Temp = 25.5
		s.Timestamp = base.Add(10 * time.Minute).UnixMilli()
		if err := b.Update(ctx, s); err != nil {
			t.Fatalf("Update: %v", err)
		}

		all, err := b.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("len = %d, want 1", len(all))
		}
		if all[0].ID != s.ID {
			t.Errorf("ID = %d, want %d", all[0].ID, s.ID)
		}
		if all[0].Temp != 25.5 {
			t.Errorf("Temp = %v, want 25.5", all[0].Temp)
		}
		if all[0].Timestamp != s.Timestamp {
			t.Errorf("Timestamp = %d, want %d", all[0].Timestamp, s.Timestamp)
		}

		// The timestamp index must follow the update.
		since, err := b.ListByLocationSince(ctx, "1.00,2.00", base.Add(5*time.Minute))
		if err != nil {
			t.Fatalf("ListByLocationSince: %v", err)
		}
		if len(since) != 1 {
			t.Errorf("len(since) = %d, want 1", len(since))
		}
	})

	t.Run("DeleteBefore", func(t *testing.T) {
		b := initBackend(t, newBackend)
		ctx := context.Background()

		cutoff := base.AddDate(0, 0, -30)
		for _, s := range []models.Snapshot{
			snap("1.00,2.00", cutoff.Add(-time.Millisecond), 1),
			snap("3.00,4.00", cutoff.AddDate(0, 0, -5), 2),
			snap("1.00,2.00", cutoff, 3),
			snap("1.00,2.00", base, 4),
		} {
			if err := b.Insert(ctx, &s); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		n, err := b.DeleteBefore(ctx, cutoff)
		if err != nil {
			t.Fatalf("DeleteBefore: %v", err)
		}
		if n != 2 {
			t.Errorf("deleted = %d, want 2", n)
		}

		all, err := b.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("len = %d, want 2", len(all))
		}
		for _, s := range all {
			if s.Timestamp < cutoff.UnixMilli() {
				t.Errorf("snapshot at %v survived cutoff %v", s.Time(), cutoff)
			}
		}
	})

	t.Run("ListByLocationSinceAscending", func(t *testing.T) {
		b := initBackend(t, newBackend)
		ctx := context.Background()

		// Insert out of order.
		for _, s := range []models.Snapshot{
			snap("1.00,2.00", base.Add(-1*time.Hour), 3),
			snap("1.00,2.00", base.AddDate(0, 0, -3), 2),
			snap("1.00,2.00", base.AddDate(0, 0, -8), 1),
			snap("3.00,4.00", base.AddDate(0, 0, -2), 9),
			snap("1.00,2.00", base, 4),
		} {
			if err := b.Insert(ctx, &s); err != nil {
				t.Fatalf("Insert: %v", err)
			}
		}

		got, err := b.ListByLocationSince(ctx, "1.00,2.00", base.AddDate(0, 0, -7))
		if err != nil {
			t.Fatalf("ListByLocationSince: %v", err)
		}
		want := []float64{2, 3, 4}
		if len(got) != len(want) {
			t.Fatalf("len = %d, want %d", len(got), len(want))
		}
		for i, s := range got {
			if s.Temp != want[i] {
				t.Errorf("got[%d].Temp = %v, want %v", i, s.Temp, want[i])
			}
		}
	})

	t.Run("BulkInsertAndClear", func(t *testing.T) {
		b := initBackend(t, newBackend)
		ctx := context.Background()

		batch := []models.Snapshot{
			snap("1.00,2.00", base, 1),
			snap("1.00,2.00", base.Add(time.Hour), 2),
			snap("3.00,4.00", base, 3),
		}
		if err := b.BulkInsert(ctx, batch); err != nil {
			t.Fatalf("BulkInsert: %v", err)
		}
		seen := map[int64]bool{}
		for _, s := range batch {
			if s.ID == 0 || seen[s.ID] {
				t.Errorf("bad assigned ID %d", s.ID)
			}
			seen[s.ID] = true
		}

		all, err := b.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("len = %d, want 3", len(all))
		}
		for i := 1; i < len(all); i++ {
			if all[i-1].ID >= all[i].ID {
				t.Errorf("ListAll not ordered by ID: %d then %d", all[i-1].ID, all[i].ID)
			}
		}

		if err := b.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		n, err := b.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != 0 {
			t.Errorf("Count after Clear = %d, want 0", n)
		}

		// IDs keep working after a clear.
		s := snap("1.00,2.00", base, 5)
		if err := b.Insert(ctx, &s); err != nil {
			t.Fatalf("Insert after Clear: %v", err)
		}
	})

	t.Run("RoundTripsAllFields", func(t *testing.T) {
		b := initBackend(t, newBackend)
		ctx := context.Background()

		in := models.Snapshot{
			LocationKey:        "-36.79,146.98",
			LocationName:       "Wandiligong",
			Timestamp:          base.UnixMilli() + 123,
			Date:               "2024-06-15",
			Temp:               12.3,
			TempMin:            8.1,
			TempMax:            15.9,
			FeelsLike:          11.2,
			Humidity:           67,
			Pressure:           1018,
			WindSpeed:          3.4,
			Precipitation:      0.6,
			WeatherCondition:   "Rain",
			WeatherIcon:        "10n",
			WeatherDescription: "light rain",
		}
		if err := b.Insert(ctx, &in); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		all, err := b.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("len = %d, want 1", len(all))
		}
		if all[0] != in {
			t.Errorf("got %+v, want %+v", all[0], in)
		}
	})

	t.Run("StoreSaveDedupesByHour", func(t *testing.T) {
		clock := &fixedClock{t: base}
		s := history.New(newBackend(t), history.WithClock(clock), history.WithLocation(time.UTC))
		ctx := context.Background()
		if err := s.Init(ctx); err != nil {
			t.Fatalf("Init: %v", err)
		}
		t.Cleanup(func() { s.Close() })

		obs := models.Observation{Main: models.MainReading{Temp: 10}}
		if _, err := s.Save(ctx, 40.71284, -74.00601, "NYC", obs); err != nil {
			t.Fatalf("Save: %v", err)
		}
		clock.t = base.Add(30 * time.Minute)
		obs.Main.Temp = 11
		if _, err := s.Save(ctx, 40.71289, -74.00599, "NYC", obs); err != nil {
			t.Fatalf("Save: %v", err)
		}
		clock.t = base.Add(90 * time.Minute)
		if _, err := s.Save(ctx, 40.71289, -74.00599, "NYC", obs); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := s.History(ctx, 40.71, -74.01, 7)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].Temp != 11 {
			t.Errorf("first hour Temp = %v, want 11 (updated)", got[0].Temp)
		}
	})

	t.Run("StoreCleanupAcrossLocations", func(t *testing.T) {
		clock := &fixedClock{t: base.AddDate(0, 0, -40)}
		s := history.New(newBackend(t), history.WithClock(clock), history.WithLocation(time.UTC))
		ctx := context.Background()
		if err := s.Init(ctx); err != nil {
			t.Fatalf("Init: %v", err)
		}
		t.Cleanup(func() { s.Close() })

		obs := models.Observation{Main: models.MainReading{Temp: 10}}
		for _, c := range [][2]float64{{1, 2}, {3, 4}} {
			if _, err := s.Save(ctx, c[0], c[1], "old", obs); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}
		clock.t = base
		if _, err := s.Save(ctx, 5, 6, "new", obs); err != nil {
			t.Fatalf("Save: %v", err)
		}

		info, err := s.Info(ctx)
		if err != nil {
			t.Fatalf("Info: %v", err)
		}
		if info.Count != 1 {
			t.Errorf("Count = %d, want 1", info.Count)
		}
	})
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }
