package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lox/weathertrack/internal/history"
	"github.com/lox/weathertrack/internal/history/historytest"
	"github.com/lox/weathertrack/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestSnapshotBackend(t *testing.T) {
	historytest.RunBackendSuite(t, func(t *testing.T) history.Backend {
		db, err := Open(":memory:")
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return New(db)
	})
}

func TestMigrationVersion(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}

	// Re-running is a no-op.
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestUpdateSnapshot_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.Update(context.Background(), models.Snapshot{ID: 42, LocationKey: "1.00,2.00", Date: "2024-01-01", Timestamp: 1})
	if err == nil {
		t.Fatal("expected error updating missing snapshot")
	}
}

func TestBulkInsert_Atomic(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ctxCancelled, cancel := context.WithCancel(ctx)
	cancel()

	snaps := []models.Snapshot{
		{LocationKey: "1.00,2.00", Date: "2024-01-01", Timestamp: 1},
		{LocationKey: "1.00,2.00", Date: "2024-01-01", Timestamp: 2},
	}
	if err := store.BulkInsert(ctxCancelled, snaps); err == nil {
		t.Fatal("expected error with cancelled context")
	}

	n, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0 after failed bulk insert", n)
	}
	for _, s := range snaps {
		if s.ID != 0 {
			t.Errorf("ID assigned despite failure: %d", s.ID)
		}
	}
}

func TestHistoryStoreOverSQLite(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 9, 15, 0, 0, time.UTC)
	h := history.New(store,
		history.WithClock(history.ClockFunc(func() time.Time { return now })),
		history.WithLocation(time.UTC),
	)
	if err := h.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	obs := models.Observation{
		Main:    models.MainReading{Temp: 18.4, Humidity: 70},
		Weather: []models.Condition{{Main: "Clouds", Description: "broken clouds", Icon: "04d"}},
	}
	if _, err := h.Save(ctx, -36.794, 146.977, "Wandiligong", obs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := h.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if _, err := h.Import(ctx, []byte(`{"broken":`)); !errors.Is(err, history.ErrFormat) {
		t.Fatalf("Import err = %v, want ErrFormat", err)
	}
	if _, err := h.Import(ctx, data); err != nil {
		t.Fatalf("Import: %v", err)
	}

	got, err := h.History(ctx, -36.79, 146.98, 7)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].WeatherDescription != "broken clouds" {
		t.Errorf("WeatherDescription = %q, want 'broken clouds'", got[0].WeatherDescription)
	}
}

func TestFavorites_AddListRemove(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	added, err := store.AddFavorite(ctx, "Bright", -36.73, 146.96)
	if err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if !added {
		t.Fatal("AddFavorite returned false")
	}

	added, err = store.AddFavorite(ctx, "Bright again", -36.73, 146.96)
	if err != nil {
		t.Fatalf("AddFavorite duplicate: %v", err)
	}
	if added {
		t.Error("duplicate favorite was added")
	}

	favs, err := store.ListFavorites(ctx)
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != 1 {
		t.Fatalf("len(favs) = %d, want 1", len(favs))
	}
	if favs[0].ID != "-36.73-146.96" {
		t.Errorf("ID = %q, want -36.73-146.96", favs[0].ID)
	}
	if favs[0].Name != "Bright" {
		t.Errorf("Name = %q, want Bright", favs[0].Name)
	}
	if favs[0].AddedAt.IsZero() {
		t.Error("AddedAt not set")
	}

	if err := store.RemoveFavorite(ctx, favs[0].ID); err != nil {
		t.Fatalf("RemoveFavorite: %v", err)
	}
	favs, err = store.ListFavorites(ctx)
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != 0 {
		t.Errorf("len(favs) = %d, want 0", len(favs))
	}
}

func TestFavorites_Limit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < MaxFavorites; i++ {
		added, err := store.AddFavorite(ctx, "Place", float64(i), float64(i))
		if err != nil {
			t.Fatalf("AddFavorite %d: %v", i, err)
		}
		if !added {
			t.Fatalf("AddFavorite %d returned false", i)
		}
	}

	added, err := store.AddFavorite(ctx, "One too many", 50, 50)
	if err != nil {
		t.Fatalf("AddFavorite: %v", err)
	}
	if added {
		t.Error("added favorite beyond limit")
	}

	favs, err := store.ListFavorites(ctx)
	if err != nil {
		t.Fatalf("ListFavorites: %v", err)
	}
	if len(favs) != MaxFavorites {
		t.Errorf("len(favs) = %d, want %d", len(favs), MaxFavorites)
	}
}

func TestFavorites_Toggle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	on, err := store.ToggleFavorite(ctx, "Myrtleford", -36.56, 146.72)
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if !on {
		t.Error("first toggle should add")
	}

	is, err := store.IsFavorite(ctx, -36.56, 146.72)
	if err != nil {
		t.Fatalf("IsFavorite: %v", err)
	}
	if !is {
		t.Error("IsFavorite = false after add")
	}

	on, err = store.ToggleFavorite(ctx, "Myrtleford", -36.56, 146.72)
	if err != nil {
		t.Fatalf("ToggleFavorite: %v", err)
	}
	if on {
		t.Error("second toggle should remove")
	}

	is, err = store.IsFavorite(ctx, -36.56, 146.72)
	if err != nil {
		t.Fatalf("IsFavorite: %v", err)
	}
	if is {
		t.Error("IsFavorite = true after remove")
	}
}

func TestLastLocation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	loc, err := store.LastLocation(ctx)
	if err != nil {
		t.Fatalf("LastLocation: %v", err)
	}
	if loc != nil {
		t.Fatalf("LastLocation = %+v, want nil", loc)
	}

	if _, err := store.SaveLocation(ctx, 51.5, -0.12, "London"); err != nil {
		t.Fatalf("SaveLocation: %v", err)
	}
	if _, err := store.SaveLocation(ctx, 48.85, 2.35, "Paris"); err != nil {
		t.Fatalf("SaveLocation: %v", err)
	}

	loc, err = store.LastLocation(ctx)
	if err != nil {
		t.Fatalf("LastLocation: %v", err)
	}
	if loc == nil {
		t.Fatal("LastLocation returned nil")
	}
	if loc.Name != "Paris" || loc.Lat != 48.85 || loc.Lon != 2.35 {
		t.Errorf("LastLocation = %+v, want Paris", loc)
	}

	if err := store.ClearLocation(ctx); err != nil {
		t.Fatalf("ClearLocation: %v", err)
	}
	loc, err = store.LastLocation(ctx)
	if err != nil {
		t.Fatalf("LastLocation: %v", err)
	}
	if loc != nil {
		t.Errorf("LastLocation after clear = %+v, want nil", loc)
	}
}

func TestRefreshRun_StartAndComplete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.StartRefreshRun(ctx, "weather", "1.00,2.00")
	if err != nil {
		t.Fatalf("StartRefreshRun: %v", err)
	}
	if run.ID == 0 {
		t.Error("run ID not set")
	}
	if err := store.CompleteRefreshRun(ctx, run, nil); err != nil {
		t.Fatalf("CompleteRefreshRun: %v", err)
	}

	failed, err := store.StartRefreshRun(ctx, "forecast", "1.00,2.00")
	if err != nil {
		t.Fatalf("StartRefreshRun: %v", err)
	}
	if err := store.CompleteRefreshRun(ctx, failed, errors.New("status 502")); err != nil {
		t.Fatalf("CompleteRefreshRun: %v", err)
	}

	health, err := store.GetRefreshHealth(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetRefreshHealth: %v", err)
	}
	if len(health) != 2 {
		t.Fatalf("len(health) = %d, want 2", len(health))
	}
	if health[0].Endpoint != "forecast" || health[0].FailedRuns != 1 {
		t.Errorf("health[0] = %+v", health[0])
	}
	if health[1].Endpoint != "weather" || health[1].SuccessRuns != 1 {
		t.Errorf("health[1] = %+v", health[1])
	}

	errs, err := store.GetRecentRefreshErrors(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecentRefreshErrors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if errs[0].ErrorMessage.String != "status 502" {
		t.Errorf("ErrorMessage = %q", errs[0].ErrorMessage.String)
	}
}

func TestCompleteRefreshRun_Nil(t *testing.T) {
	store := setupTestStore(t)
	if err := store.CompleteRefreshRun(context.Background(), nil, nil); err != nil {
		t.Errorf("CompleteRefreshRun(nil) = %v", err)
	}
}
