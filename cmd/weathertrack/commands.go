package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/lox/weathertrack/internal/api"
	"github.com/lox/weathertrack/internal/backup"
	"github.com/lox/weathertrack/internal/forecast"
	"github.com/lox/weathertrack/internal/ingest"
	"github.com/lox/weathertrack/internal/models"
)

type ServeCmd struct {
	Port         string        `help:"HTTP listen port." default:"8080" env:"PORT"`
	NoPoll       bool          `help:"Disable background refresh of saved locations."`
	PollInterval time.Duration `help:"How often saved locations are refreshed." default:"15m" env:"WEATHERTRACK_POLL_INTERVAL"`
	RateLimit    int           `help:"Requests per minute allowed per client IP." default:"120" env:"WEATHERTRACK_RATE_LIMIT"`
}

func (c *ServeCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	client, closeCache, err := weatherClient(ctx, g)
	if err != nil {
		return err
	}
	defer closeCache()

	tracker := ingest.NewTracker(client, a.history, a.state)
	server := api.NewServer(client, tracker, a.history, a.state, c.Port, api.WithRateLimit(c.RateLimit))

	grp, gctx := errgroup.WithContext(ctx)
	if !c.NoPoll {
		scheduler := ingest.NewScheduler(tracker, a.state, c.PollInterval)
		grp.Go(func() error {
			scheduler.Run(gctx)
			return nil
		})
	} else {
		log.Println("polling disabled (--no-poll)")
	}
	grp.Go(func() error {
		return server.Run(gctx)
	})
	return grp.Wait()
}

type WeatherCmd struct {
	Lat  float64 `arg:"" help:"Latitude."`
	Lon  float64 `arg:"" help:"Longitude."`
	Name string  `help:"Display name to record with the snapshot."`
	Save bool    `help:"Remember this as the last viewed location."`
}

func (c *WeatherCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	client, closeCache, err := weatherClient(ctx, g)
	if err != nil {
		return err
	}
	defer closeCache()

	report, err := ingest.NewTracker(client, a.history, a.state).Refresh(ctx, c.Lat, c.Lon, c.Name)
	if report == nil {
		return err
	}
	if err != nil {
		log.Printf("history not updated: %v", err)
	}

	if c.Save {
		if _, err := a.state.SaveLocation(ctx, c.Lat, c.Lon, report.Name); err != nil {
			return err
		}
	}

	displayReport(os.Stdout, report)
	return nil
}

type CityCmd struct {
	Name string `arg:"" help:"City name, optionally with country code, such as Paris,FR."`
	Save bool   `help:"Remember this as the last viewed location."`
}

func (c *CityCmd) Run(g *Globals, ctx context.Context) error {
	client, closeCache, err := weatherClient(ctx, g)
	if err != nil {
		return err
	}
	defer closeCache()

	cw, err := client.CurrentByCity(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("look up %s: %w", c.Name, err)
	}

	weather := WeatherCmd{Lat: cw.Coord.Lat, Lon: cw.Coord.Lon, Name: cw.Name, Save: c.Save}
	return weather.Run(g, ctx)
}

type ForecastCmd struct {
	Lat float64 `arg:"" help:"Latitude."`
	Lon float64 `arg:"" help:"Longitude."`
}

func (c *ForecastCmd) Run(g *Globals, ctx context.Context) error {
	client, closeCache, err := weatherClient(ctx, g)
	if err != nil {
		return err
	}
	defer closeCache()

	fc, err := client.Forecast(ctx, c.Lat, c.Lon)
	if err != nil {
		return err
	}
	daily, err := forecast.Summarize(fc.List)
	if err != nil {
		return err
	}

	location := fc.City.Name
	if location == "" {
		location = models.LocationKey(c.Lat, c.Lon)
	}
	displayForecast(os.Stdout, location, daily)
	return nil
}

type HistoryCmd struct {
	Show   HistoryShowCmd   `cmd:"" default:"withargs" help:"Print recorded snapshots for a point."`
	Info   HistoryInfoCmd   `cmd:"" help:"Show how much history is stored."`
	Export HistoryExportCmd `cmd:"" help:"Write every snapshot as JSON."`
	Import HistoryImportCmd `cmd:"" help:"Load snapshots from an export."`
	Clear  HistoryClearCmd  `cmd:"" help:"Delete all history."`
	Prune  HistoryPruneCmd  `cmd:"" help:"Delete snapshots older than the retention window."`
	Sample HistorySampleCmd `cmd:"" help:"Generate a month of synthetic history for a point."`
}

type HistoryShowCmd struct {
	Lat  float64 `arg:"" help:"Latitude."`
	Lon  float64 `arg:"" help:"Longitude."`
	Days int     `help:"Days to look back." default:"7"`
}

func (c *HistoryShowCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	snaps, err := a.history.History(ctx, c.Lat, c.Lon, c.Days)
	if err != nil {
		return err
	}
	displayHistory(os.Stdout, models.LocationKey(c.Lat, c.Lon), snaps)
	return nil
}

type HistoryInfoCmd struct{}

func (c *HistoryInfoCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	info, err := a.history.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Snapshots:  %s\n", humanize.Comma(int64(info.Count)))
	fmt.Printf("Est. size:  %s\n", info.EstimatedSize)
	fmt.Printf("Retention:  %d days\n", a.history.RetentionDays())
	return nil
}

type HistoryExportCmd struct {
	Output   string `short:"o" help:"Output file. Defaults to stdout." type:"path"`
	Compress bool   `help:"Frame the export with zstd."`
}

func (c *HistoryExportCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.history.Export(ctx)
	if err != nil {
		return err
	}
	raw := len(data)
	if c.Compress {
		data = backup.Compress(data)
	}

	if c.Output == "" || c.Output == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(c.Output, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	log.Printf("exported %s to %s (%s)", humanize.IBytes(uint64(raw)), c.Output, humanize.IBytes(uint64(len(data))))
	return nil
}

type HistoryImportCmd struct {
	File string `arg:"" help:"Export to load, plain or zstd. Use - for stdin."`
}

func (c *HistoryImportCmd) Run(g *Globals, ctx context.Context) error {
	var (
		data []byte
		err  error
	)
	if c.File == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(c.File)
	}
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	data, err = backup.Decompress(data)
	if err != nil {
		return err
	}

	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.history.Import(ctx, data)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %s snapshots\n", humanize.Comma(int64(n)))
	return nil
}

type HistoryClearCmd struct {
	Yes bool `help:"Confirm deleting all history."`
}

func (c *HistoryClearCmd) Run(g *Globals, ctx context.Context) error {
	if !c.Yes {
		return fmt.Errorf("refusing to clear history without --yes")
	}
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.history.Clear(ctx)
}

type HistoryPruneCmd struct{}

func (c *HistoryPruneCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.history.Cleanup(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d snapshots\n", n)
	return nil
}

type HistorySampleCmd struct {
	Lat  float64 `arg:"" help:"Latitude."`
	Lon  float64 `arg:"" help:"Longitude."`
	Temp float64 `help:"Temperature the series is centred on." default:"20"`
	Name string  `help:"Location name to record."`
}

func (c *HistorySampleCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	snaps, err := a.history.GenerateSample(ctx, c.Lat, c.Lon, c.Name, c.Temp)
	if err != nil {
		return err
	}
	fmt.Printf("Generated %d snapshots for %s\n", len(snaps), models.LocationKey(c.Lat, c.Lon))
	return nil
}

type FavoritesCmd struct {
	List   FavoritesListCmd   `cmd:"" default:"1" help:"List favorites."`
	Add    FavoritesAddCmd    `cmd:"" help:"Add a favorite."`
	Remove FavoritesRemoveCmd `cmd:"" help:"Remove a favorite by ID."`
}

type FavoritesListCmd struct{}

func (c *FavoritesListCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	favs, err := a.state.ListFavorites(ctx)
	if err != nil {
		return err
	}
	displayFavorites(os.Stdout, favs)
	return nil
}

type FavoritesAddCmd struct {
	Name string  `arg:"" help:"Display name."`
	Lat  float64 `arg:"" help:"Latitude."`
	Lon  float64 `arg:"" help:"Longitude."`
}

func (c *FavoritesAddCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	added, err := a.state.AddFavorite(ctx, c.Name, c.Lat, c.Lon)
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("%s is already a favorite or the list is full", c.Name)
	}
	fmt.Printf("Added %s (%s)\n", c.Name, models.FavoriteID(c.Lat, c.Lon))
	return nil
}

type FavoritesRemoveCmd struct {
	ID string `arg:"" help:"Favorite ID as shown by list."`
}

func (c *FavoritesRemoveCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.state.RemoveFavorite(ctx, c.ID)
}
