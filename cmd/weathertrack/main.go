package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
)

// Globals are shared by every command.
type Globals struct {
	DB            string `help:"Path to the SQLite database." default:"data/weathertrack.db" env:"WEATHERTRACK_DB" type:"path"`
	Backend       string `help:"History storage engine." enum:"sqlite,badger,memory" default:"sqlite" env:"WEATHERTRACK_BACKEND"`
	BadgerDir     string `help:"Data directory for the badger backend." default:"data" env:"WEATHERTRACK_BADGER_DIR" type:"path"`
	Timezone      string `help:"Zone used to bucket snapshots by day and hour." default:"Local" env:"WEATHERTRACK_TZ"`
	RetentionDays int    `help:"Days of history to keep." default:"30" env:"WEATHERTRACK_RETENTION_DAYS"`
	APIKey        string `help:"OpenWeatherMap API key." env:"OWM_API_KEY"`
	Units         string `help:"Measurement units for the weather service." enum:"metric,imperial,standard" default:"metric" env:"OWM_UNITS"`
	RedisURL      string `help:"Optional Redis URL for response caching." env:"REDIS_URL"`
}

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `embed:""`
	Globals

	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API and the background refresher."`
	Weather   WeatherCmd   `cmd:"" help:"Fetch current weather for a point and record it."`
	City      CityCmd      `cmd:"" help:"Fetch current weather for a city by name and record it."`
	Forecast  ForecastCmd  `cmd:"" help:"Print the five-day forecast for a point."`
	History   HistoryCmd   `cmd:"" help:"Inspect and manage recorded history."`
	Favorites FavoritesCmd `cmd:"" help:"Manage favorite locations."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("weathertrack"),
		kong.Description("Weather forecasts with a rolling local history."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := kctx.Run(&cli.Globals); err != nil {
		log.Fatalf("%s: %v", kctx.Command(), err)
	}
}
