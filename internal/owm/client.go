// Package owm is an OpenWeatherMap client with retries, a circuit breaker and
// an optional Redis response cache.
package owm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/lox/weathertrack/internal/cache"
	"github.com/lox/weathertrack/internal/httputil"
	"github.com/lox/weathertrack/internal/metrics"
	"github.com/lox/weathertrack/internal/models"
)

const DefaultBaseURL = "https://api.openweathermap.org"

// Cache lifetimes per endpoint.
const (
	CurrentTTL  = 5 * time.Minute
	ForecastTTL = 5 * time.Minute
	AirTTL      = 30 * time.Minute
	CitiesTTL   = 5 * time.Minute
)

// MinQueryLen is the shortest city query that reaches the geocoder.
const MinQueryLen = 2

var (
	ErrNotFound     = errors.New("location not found")
	ErrUnauthorized = errors.New("invalid API key")
	ErrUnavailable  = errors.New("weather service unavailable")
)

type Client struct {
	apiKey     string
	baseURL    string
	units      string
	client     *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      *cache.Cache
	maxElapsed time.Duration
}

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithCache enables response caching. A nil cache disables it.
func WithCache(cc *cache.Cache) Option {
	return func(c *Client) { c.cache = cc }
}

func WithUnits(units string) Option {
	return func(c *Client) {
		if units != "" {
			c.units = units
		}
	}
}

// WithMaxRetryTime bounds how long a single call keeps retrying.
func WithMaxRetryTime(d time.Duration) Option {
	return func(c *Client) { c.maxElapsed = d }
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		units:      "metric",
		client:     httputil.NewClient(),
		maxElapsed: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// Client errors say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized)
		},
	})
	return c
}

func coordParams(lat, lon float64) url.Values {
	return url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
}

func (c *Client) Current(ctx context.Context, lat, lon float64) (*CurrentWeather, error) {
	var out CurrentWeather
	params := coordParams(lat, lon)
	params.Set("units", c.units)
	key := cache.Key("weather", models.LocationKey(lat, lon), c.units)
	if err := c.getJSON(ctx, "weather", "/data/2.5/weather", params, key, CurrentTTL, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CurrentByCity(ctx context.Context, city string) (*CurrentWeather, error) {
	var out CurrentWeather
	params := url.Values{"q": {city}, "units": {c.units}}
	key := cache.Key("weather", "q", city, c.units)
	if err := c.getJSON(ctx, "weather", "/data/2.5/weather", params, key, CurrentTTL, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	var out Forecast
	params := coordParams(lat, lon)
	params.Set("units", c.units)
	key := cache.Key("forecast", models.LocationKey(lat, lon), c.units)
	if err := c.getJSON(ctx, "forecast", "/data/2.5/forecast", params, key, ForecastTTL, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AirPollution returns the current air quality reading, or nil when the
// service has none for the point.
func (c *Client) AirPollution(ctx context.Context, lat, lon float64) (*models.AirQuality, error) {
	var resp airPollutionResponse
	key := cache.Key("air", models.LocationKey(lat, lon))
	if err := c.getJSON(ctx, "air_pollution", "/data/2.5/air_pollution", coordParams(lat, lon), key, AirTTL, &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 {
		return nil, nil
	}
	first := resp.List[0]
	return &models.AirQuality{AQI: first.Main.AQI, Components: first.Components, Dt: first.Dt}, nil
}

// SearchCities geocodes a free-text query. Queries shorter than MinQueryLen
// return an empty result without calling the service.
func (c *Client) SearchCities(ctx context.Context, query string, limit int) ([]models.City, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLen {
		return []models.City{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	out := []models.City{}
	params := url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}
	key := cache.Key("cities", query, strconv.Itoa(limit))
	if err := c.getJSON(ctx, "geo_direct", "/geo/1.0/direct", params, key, CitiesTTL, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReverseGeocode returns the best place name for a point, or nil if none.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.City, error) {
	var out []models.City
	params := coordParams(lat, lon)
	params.Set("limit", "1")
	key := cache.Key("reverse", models.LocationKey(lat, lon))
	if err := c.getJSON(ctx, "geo_reverse", "/geo/1.0/reverse", params, key, CitiesTTL, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, cacheKey string, ttl time.Duration, dest any) error {
	if c.cache != nil {
		hit, err := c.cache.GetJSON(ctx, cacheKey, dest)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues(endpoint, "error").Inc()
		case hit:
			metrics.CacheLookups.WithLabelValues(endpoint, "hit").Inc()
			return nil
		default:
			metrics.CacheLookups.WithLabelValues(endpoint, "miss").Inc()
		}
	}

	params.Set("appid", c.apiKey)
	u := c.baseURL + path + "?" + params.Encode()

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, endpoint, u)
	})
	metrics.WeatherAPILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		status := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			status = "circuit_open"
			err = fmt.Errorf("%s: %w: %v", endpoint, ErrUnavailable, err)
		}
		metrics.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
		return err
	}
	metrics.WeatherAPICallsTotal.WithLabelValues(endpoint, "ok").Inc()

	body := result.([]byte)
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", endpoint, err)
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, dest, ttl); err != nil {
			metrics.CacheLookups.WithLabelValues(endpoint, "error").Inc()
		}
	}
	return nil
}

// fetch GETs u, retrying rate limits and server errors with exponential
// backoff.
func (c *Client) fetch(ctx context.Context, endpoint, u string) ([]byte, error) {
	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build %s request: %w", endpoint, err))
		}
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, err))
			}
			return fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("fetch %s: status %d: %w", endpoint, resp.StatusCode, ErrUnavailable)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, ErrNotFound))
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", endpoint, ErrUnauthorized))
		case resp.StatusCode != http.StatusOK:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", endpoint, resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read %s body: %w", endpoint, err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
