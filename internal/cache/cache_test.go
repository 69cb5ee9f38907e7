package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/weathertrack/internal/cache"
	"github.com/lox/weathertrack/internal/models"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.New(client), mr
}

func TestCache_SetAndGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	obs := models.Observation{
		Main:    models.MainReading{Temp: 22.5},
		Weather: []models.Condition{{Main: "Clear", Description: "clear sky", Icon: "01d"}},
	}
	key := cache.Key("weather", "51.51", "-0.13")
	require.NoError(t, c.SetJSON(ctx, key, obs, time.Minute))

	var got models.Observation
	hit, err := c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 22.5, got.Main.Temp)
	assert.Equal(t, "clear sky", got.PrimaryCondition().Description)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	var got models.Observation
	hit, err := c.GetJSON(context.Background(), cache.Key("weather", "nowhere"), &got)
	require.NoError(t, err)
	assert.False(t, hit, "cache miss should report false without error")
}

func TestCache_Expires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	key := cache.Key("air", "1.00", "2.00")
	require.NoError(t, c.SetJSON(ctx, key, models.AirQuality{AQI: 2}, 30*time.Minute))

	mr.FastForward(31 * time.Minute)

	var got models.AirQuality
	hit, err := c.GetJSON(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_Delete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	key := cache.Key("cities", "Paris")
	require.NoError(t, c.SetJSON(ctx, key, []models.City{{Name: "Paris"}}, time.Minute))
	require.NoError(t, c.Delete(ctx, key))
	assert.False(t, mr.Exists(key))
}

func TestKey_Normalises(t *testing.T) {
	assert.Equal(t, "weathertrack:cities:paris", cache.Key("cities", "  PARIS "))
	assert.Equal(t, cache.Key("cities", "Paris"), cache.Key("cities", "paris"))
}

func TestCache_CorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	key := cache.Key("weather", "x")
	require.NoError(t, mr.Set(key, "{not json"))

	var got models.Observation
	_, err := c.GetJSON(context.Background(), key, &got)
	assert.Error(t, err)
}

func TestConnect_BadURL(t *testing.T) {
	_, err := cache.Connect(context.Background(), "not-a-url://")
	assert.Error(t, err)
}
