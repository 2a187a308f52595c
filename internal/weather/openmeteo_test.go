package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code", r.URL.Query().Get("current"))
		assert.Equal(t, "50.4501", r.URL.Query().Get("latitude"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":{"time":"2024-07-01T12:00","temperature_2m":27.5,"relative_humidity_2m":74,"wind_speed_10m":24.1,"weather_code":81}}`))
	}))
	defer srv.Close()

	c := NewOpenMeteoClient(50.4501, 30.5234).WithBaseURL(srv.URL)
	w, err := c.Current(context.Background())
	require.NoError(t, err)

	require.NotNil(t, w.Temperature)
	require.NotNil(t, w.Humidity)
	assert.Equal(t, 27.5, *w.Temperature)
	assert.Equal(t, 74.0, *w.Humidity)
	require.NotNil(t, w.Wind)
	require.NotNil(t, w.Code)
	assert.Equal(t, 24.1, *w.Wind)
	assert.Equal(t, 81, *w.Code)
}

func TestCurrentMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"current":{"time":"2024-07-01T12:00"}}`))
	}))
	defer srv.Close()

	w, err := NewOpenMeteoClient(0, 0).WithBaseURL(srv.URL).Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, w.Temperature)
	assert.Nil(t, w.Humidity)
	assert.Nil(t, w.Wind)
	assert.Nil(t, w.Code)
}

func TestCurrentHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenMeteoClient(0, 0).WithBaseURL(srv.URL).Current(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
