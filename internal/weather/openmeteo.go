package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/awaistahir/smart-save/internal/engine"
)

const openMeteoAPIBase = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoClient fetches current conditions from the Open-Meteo API
type OpenMeteoClient struct {
	httpClient *http.Client
	baseURL    string
	latitude   float64
	longitude  float64
}

// NewOpenMeteoClient creates a new Open-Meteo client
func NewOpenMeteoClient(lat, lon float64) *OpenMeteoClient {
	return &OpenMeteoClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    openMeteoAPIBase,
		latitude:   lat,
		longitude:  lon,
	}
}

// WithBaseURL points the client at another endpoint, e.g. a test server
func (c *OpenMeteoClient) WithBaseURL(u string) *OpenMeteoClient {
	c.baseURL = u
	return c
}

// currentResponse represents the API response
type currentResponse struct {
	Current struct {
		Time               string   `json:"time"`
		Temperature2m      *float64 `json:"temperature_2m"`
		RelativeHumidity2m *float64 `json:"relative_humidity_2m"`
		WindSpeed10m       *float64 `json:"wind_speed_10m"`
		WeatherCode        *int     `json:"weather_code"`
	} `json:"current"`
}

// Current fetches the outdoor temperature, humidity, wind and weather code
// right now. Fields the API leaves out stay nil so the matching rules do not
// fire.
func (c *OpenMeteoClient) Current(ctx context.Context) (*engine.Weather, error) {
	params := url.Values{}
	params.Add("latitude", fmt.Sprintf("%.4f", c.latitude))
	params.Add("longitude", fmt.Sprintf("%.4f", c.longitude))
	params.Add("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")
	params.Add("timezone", "auto")

	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var meteoResp currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&meteoResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &engine.Weather{
		Temperature: meteoResp.Current.Temperature2m,
		Humidity:    meteoResp.Current.RelativeHumidity2m,
		Wind:        meteoResp.Current.WindSpeed10m,
		Code:        meteoResp.Current.WeatherCode,
	}, nil
}
