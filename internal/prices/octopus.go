package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/awaistahir/smart-save/internal/engine"
)

const (
	octopusAPIBase = "https://api.octopus.energy/v1"
	// Current Agile product code - update as needed
	defaultAgileProduct = "AGILE-24-10-01"
)

// Slot is one half-hourly unit rate
type Slot struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	PencePerKWh float64   `json:"pence_per_kwh"`
}

// OctopusClient fetches electricity prices from Octopus Energy Agile tariff
type OctopusClient struct {
	httpClient *http.Client
	baseURL    string
	product    string
	region     string
}

// NewOctopusClient creates a new client for the Octopus Agile API
func NewOctopusClient(region string) *OctopusClient {
	return &OctopusClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    octopusAPIBase,
		product:    defaultAgileProduct,
		region:     region,
	}
}

// WithBaseURL points the client at another endpoint, e.g. a test server
func (c *OctopusClient) WithBaseURL(u string) *OctopusClient {
	c.baseURL = u
	return c
}

// octopusResponse represents the API response structure
type octopusResponse struct {
	Count   int          `json:"count"`
	Next    *string      `json:"next"`
	Results []resultItem `json:"results"`
}

type resultItem struct {
	ValueExcVAT float64   `json:"value_exc_vat"`
	ValueIncVAT float64   `json:"value_inc_vat"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
}

// HalfHourly fetches half-hourly prices for a specific day and region
func (c *OctopusClient) HalfHourly(ctx context.Context, day time.Time, region string) ([]Slot, error) {
	if region == "" {
		region = c.region
	}

	// Construct tariff code: E-1R-{PRODUCT}-{REGION}
	tariffCode := fmt.Sprintf("E-1R-%s-%s", c.product, region)

	endpoint := fmt.Sprintf("%s/products/%s/electricity-tariffs/%s/standard-unit-rates/",
		c.baseURL, c.product, tariffCode)

	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	params := url.Values{}
	params.Add("period_from", startOfDay.Format(time.RFC3339))
	params.Add("period_to", endOfDay.Format(time.RFC3339))

	fullURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var octResp octopusResponse
	if err := json.NewDecoder(resp.Body).Decode(&octResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	slots := make([]Slot, 0, len(octResp.Results))
	for _, r := range octResp.Results {
		slots = append(slots, Slot{
			Start:       r.ValidFrom,
			End:         r.ValidTo,
			PencePerKWh: r.ValueIncVAT,
		})
	}

	// API returns newest first
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})

	return slots, nil
}

// DayNightPlan collapses half-hourly rates into a two-rate plan by averaging
// the slots that start inside the day window and those outside it. Prices
// are converted from pence to pounds.
func DayNightPlan(name string, slots []Slot, dayStart, dayEnd int, loc *time.Location) (engine.TariffPlan, error) {
	if len(slots) == 0 {
		return engine.TariffPlan{}, fmt.Errorf("%w: no price slots", engine.ErrInvalidInput)
	}
	if loc == nil {
		loc = time.Local
	}

	plan := engine.TariffPlan{Name: name, DayStartHour: dayStart, DayEndHour: dayEnd}

	var daySum, nightSum float64
	var dayN, nightN int
	for _, s := range slots {
		if _, period := engine.PriceAt(plan, s.Start.In(loc)); period == engine.PeriodDay {
			daySum += s.PencePerKWh
			dayN++
		} else {
			nightSum += s.PencePerKWh
			nightN++
		}
	}

	// A window with no slots borrows the other side's average
	switch {
	case dayN == 0:
		daySum, dayN = nightSum, nightN
	case nightN == 0:
		nightSum, nightN = daySum, dayN
	}

	plan.DayPrice = daySum / float64(dayN) / 100
	plan.NightPrice = nightSum / float64(nightN) / 100
	return plan, nil
}
