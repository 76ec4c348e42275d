package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadmarket_backend/platform/logger"
)

const nominatimURL = "https://nominatim.openstreetmap.org/search"

// Coordinates is a resolved lat/lng pair.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Geocoder resolves a postal location to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, zip, city, state string) (Coordinates, bool, error)
}

// NominatimGeocoder looks up coordinates via the public Nominatim API.
type NominatimGeocoder struct {
	client *http.Client
	log    *logger.Logger
}

// NewNominatimGeocoder creates a geocoder with a bounded request timeout.
func NewNominatimGeocoder(log *logger.Logger) *NominatimGeocoder {
	return &NominatimGeocoder{
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log,
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode resolves a zip/city/state to coordinates. The second return value
// is false when the location could not be resolved; that is not an error.
func (g *NominatimGeocoder) Geocode(ctx context.Context, zip, city, state string) (Coordinates, bool, error) {
	query := strings.TrimSpace(strings.Join(nonEmpty(zip, city, state), ", "))
	if query == "" {
		return Coordinates{}, false, nil
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("format", "json")
	params.Add("limit", "1")
	params.Add("countrycodes", "us")

	reqURL := fmt.Sprintf("%s?%s", nominatimURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Coordinates{}, false, err
	}
	req.Header.Set("User-Agent", "LeadMarket/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Error("nominatim request failed", "error", err)
		return Coordinates{}, false, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		g.log.Error("nominatim upstream error", "status", resp.StatusCode)
		return Coordinates{}, false, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		g.log.Error("failed to decode nominatim payload", "error", err)
		return Coordinates{}, false, err
	}

	if len(results) == 0 {
		return Coordinates{}, false, nil
	}

	lat, latErr := strconv.ParseFloat(results[0].Lat, 64)
	lng, lngErr := strconv.ParseFloat(results[0].Lon, 64)
	if latErr != nil || lngErr != nil {
		return Coordinates{}, false, nil
	}

	return Coordinates{Lat: lat, Lng: lng}, true, nil
}

func nonEmpty(values ...string) []string {
	results := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

// Compile-time check that NominatimGeocoder implements Geocoder.
var _ Geocoder = (*NominatimGeocoder)(nil)
