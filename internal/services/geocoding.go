package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

// GeocodingService labels session start points with a human-readable address
// using the Google Maps Geocoding API. Results are cached because members
// tend to start sessions from the same handful of places.
type GeocodingService struct {
	apiKey string
	client *http.Client
	cache  *GeocodeCache
}

// GoogleGeocodeResponse represents the Google Maps Geocoding API response
type GoogleGeocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status string `json:"status"`
}

// NewGeocodingService creates a new geocoding service
func NewGeocodingService() (*GeocodingService, error) {
	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY environment variable is required")
	}

	return &GeocodingService{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  NewGeocodeCache(),
	}, nil
}

// ReverseGeocode converts coordinates into a formatted address.
func (s *GeocodingService) ReverseGeocode(lat, lng float64) (string, error) {
	if label, found := s.cache.Get(lat, lng); found {
		return label, nil
	}

	baseURL := "https://maps.googleapis.com/maps/api/geocode/json"

	params := url.Values{}
	params.Add("latlng", fmt.Sprintf("%f,%f", lat, lng))
	params.Add("key", s.apiKey)

	fullURL := fmt.Sprintf("%s?%s", baseURL, params.Encode())

	resp, err := s.client.Get(fullURL)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status code %d", resp.StatusCode)
	}

	var result GoogleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Status != "OK" || len(result.Results) == 0 {
		return "", fmt.Errorf("geocoding API returned status: %s", result.Status)
	}

	label := result.Results[0].FormattedAddress
	s.cache.Put(lat, lng, label)
	return label, nil
}
