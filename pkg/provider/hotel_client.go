package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotConfigured is returned when no provider API URL was supplied
var ErrNotConfigured = errors.New("hotel provider client is not configured")

// ConfirmResult is the provider's answer to a confirmation request
type ConfirmResult struct {
	Confirmed         bool   `json:"confirmed"`
	ProviderStatus    string `json:"status"`
	ConfirmationCode  string `json:"confirmation_code,omitempty"`
	Message           string `json:"message,omitempty"`
	ProviderBookingID string `json:"booking_id"`
}

// HotelClient talks to the hotel supplier's booking API
type HotelClient struct {
	apiURL string
	apiKey string
	client *http.Client
}

// HotelClientConfig holds configuration for the hotel provider client
type HotelClientConfig struct {
	APIURL string
	APIKey string
	// Timeout bounds the HTTP call; callers may impose a shorter deadline via context
	Timeout time.Duration
}

// NewHotelClient creates a new hotel provider client
func NewHotelClient(config HotelClientConfig) *HotelClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HotelClient{
		apiURL: strings.TrimRight(config.APIURL, "/"),
		apiKey: config.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type confirmRequest struct {
	BookingID string `json:"booking_id"`
}

// ConfirmBooking asks the provider to (re-)confirm a booking.
// A non-nil error means the outcome is unknown; a result with Confirmed=false is a definite refusal.
func (c *HotelClient) ConfirmBooking(ctx context.Context, providerBookingID string) (*ConfirmResult, error) {
	if c.apiURL == "" {
		return nil, ErrNotConfigured
	}
	if providerBookingID == "" {
		return nil, fmt.Errorf("provider booking id is required")
	}

	body, err := json.Marshal(confirmRequest{BookingID: providerBookingID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal confirm request: %w", err)
	}

	url := fmt.Sprintf("%s/bookings/%s/confirm", c.apiURL, providerBookingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result ConfirmResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse provider response (status %d): %w", resp.StatusCode, err)
	}

	// 4xx with a parseable body is a definite "not confirmed"
	if resp.StatusCode >= 400 {
		result.Confirmed = false
	}
	if result.ProviderBookingID == "" {
		result.ProviderBookingID = providerBookingID
	}

	return &result, nil
}
