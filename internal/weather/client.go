package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"

	"github.com/i474232898/climatempo-relay/internal/common"
)

const (
	regionPath  = "/api/v1/forecast/region/"
	countryPath = "/api/v1/anl/synoptic/locale/"
)

var validate = validator.New()

// Client queries the Climatempo advisor API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewClient creates a Client for baseURL authenticated by token.
func NewClient(httpClient *http.Client, baseURL, token string, breaker BreakerConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		circuit: newBreaker("climatempo", breaker),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for ReportRecord.GeneratedAt.
func (c *Client) SetClock(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Fetch dispatches to the endpoint matching the subject kind.
func (c *Client) Fetch(ctx context.Context, s Subject) (ReportRecord, error) {
	switch s.Kind {
	case SubjectRegion:
		return c.FetchByRegion(ctx, s.Code)
	case SubjectCountry:
		return c.FetchByCountry(ctx, s.Code)
	default:
		return ReportRecord{}, fmt.Errorf("%w: unknown subject kind %q", ErrFetch, s.Kind)
	}
}

type regionPayload struct {
	Region string        `json:"region" validate:"required"`
	Data   []regionEntry `json:"data" validate:"required,dive"`
}

type regionEntry struct {
	DateBR string `json:"date_br" validate:"required"`
	Text   string `json:"text" validate:"required_without=Image"`
	Image  string `json:"image"`
}

// FetchByRegion fetches the forecast for a region code.
func (c *Client) FetchByRegion(ctx context.Context, region string) (ReportRecord, error) {
	var payload regionPayload
	if err := c.getJSON(ctx, regionPath+url.PathEscape(region), &payload); err != nil {
		return ReportRecord{}, fmt.Errorf("%w: region %s: %w", ErrFetch, region, err)
	}
	if err := validate.Struct(payload); err != nil {
		return ReportRecord{}, fmt.Errorf("%w: region %s: malformed response: %w", ErrFetch, region, err)
	}

	rec := ReportRecord{
		Kind:        SubjectRegion,
		Label:       payload.Region,
		GeneratedAt: common.DayStamp(c.now()),
		Entries:     make([]Entry, 0, len(payload.Data)),
	}
	for _, item := range payload.Data {
		text := item.Text
		if text == "" {
			text = item.Image
		}
		rec.Entries = append(rec.Entries, Entry{Date: item.DateBR, Text: text})
	}
	return rec, nil
}

type countryEntry struct {
	Country string `json:"country" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Text    string `json:"text" validate:"required"`
}

// FetchByCountry fetches the synoptic analysis for a country code.
// Only the first element of the response is used.
func (c *Client) FetchByCountry(ctx context.Context, country string) (ReportRecord, error) {
	var payload []countryEntry
	if err := c.getJSON(ctx, countryPath+url.PathEscape(country), &payload); err != nil {
		return ReportRecord{}, fmt.Errorf("%w: country %s: %w", ErrFetch, country, err)
	}
	if len(payload) == 0 {
		return ReportRecord{}, fmt.Errorf("%w: country %s: empty response", ErrFetch, country)
	}
	first := payload[0]
	if err := validate.Struct(first); err != nil {
		return ReportRecord{}, fmt.Errorf("%w: country %s: malformed response: %w", ErrFetch, country, err)
	}

	return ReportRecord{
		Kind:        SubjectCountry,
		Label:       first.Country,
		GeneratedAt: common.DayStamp(c.now()),
		Entries:     []Entry{{Date: first.Date, Text: first.Text}},
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	values := url.Values{}
	values.Set("token", c.token)

	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := doRequest(c.http, c.circuit, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
