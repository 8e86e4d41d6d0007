// Package google is a minimal client for the Google Places API (New) Text
// Search endpoint, returning the listing fields a lead record needs.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shivortex/lead-scraper/internal/fetcher"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// FieldMask lists the place fields requested from Text Search. Billing tier
// depends on it, so it names only what a lead record uses.
var FieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.addressComponents",
	"places.location",
	"places.nationalPhoneNumber",
	"places.internationalPhoneNumber",
	"places.websiteUri",
	"places.googleMapsUri",
	"places.primaryType",
	"places.primaryTypeDisplayName",
	"nextPageToken",
}, ",")

// Client performs Google Places API operations.
type Client interface {
	SearchText(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
}

// TextSearchRequest is the body of a Places Text Search call.
type TextSearchRequest struct {
	TextQuery    string `json:"textQuery"`
	PageSize     int    `json:"pageSize,omitempty"`
	PageToken    string `json:"pageToken,omitempty"`
	IncludedType string `json:"includedType,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
	RegionCode   string `json:"regionCode,omitempty"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}

// Place represents a place returned by the API.
type Place struct {
	ID                       string             `json:"id"`
	DisplayName              DisplayName        `json:"displayName"`
	FormattedAddress         string             `json:"formattedAddress,omitempty"`
	AddressComponents        []AddressComponent `json:"addressComponents,omitempty"`
	Location                 *LatLng            `json:"location,omitempty"`
	NationalPhoneNumber      string             `json:"nationalPhoneNumber,omitempty"`
	InternationalPhoneNumber string             `json:"internationalPhoneNumber,omitempty"`
	WebsiteURI               string             `json:"websiteUri,omitempty"`
	GoogleMapsURI            string             `json:"googleMapsUri,omitempty"`
	PrimaryType              string             `json:"primaryType,omitempty"`
	PrimaryTypeDisplayName   *DisplayName       `json:"primaryTypeDisplayName,omitempty"`
}

// DisplayName holds a localized display string.
type DisplayName struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// AddressComponent is one structured part of a place's address.
type AddressComponent struct {
	LongText  string   `json:"longText"`
	ShortText string   `json:"shortText,omitempty"`
	Types     []string `json:"types"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// City returns the locality of the place, falling back to postal town and
// then the first administrative area below the state.
func (p Place) City() string {
	for _, typ := range []string{"locality", "postal_town", "administrative_area_level_2"} {
		for _, c := range p.AddressComponents {
			for _, t := range c.Types {
				if t == typ {
					return c.LongText
				}
			}
		}
	}
	return ""
}

// Phone prefers the international format.
func (p Place) Phone() string {
	if p.InternationalPhoneNumber != "" {
		return p.InternationalPhoneNumber
	}
	return p.NationalPhoneNumber
}

// Category returns the human-readable primary type, or the raw type id.
func (p Place) Category() string {
	if p.PrimaryTypeDisplayName != nil && p.PrimaryTypeDisplayName.Text != "" {
		return p.PrimaryTypeDisplayName.Text
	}
	return p.PrimaryType
}

// APIError is a non-200 response from the Places API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Doer sends an HTTP request. *http.Client and the rate-limited fetcher both
// satisfy it through adapters.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type stdDoer struct {
	hc *http.Client
}

func (d stdDoer) Do(_ context.Context, req *http.Request) (*http.Response, error) {
	return d.hc.Do(req)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.doer = stdDoer{hc: hc}
	}
}

// WithDoer routes requests through d, typically a retrying, rate-limited
// fetcher.
func WithDoer(d Doer) Option {
	return func(c *httpClient) {
		c.doer = d
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	doer    Doer
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		doer:    stdDoer{hc: &http.Client{Timeout: 10 * time.Second}},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchText(ctx context.Context, in TextSearchRequest) (*TextSearchResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", FieldMask)

	resp, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "google: read response")
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	result, err := fetcher.DecodeJSONObject[TextSearchResponse](resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}
	return result, nil
}
