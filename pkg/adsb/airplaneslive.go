package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/radarfusion/pkg/coordinates"
)

// MaxAirplanesLiveRadiusNM is the largest radius the point endpoint accepts.
const MaxAirplanesLiveRadiusNM = 250.0

// AirplanesLiveClient implements Feed for the airplanes.live API.
// API Documentation: https://airplanes.live/api-guide/
// Rate Limit: 1 request per second
type AirplanesLiveClient struct {
	// baseURL is the API base URL (default: https://api.airplanes.live/v2)
	baseURL string

	httpClient *http.Client
	limiter    *rate.Limiter

	// query point
	centerLat float64
	centerLon float64
	radiusNM  float64

	source Source

	// now is replaceable in tests so "seen" offsets are deterministic.
	now func() time.Time
}

// AirplanesLiveOptions configures an AirplanesLiveClient.
type AirplanesLiveOptions struct {
	BaseURL   string
	CenterLat float64
	CenterLon float64
	RadiusNM  float64

	// RequestsPerSecond defaults to 1.
	RequestsPerSecond float64

	// Source defaults to SourceADSB.
	Source Source

	Timeout time.Duration
}

// NewAirplanesLiveClient creates a new airplanes.live API client.
func NewAirplanesLiveClient(opts AirplanesLiveOptions) *AirplanesLiveClient {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	src := opts.Source
	if src == "" {
		src = SourceADSB
	}
	radius := math.Min(opts.RadiusNM, MaxAirplanesLiveRadiusNM)

	return &AirplanesLiveClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		centerLat:  opts.CenterLat,
		centerLon:  opts.CenterLon,
		radiusNM:   radius,
		source:     src,
		now:        time.Now,
	}
}

// Source returns the tag stamped on every report.
func (c *AirplanesLiveClient) Source() Source {
	return c.source
}

// FetchReports returns all aircraft within the configured radius.
// Uses the /point/[lat]/[lon]/[radius] endpoint.
func (c *AirplanesLiveClient) FetchReports(ctx context.Context) ([]Report, error) {
	url := fmt.Sprintf("%s/point/%.4f/%.4f/%.0f", c.baseURL, c.centerLat, c.centerLon, c.radiusNM)
	apiResp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	reports := make([]Report, 0, len(apiResp.Aircraft))
	for _, ac := range apiResp.Aircraft {
		reports = append(reports, c.convert(ac, now))
	}
	return reports, nil
}

// FetchByAddress returns the report for one ICAO hex address, or nil if
// the aircraft is not currently seen. Uses the /hex/[hex] endpoint.
func (c *AirplanesLiveClient) FetchByAddress(ctx context.Context, address string) (*Report, error) {
	url := fmt.Sprintf("%s/hex/%s", c.baseURL, strings.ToLower(address))
	apiResp, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(apiResp.Aircraft) == 0 {
		return nil, nil
	}
	r := c.convert(apiResp.Aircraft[0], c.now().UTC())
	return &r, nil
}

// Close is a no-op; the API has no persistent connection.
func (c *AirplanesLiveClient) Close() error {
	return nil
}

func (c *AirplanesLiveClient) get(ctx context.Context, url string) (*airplanesLiveResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aircraft data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Message:    "Rate limit exceeded",
			Headers:    extractRateLimitHeaders(resp.Header),
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp airplanesLiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	return &apiResp, nil
}

type airplanesLiveResponse struct {
	Aircraft []airplanesLiveAircraft `json:"ac"`
	Total    int                     `json:"total"`
	Now      float64                 `json:"now"`
}

// airplanesLiveAircraft is a single entry of the "ac" array.
// Field documentation: https://airplanes.live/adsb-field-explanations/
type airplanesLiveAircraft struct {
	Hex          string   `json:"hex"`
	Flight       *string  `json:"flight"`
	Registration *string  `json:"r"`
	TypeCode     *string  `json:"t"`
	Description  *string  `json:"desc"`
	Operator     *string  `json:"ownOp"`
	Squawk       *string  `json:"squawk"`
	Category     *string  `json:"category"`
	Lat          *float64 `json:"lat"`
	Lon          *float64 `json:"lon"`

	// AltBaro/AltGeom are feet, or the string "ground"
	AltBaro interface{} `json:"alt_baro"`
	AltGeom interface{} `json:"alt_geom"`

	Gs       *float64 `json:"gs"`        // knots
	Track    *float64 `json:"track"`     // degrees
	BaroRate *float64 `json:"baro_rate"` // ft/min
	GeomRate *float64 `json:"geom_rate"` // ft/min

	// Seen is seconds since any message, SeenPos since the last position.
	Seen    *float64 `json:"seen"`
	SeenPos *float64 `json:"seen_pos"`
}

// convert maps an API entry to a Report in SI units.
// The position is only attached when lat, lon and altitude are all known;
// otherwise the report carries identity and metadata only.
func (c *AirplanesLiveClient) convert(ac airplanesLiveAircraft, now time.Time) Report {
	r := Report{
		Address:  strings.ToUpper(strings.TrimSpace(ac.Hex)),
		Source:   c.source,
		Maneuver: ManeuverUnknown,
	}
	if ac.Flight != nil {
		r.Callsign = strings.TrimSpace(*ac.Flight)
	}
	if ac.Registration != nil {
		r.Registration = strings.TrimSpace(*ac.Registration)
	}
	if ac.Squawk != nil {
		r.Squawk = strings.TrimSpace(*ac.Squawk)
	}
	if ac.Description != nil {
		r.Model = strings.TrimSpace(*ac.Description)
	} else if ac.TypeCode != nil {
		r.Model = strings.TrimSpace(*ac.TypeCode)
	}
	if ac.Operator != nil {
		r.Operator = strings.TrimSpace(*ac.Operator)
	}
	if ac.Category != nil {
		r.AircraftType = aircraftTypeFromCategory(*ac.Category)
	}

	alt, ground := parseAltitude(ac.AltGeom)
	if alt == nil {
		alt, ground = parseAltitude(ac.AltBaro)
	}
	if ground {
		r.OnGround = Bool(true)
	}

	if ac.Gs != nil {
		r.GroundSpeed = Float64(*ac.Gs * coordinates.KnotsToMetersPerSecond)
	}
	if ac.Track != nil {
		r.Track = Int(int(math.Round(coordinates.NormalizeAzimuth(*ac.Track))) % 360)
	}
	if vr := ac.BaroRate; vr != nil {
		r.VerticalSpeed = Float64(*vr * coordinates.FeetPerMinuteToMetersPerSecond)
	} else if vr := ac.GeomRate; vr != nil {
		r.VerticalSpeed = Float64(*vr * coordinates.FeetPerMinuteToMetersPerSecond)
	}

	if ac.Lat != nil && ac.Lon != nil && alt != nil {
		r.Latitude = Float64(*ac.Lat)
		r.Longitude = Float64(*ac.Lon)
		r.Altitude = Float64(*alt * coordinates.FeetToMeters)

		seen := ac.SeenPos
		if seen == nil {
			seen = ac.Seen
		}
		ts := now
		if seen != nil {
			ts = now.Add(-time.Duration(*seen * float64(time.Second)))
		}
		r.Timestamp = Int64(ts.Unix())
	}

	return r
}

// parseAltitude extracts feet from a value that is either a number or the
// string "ground". The second result reports the "ground" marker.
func parseAltitude(val interface{}) (*float64, bool) {
	switch v := val.(type) {
	case float64:
		return &v, false
	case string:
		if v == "ground" {
			zero := 0.0
			return &zero, true
		}
	}
	return nil, false
}

// aircraftTypeFromCategory maps the ADS-B emitter category (A1..D7).
func aircraftTypeFromCategory(cat string) AircraftType {
	switch strings.ToUpper(cat) {
	case "A1", "A2":
		return AircraftTypePowered
	case "A3", "A4", "A5", "A6":
		return AircraftTypeJet
	case "A7":
		return AircraftTypeHelicopter
	case "B1":
		return AircraftTypeGlider
	case "B2":
		return AircraftTypeBalloon
	case "B3":
		return AircraftTypeParachute
	case "B4":
		return AircraftTypeHangGlider
	case "B6":
		return AircraftTypeUAV
	case "C1", "C2", "C3":
		return AircraftTypeStatic
	default:
		return AircraftTypeUnknown
	}
}

// RateLimitError represents an HTTP 429 rate limit error with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Headers    RateLimitHeaders
}

// RateLimitHeaders contains rate limit information from response headers.
type RateLimitHeaders struct {
	Limit     int       // X-Rate-Limit-Limit, -1 if absent
	Remaining int       // X-Rate-Limit-Remaining, -1 if absent
	Reset     time.Time // X-Rate-Limit-Reset
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is (or wraps) a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter extracts the Retry-After header value.
// Supports both delay-seconds and HTTP-date formats:
//
//	Retry-After: 30                            -> 30 seconds
//	Retry-After: Wed, 21 Oct 2015 07:28:00 GMT -> duration until that time
func parseRetryAfter(headers http.Header) time.Duration {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}
	return 0
}

// headerInt reads the first present header among names as an int.
func headerInt(headers http.Header, names ...string) (int64, bool) {
	for _, name := range names {
		if v := headers.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			return n, err == nil
		}
	}
	return 0, false
}

func extractRateLimitHeaders(headers http.Header) RateLimitHeaders {
	rlh := RateLimitHeaders{Limit: -1, Remaining: -1}
	if v, ok := headerInt(headers, "X-Rate-Limit-Limit", "X-RateLimit-Limit"); ok {
		rlh.Limit = int(v)
	}
	if v, ok := headerInt(headers, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"); ok {
		rlh.Remaining = int(v)
	}
	if v, ok := headerInt(headers, "X-Rate-Limit-Reset", "X-RateLimit-Reset"); ok {
		rlh.Reset = time.Unix(v, 0)
	}
	return rlh
}
