// Package elevation queries an external elevation service for batches of
// coordinates.
package elevation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carbon-scribe/parcel-survey/parcel-survey-backend/pkg/geospatial"
)

// DefaultBatchLimit is the number of locations most public elevation APIs
// accept per request.
const DefaultBatchLimit = 100

// ErrQueryFailed covers transport errors, non-OK statuses and malformed
// responses.
var ErrQueryFailed = errors.New("elevation query failed")

// Sample is the elevation in meters at a location.
type Sample struct {
	Location  geospatial.Vertex `json:"location"`
	Elevation float64           `json:"elevation"`
}

// Provider resolves elevations for an ordered list of locations. The result
// is parallel to the input.
type Provider interface {
	Lookup(ctx context.Context, points []geospatial.Vertex) ([]Sample, error)
	// BatchLimit is the maximum number of points per Lookup call.
	BatchLimit() int
}

// HTTPClient talks to an Open Topo Data / Google Elevation style endpoint:
// GET <base>?locations=lat,lng|lat,lng answering
// {"status":"OK","results":[{"elevation":..,"location":{"lat":..,"lng":..}}]}.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	batchLimit int
	client     *http.Client
}

// NewHTTPClient creates a client. A non-positive batchLimit selects
// DefaultBatchLimit.
func NewHTTPClient(baseURL, apiKey string, batchLimit int, timeout time.Duration) *HTTPClient {
	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "?"),
		apiKey:     apiKey,
		batchLimit: batchLimit,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) BatchLimit() int {
	return c.batchLimit
}

type lookupResponse struct {
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	// Results are parallel to the requested locations.
	Results []struct {
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// Lookup fetches one batch. Any failure fails the whole batch.
func (c *HTTPClient) Lookup(ctx context.Context, points []geospatial.Vertex) ([]Sample, error) {
	if len(points) == 0 {
		return []Sample{}, nil
	}
	if len(points) > c.batchLimit {
		return nil, fmt.Errorf("%w: batch of %d exceeds limit %d", ErrQueryFailed, len(points), c.batchLimit)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(points), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: unexpected response (HTTP %d): %v", ErrQueryFailed, resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || body.Status != "OK" {
		msg := body.ErrorMessage
		if msg == "" {
			msg = body.Error
		}
		return nil, fmt.Errorf("%w: status %q (HTTP %d) %s", ErrQueryFailed, body.Status, resp.StatusCode, msg)
	}

	if len(body.Results) != len(points) {
		return nil, fmt.Errorf("%w: asked for %d locations, got %d", ErrQueryFailed, len(points), len(body.Results))
	}

	samples := make([]Sample, len(points))
	for i, r := range body.Results {
		if r.Elevation == nil {
			return nil, fmt.Errorf("%w: no elevation for location %d", ErrQueryFailed, i)
		}
		samples[i] = Sample{
			Location:  points[i],
			Elevation: *r.Elevation,
		}
	}

	return samples, nil
}

func (c *HTTPClient) requestURL(points []geospatial.Vertex) string {
	locs := make([]string, len(points))
	for i, p := range points {
		locs[i] = strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
	}

	q := url.Values{}
	q.Set("locations", strings.Join(locs, "|"))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + q.Encode()
}
