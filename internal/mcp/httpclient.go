package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/trainplan/internal/storage"
)

// HTTPClient implements DataSource by calling the trainplan REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the plan lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("httpclient: %s: %w", path, storage.ErrNotFound)
	default:
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}
}

func (c *HTTPClient) GetDisciplines(ctx context.Context) ([]storage.Discipline, error) {
	body, err := c.get(ctx, "/api/v1/disciplines", nil)
	if err != nil {
		return nil, err
	}

	var disciplines []storage.Discipline
	if err := json.Unmarshal(body, &disciplines); err != nil {
		return nil, fmt.Errorf("httpclient: decode disciplines: %w", err)
	}
	return disciplines, nil
}

func (c *HTTPClient) GetDayPlan(ctx context.Context, _ int, date time.Time) (*storage.DayPlan, error) {
	body, err := c.get(ctx, "/api/v1/days/"+date.Format(time.DateOnly), nil)
	if err != nil {
		return nil, err
	}

	var plan storage.DayPlan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, fmt.Errorf("httpclient: decode day plan: %w", err)
	}
	return &plan, nil
}

// GetTrainingVolume sends end as the inclusive last day, matching the REST
// API's date range convention.
func (c *HTTPClient) GetTrainingVolume(ctx context.Context, _ int, start, end time.Time, bucket string) ([]storage.VolumePeriod, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.DateOnly))
	params.Set("end", end.AddDate(0, 0, -1).Format(time.DateOnly))
	params.Set("bucket", bucket)

	body, err := c.get(ctx, "/api/v1/volume", params)
	if err != nil {
		return nil, err
	}

	var periods []storage.VolumePeriod
	if err := json.Unmarshal(body, &periods); err != nil {
		return nil, fmt.Errorf("httpclient: decode training volume: %w", err)
	}
	return periods, nil
}

func (c *HTTPClient) GetPlanStats(ctx context.Context, _ int) (*storage.PlanStats, error) {
	body, err := c.get(ctx, "/api/v1/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats storage.PlanStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("httpclient: decode plan stats: %w", err)
	}
	return &stats, nil
}
