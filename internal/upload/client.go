package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/google/uuid"
)

// discipline mirrors storage.Discipline without importing the storage package
// (which would pull in pgx and other server-side dependencies).
type discipline struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status int    `json:"-"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	Msg    string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("status %d: %s (%s)", e.Status, e.Msg, e.Reason)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Msg)
}

// Retryable reports whether the request may succeed when sent again.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Submitted is the server's answer to a moveframe create.
type Submitted struct {
	Moveframe *models.Moveframe `json:"moveframe"`
	Replayed  bool              `json:"replayed"`
}

// Client sends plan entries to the trainplan server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	attempts   int
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the trainplan server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: serverURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		attempts: 3,
		backoff:  time.Second,
	}
}

// FetchDisciplines retrieves the enabled discipline names from the server.
func (c *Client) FetchDisciplines(ctx context.Context) (map[string]bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/v1/disciplines", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching disciplines: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var list []discipline
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding disciplines: %w", err)
	}
	catalog := make(map[string]bool, len(list))
	for _, d := range list {
		if d.Enabled {
			catalog[d.Name] = true
		}
	}
	return catalog, nil
}

// EnsureWorkout creates (or finds) the workout in a day's session slot and
// returns its id.
func (c *Client) EnsureWorkout(ctx context.Context, date string, session int) (uuid.UUID, error) {
	body, err := json.Marshal(map[string]int{"sessionIndex": session})
	if err != nil {
		return uuid.Nil, err
	}
	var w models.Workout
	if err := c.post(ctx, "/api/v1/days/"+date+"/workouts", "", body, &w); err != nil {
		return uuid.Nil, fmt.Errorf("ensuring workout %s/%d: %w", date, session, err)
	}
	return w.ID, nil
}

// SubmitMoveframe POSTs a moveframe with the given idempotency key.
// Retries up to 3 times with exponential backoff on transport and 5xx
// failures; the key makes a retried create replay instead of duplicating.
func (c *Client) SubmitMoveframe(ctx context.Context, workoutID uuid.UUID, key string, mf PlanMoveframe) (*Submitted, error) {
	body, err := json.Marshal(mf)
	if err != nil {
		return nil, fmt.Errorf("marshaling moveframe: %w", err)
	}
	var out Submitted
	if err := c.post(ctx, "/api/v1/workouts/"+workoutID.String()+"/moveframes", key, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path, key string, body []byte, out any) error {
	var lastErr error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		err := c.send(ctx, path, key, body, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return fmt.Errorf("after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) send(ctx context.Context, path, key string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Msg == "" {
		apiErr.Msg = string(bytes.TrimSpace(body))
	}
	return apiErr
}
