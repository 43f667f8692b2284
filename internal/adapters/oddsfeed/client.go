package oddsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/alejandrodnm/stakebot/internal/domain"
	"golang.org/x/time/rate"
)

const (
	opportunitiesPath = "/v1/opportunities"

	// Al 60% del límite del feed (10 req/s).
	defaultRatePerSec = 6

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client implementa ports.OpportunityProvider contra el feed HTTP de
// oportunidades, con rate limiting y retries.
type Client struct {
	http      *http.Client
	baseURL   string
	sports    []string
	limiter   *rate.Limiter
	retryWait time.Duration
}

// NewClient crea un Client para el feed en baseURL. Sin sports pide todas.
func NewClient(baseURL string, sports ...string) *Client {
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		baseURL:   baseURL,
		sports:    sports,
		limiter:   rate.NewLimiter(defaultRatePerSec, 3),
		retryWait: baseRetryWait,
	}
}

// opportunitiesResponse es el sobre del endpoint /v1/opportunities. Cada
// oportunidad se decodifica aparte: una mal formada no tumba el batch.
type opportunitiesResponse struct {
	Opportunities []json.RawMessage `json:"opportunities"`
	GeneratedAt   time.Time         `json:"generated_at"`
}

// FetchOpportunities descarga el batch del ciclo. Con varios sports hace una
// petición por sport y concatena; un sport que falla aborta el ciclo.
func (c *Client) FetchOpportunities(ctx context.Context) ([]domain.Opportunity, error) {
	sports := c.sports
	if len(sports) == 0 {
		sports = []string{""}
	}

	var out []domain.Opportunity
	seen := make(map[string]bool)
	for _, sport := range sports {
		var resp opportunitiesResponse
		if err := c.get(ctx, c.opportunitiesURL(sport), &resp); err != nil {
			return nil, fmt.Errorf("oddsfeed.FetchOpportunities: sport %q: %w", sport, err)
		}

		for i, raw := range resp.Opportunities {
			var opp domain.Opportunity
			if err := json.Unmarshal(raw, &opp); err != nil {
				slog.Warn("skipping malformed opportunity", "sport", sport, "index", i, "err", err)
				continue
			}
			if !usable(opp) || seen[opp.ID] {
				slog.Debug("skipping opportunity", "id", opp.ID, "odds", opp.Odds)
				continue
			}
			seen[opp.ID] = true
			out = append(out, opp)
		}
	}

	slog.Debug("opportunities fetched", "count", len(out), "sports", len(sports))
	return out, nil
}

func (c *Client) opportunitiesURL(sport string) string {
	u := c.baseURL + opportunitiesPath
	if sport != "" {
		u += "?sport=" + url.QueryEscape(sport)
	}
	return u
}

// usable descarta lo que ningún sizer podría apostar: sin id, o sin cuotas
// válidas ni lados de arbitraje.
func usable(opp domain.Opportunity) bool {
	if opp.ID == "" {
		return false
	}
	if opp.IsArbitrage() {
		return true
	}
	_, err := domain.AmericanToDecimal(opp.Odds)
	return err == nil
}

// get hace un GET con rate limiting y retries.
func (c *Client) get(ctx context.Context, url string, out any) error {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by feed", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.retryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
