package results

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calcfunding/publishing-backend/internal/platform/envutil"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// Client fetches per-provider calculation results from the results API.
type Client interface {
	GetProviderResultsForSpecification(ctx context.Context, specificationID string) ([]*types.ProviderResult, error)
}

type client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := strings.TrimRight(envutil.GetEnv("RESULTS_API_URL", "", log), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing RESULTS_API_URL")
	}
	return &client{
		log:     log.With("client", "ResultsClient"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (c *client) GetProviderResultsForSpecification(ctx context.Context, specificationID string) ([]*types.ProviderResult, error) {
	path := fmt.Sprintf("/api/results/specifications/%s", url.PathEscape(specificationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("results api returned %d for %s: %s", resp.StatusCode, path, string(body))
	}
	var out []*types.ProviderResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
