package profiling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calcfunding/publishing-backend/internal/platform/envutil"
	"github.com/calcfunding/publishing-backend/internal/platform/logger"
	"github.com/calcfunding/publishing-backend/internal/types"
)

// Client exposes the profiling API's pattern lookup.
type Client interface {
	GetProfilePatternsForFundingStreamAndFundingPeriod(ctx context.Context, fundingStreamID, fundingPeriodID string) ([]types.ProfilePattern, error)
}

type client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := strings.TrimRight(envutil.GetEnv("PROFILING_API_URL", "", log), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing PROFILING_API_URL")
	}
	return &client{
		log:     log.With("client", "ProfilingClient"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) GetProfilePatternsForFundingStreamAndFundingPeriod(ctx context.Context, fundingStreamID, fundingPeriodID string) ([]types.ProfilePattern, error) {
	endpoint := fmt.Sprintf("%s/api/profiling/patterns/fundingStream/%s/fundingPeriod/%s",
		c.baseURL, url.PathEscape(fundingStreamID), url.PathEscape(fundingPeriodID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
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
		return nil, fmt.Errorf("profiling api returned %d fetching patterns for stream '%s' period '%s'", resp.StatusCode, fundingStreamID, fundingPeriodID)
	}
	var patterns []types.ProfilePattern
	if err := json.NewDecoder(resp.Body).Decode(&patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}
