package policies

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

// Client is the policies API surface consumed by the engine. Lookups return
// (nil, nil) when the entity does not exist so callers can raise their own
// named not-found errors.
type Client interface {
	GetFundingTemplateContents(ctx context.Context, fundingStreamID, templateVersion string) (*types.TemplateMetadataContents, error)
	GetFundingConfiguration(ctx context.Context, fundingStreamID, fundingPeriodID string) (*types.FundingConfiguration, error)
	GetFundingPeriodByID(ctx context.Context, fundingPeriodID string) (*types.FundingPeriod, error)
}

type client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := strings.TrimRight(envutil.GetEnv("POLICIES_API_URL", "", log), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing POLICIES_API_URL")
	}
	return &client{
		log:     log.With("client", "PoliciesClient"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) GetFundingTemplateContents(ctx context.Context, fundingStreamID, templateVersion string) (*types.TemplateMetadataContents, error) {
	path := fmt.Sprintf("/api/templates/%s/%s/metadata",
		url.PathEscape(fundingStreamID), url.PathEscape(templateVersion))
	var contents types.TemplateMetadataContents
	found, err := c.getJSON(ctx, path, &contents)
	if err != nil || !found {
		return nil, err
	}
	return &contents, nil
}

func (c *client) GetFundingConfiguration(ctx context.Context, fundingStreamID, fundingPeriodID string) (*types.FundingConfiguration, error) {
	path := fmt.Sprintf("/api/configuration/%s/%s",
		url.PathEscape(fundingStreamID), url.PathEscape(fundingPeriodID))
	var config types.FundingConfiguration
	found, err := c.getJSON(ctx, path, &config)
	if err != nil || !found {
		return nil, err
	}
	return &config, nil
}

func (c *client) GetFundingPeriodByID(ctx context.Context, fundingPeriodID string) (*types.FundingPeriod, error) {
	path := fmt.Sprintf("/api/fundingperiods/%s", url.PathEscape(fundingPeriodID))
	var period types.FundingPeriod
	found, err := c.getJSON(ctx, path, &period)
	if err != nil || !found {
		return nil, err
	}
	return &period, nil
}

func (c *client) getJSON(ctx context.Context, path string, out interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("policies api returned %d for %s: %s", resp.StatusCode, path, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode policies response for %s: %w", path, err)
	}
	return true, nil
}
