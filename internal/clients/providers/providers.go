package providers

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

// Client resolves the providers in scope for a specification from the
// providers API.
type Client interface {
	GetScopedProviderSummaries(ctx context.Context, specificationID string) ([]types.ProviderSummary, error)
}

type client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := strings.TrimRight(envutil.GetEnv("PROVIDERS_API_URL", "", log), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing PROVIDERS_API_URL")
	}
	return &client{
		log:     log.With("client", "ProvidersClient"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (c *client) GetScopedProviderSummaries(ctx context.Context, specificationID string) ([]types.ProviderSummary, error) {
	path := fmt.Sprintf("/api/providers/scoped/%s", url.PathEscape(specificationID))
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
		return nil, fmt.Errorf("providers api returned %d for %s: %s", resp.StatusCode, path, string(body))
	}
	var out []types.ProviderSummary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
