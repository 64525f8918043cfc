package jobsapi

import (
	"bytes"
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

// Client is the jobs API surface: job creation, lookup and job-log append.
// CreateJobs returns the jobs the API actually created, which may be fewer
// than requested; callers own the shortfall accounting.
type Client interface {
	CreateJob(ctx context.Context, job *types.JobCreateModel) (*types.Job, error)
	CreateJobs(ctx context.Context, jobs []*types.JobCreateModel) ([]*types.Job, error)
	GetJobByID(ctx context.Context, jobID string) (*types.Job, error)
	GetLatestJobsForSpecification(ctx context.Context, specificationID string, jobDefinitionIDs []string) ([]*types.Job, error)
	AddJobLog(ctx context.Context, jobID string, update *types.JobLogUpdateModel) (*types.JobLog, error)
}

type client struct {
	log     *logger.Logger
	baseURL string
	http    *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	baseURL := strings.TrimRight(envutil.GetEnv("JOBS_API_URL", "", log), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("missing JOBS_API_URL")
	}
	return &client{
		log:     log.With("client", "JobsClient"),
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) CreateJob(ctx context.Context, job *types.JobCreateModel) (*types.Job, error) {
	created, err := c.CreateJobs(ctx, []*types.JobCreateModel{job})
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("jobs api created no job")
	}
	return created[0], nil
}

func (c *client) CreateJobs(ctx context.Context, jobs []*types.JobCreateModel) ([]*types.Job, error) {
	if len(jobs) == 0 {
		return nil, nil
	}
	var out []*types.Job
	if err := c.postJSON(ctx, "/api/jobs", jobs, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) GetJobByID(ctx context.Context, jobID string) (*types.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/jobs/"+url.PathEscape(jobID), nil)
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
		return nil, fmt.Errorf("jobs api returned %d fetching job '%s'", resp.StatusCode, jobID)
	}
	var job types.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetLatestJobsForSpecification returns the most recent job per requested
// definition for the specification. Definitions with no job yet are simply
// absent from the result.
func (c *client) GetLatestJobsForSpecification(ctx context.Context, specificationID string, jobDefinitionIDs []string) ([]*types.Job, error) {
	query := url.Values{}
	query.Set("jobTypes", strings.Join(jobDefinitionIDs, ","))
	endpoint := fmt.Sprintf("%s/api/jobs/latest-by-specification/%s?%s",
		c.baseURL, url.PathEscape(specificationID), query.Encode())
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
		return nil, fmt.Errorf("jobs api returned %d fetching latest jobs for specification '%s'", resp.StatusCode, specificationID)
	}
	var jobs []*types.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *client) AddJobLog(ctx context.Context, jobID string, update *types.JobLogUpdateModel) (*types.JobLog, error) {
	var jobLog types.JobLog
	path := fmt.Sprintf("/api/jobs/%s/logs", url.PathEscape(jobID))
	if err := c.postJSON(ctx, path, update, &jobLog); err != nil {
		return nil, err
	}
	return &jobLog, nil
}

func (c *client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("jobs api returned %d for %s: %s", resp.StatusCode, path, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
