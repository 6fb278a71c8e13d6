package client

import (
	"context"
	"net/http"
	"net/url"

	"clipstudio/types"
)

// ProcessText asks the service to split a script into clip prompts
func (c *Client) ProcessText(ctx context.Context, req types.ProcessTextRequest) (*types.ProcessTextResponse, error) {
	var result types.ProcessTextResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/api/process-text", req, &result, MsgProcessTextFailed); err != nil {
		return nil, err
	}
	return &result, nil
}

// Generate submits a list of clips as one stitched video job
func (c *Client) Generate(ctx context.Context, req types.GenerateJobRequest) (*types.GenerateJobResponse, error) {
	var result types.GenerateJobResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/api/generate", req, &result, MsgStartGenerationFailed); err != nil {
		return nil, err
	}
	if result.JobID == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: MsgStartGenerationFailed}
	}
	return &result, nil
}

// JobStatus fetches the current status of a video job
func (c *Client) JobStatus(ctx context.Context, jobID string) (*types.JobStatusResponse, error) {
	var result types.JobStatusResponse
	path := "/api/status/" + url.PathEscape(jobID)
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &result, MsgStatusFailed); err != nil {
		return nil, err
	}
	return &result, nil
}
