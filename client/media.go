package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ClipPreviewPath returns the path serving a completed clip inline
func ClipPreviewPath(clipID string) string {
	return "/api/preview-clip/" + url.PathEscape(clipID)
}

// ClipDownloadPath returns the path serving a completed clip as an attachment
func ClipDownloadPath(clipID string) string {
	return "/api/download-clip/" + url.PathEscape(clipID)
}

// JobPreviewPath returns the path serving a finished video inline
func JobPreviewPath(jobID string) string {
	return "/api/preview/" + url.PathEscape(jobID)
}

// JobDownloadPath returns the path serving a finished video as an attachment
func JobDownloadPath(jobID string) string {
	return "/api/download/" + url.PathEscape(jobID)
}

// DownloadClip streams a completed clip into w and returns the bytes written
func (c *Client) DownloadClip(ctx context.Context, clipID string, w io.Writer) (int64, error) {
	return c.download(ctx, ClipDownloadPath(clipID), w)
}

// DownloadJob streams a finished video into w and returns the bytes written
func (c *Client) DownloadJob(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	return c.download(ctx, JobDownloadPath(jobID), w)
}

func (c *Client) download(ctx context.Context, path string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeAPIError(resp, MsgDownloadFailed)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read video: %w", err)
	}
	return n, nil
}
