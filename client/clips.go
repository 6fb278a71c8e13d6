package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"clipstudio/refimage"
	"clipstudio/types"
)

// ClipRequest describes one storyboard clip submission
type ClipRequest struct {
	Prompt    string
	Duration  int
	APIKey    string
	Reference *refimage.Image
}

// GenerateClip submits a clip for generation. A reference image switches the
// body to multipart form data with the image under reference_image.
func (c *Client) GenerateClip(ctx context.Context, req ClipRequest) (*types.GenerateClipResponse, error) {
	var result types.GenerateClipResponse

	if req.Reference == nil {
		payload := types.GenerateClipRequest{
			Prompt:   req.Prompt,
			Duration: req.Duration,
			APIKey:   req.APIKey,
		}
		if err := c.doJSONRequest(ctx, http.MethodPost, "/api/generate-clip", payload, &result, MsgStartGenerationFailed); err != nil {
			return nil, err
		}
	} else {
		body, contentType, err := clipForm(req)
		if err != nil {
			return nil, err
		}
		if err := c.do(ctx, http.MethodPost, "/api/generate-clip", body, contentType, &result, MsgStartGenerationFailed); err != nil {
			return nil, err
		}
	}

	if result.ClipID == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: MsgStartGenerationFailed}
	}
	return &result, nil
}

// ClipStatus fetches the current status of a submitted clip
func (c *Client) ClipStatus(ctx context.Context, clipID string) (*types.ClipStatusResponse, error) {
	var result types.ClipStatusResponse
	path := "/api/clip-status/" + url.PathEscape(clipID)
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &result, MsgStatusFailed); err != nil {
		return nil, err
	}
	return &result, nil
}

func clipForm(req ClipRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("prompt", req.Prompt); err != nil {
		return nil, "", fmt.Errorf("failed to write form: %w", err)
	}
	if err := w.WriteField("duration", strconv.Itoa(req.Duration)); err != nil {
		return nil, "", fmt.Errorf("failed to write form: %w", err)
	}
	if req.APIKey != "" {
		if err := w.WriteField("api_key", req.APIKey); err != nil {
			return nil, "", fmt.Errorf("failed to write form: %w", err)
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="reference_image"; filename=%q`, req.Reference.Name()))
	h.Set("Content-Type", req.Reference.MimeType())
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(req.Reference.Data()); err != nil {
		return nil, "", fmt.Errorf("failed to write image part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
