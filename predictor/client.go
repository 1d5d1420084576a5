// Package predictor is a thin HTTP client for the external pneumonia
// detection model. The model exposes a single multipart endpoint that
// takes a JPEG X-ray and answers with a JSON prediction document.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type Client struct {
	predictURL string
	httpClient *http.Client
}

// NewClient returns a client for the prediction service at predictURL.
func NewClient(predictURL string) *Client {
	return &Client{
		predictURL: predictURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Predict uploads the JPEG at imagePath to the model as a multipart form
// (field name "image") and returns the decoded JSON response. The model's
// response shape is passed through untouched; the server does not
// interpret the prediction fields.
func (c *Client) Predict(ctx context.Context, imagePath string) (map[string]interface{}, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", imagePath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy image into form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, &body)
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call prediction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("prediction service returned %d: %s", resp.StatusCode, string(b))
	}

	var prediction map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}
	return prediction, nil
}
