package recognition

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Paths on the recognition service.
const (
	codesPath = "/v1/codes"
	tagsPath  = "/v1/tags"
)

// ClientConfig configures a VisionClient.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

type codesResponse struct {
	Codes []ScannableCode `json:"codes"`
}

type tagsResponse struct {
	Tags []Tag `json:"tags"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// VisionClient is a Recognizer backed by the recognition HTTP service.
// Images are posted as application/octet-stream.
type VisionClient struct {
	http *resty.Client
}

// NewVisionClient creates a client for the service at cfg.BaseURL.
func NewVisionClient(cfg ClientConfig) *VisionClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &VisionClient{http: client}
}

// DecodeScannableCodes asks the service for barcodes and QR codes.
func (c *VisionClient) DecodeScannableCodes(ctx context.Context, image []byte) ([]ScannableCode, error) {
	var out codesResponse
	if err := c.post(ctx, codesPath, image, &out); err != nil {
		return nil, err
	}
	if out.Codes == nil {
		return []ScannableCode{}, nil
	}
	return out.Codes, nil
}

// ExtractTags asks the service for object tags, sorted by descending
// confidence.
func (c *VisionClient) ExtractTags(ctx context.Context, image []byte) ([]Tag, error) {
	var out tagsResponse
	if err := c.post(ctx, tagsPath, image, &out); err != nil {
		return nil, err
	}
	if out.Tags == nil {
		return []Tag{}, nil
	}
	SortTags(out.Tags)
	return out.Tags, nil
}

func (c *VisionClient) post(ctx context.Context, path string, image []byte, result any) error {
	var failure errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(image).
		SetResult(result).
		SetError(&failure).
		Post(path)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrRecognitionFailed, path, err)
	}
	if resp.IsError() {
		if failure.Error != "" {
			return fmt.Errorf("%w: POST %s: status %d: %s", ErrRecognitionFailed, path, resp.StatusCode(), failure.Error)
		}
		return fmt.Errorf("%w: POST %s: status %d", ErrRecognitionFailed, path, resp.StatusCode())
	}
	return nil
}
