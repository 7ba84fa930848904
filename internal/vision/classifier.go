package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Box is one detected face in pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Classifier is the external face-presence service. The pipeline only
// consumes its verdict; detection itself is a black box.
type Classifier interface {
	DetectFaces(ctx context.Context, image []byte) ([]Box, error)
}

// HTTPClassifier posts the image to a detection endpoint and decodes
// the returned face boxes.
type HTTPClassifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClassifier(endpoint string, logger *slog.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint: endpoint,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (c *HTTPClassifier) DetectFaces(ctx context.Context, image []byte) ([]Box, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face classifier returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var result struct {
		Faces []Box `json:"faces"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("face classifier: decode: %w", err)
	}
	return result.Faces, nil
}
