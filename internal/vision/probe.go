package vision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
)

// SubjectProbe downloads a thumbnail, measures the frame, and asks the
// classifier for faces. This is the only networked filter layer, so it
// runs last in the gate.
type SubjectProbe struct {
	classifier Classifier
	httpClient *http.Client
	logger     *slog.Logger
}

func NewSubjectProbe(classifier Classifier, logger *slog.Logger) *SubjectProbe {
	return &SubjectProbe{
		classifier: classifier,
		logger:     logger,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// LargestFaceRatio returns the fraction of frame area covered by the
// largest detected face, 0 when no face is found.
func (p *SubjectProbe) LargestFaceRatio(ctx context.Context, thumbnailURL string) (float64, error) {
	if thumbnailURL == "" {
		return 0, fmt.Errorf("empty thumbnail url")
	}

	img, err := p.download(ctx, thumbnailURL)
	if err != nil {
		return 0, err
	}

	decoded, err := imaging.Decode(bytes.NewReader(img))
	if err != nil {
		return 0, fmt.Errorf("decode thumbnail: %w", err)
	}
	bounds := decoded.Bounds()
	frameArea := bounds.Dx() * bounds.Dy()
	if frameArea <= 0 {
		return 0, fmt.Errorf("degenerate thumbnail dimensions %dx%d", bounds.Dx(), bounds.Dy())
	}

	faces, err := p.classifier.DetectFaces(ctx, img)
	if err != nil {
		return 0, err
	}

	var best float64
	for _, f := range faces {
		ratio := float64(f.Width*f.Height) / float64(frameArea)
		if ratio > best {
			best = ratio
		}
	}
	return best, nil
}

func (p *SubjectProbe) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnail fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty thumbnail body")
	}
	return data, nil
}
