package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// R2Simulator stands in for object storage when no R2 credentials are
// configured. Uploads succeed and return a deterministic URL, so the
// rest of the pipeline behaves identically in development.
type R2Simulator struct {
	bucket   string
	endpoint string
}

func NewR2Simulator(bucket, endpoint string) *R2Simulator {
	return &R2Simulator{
		bucket:   strings.TrimSpace(bucket),
		endpoint: strings.TrimSpace(endpoint),
	}
}

func (r *R2Simulator) UploadAvatar(userID, avatarHash string, imageData []byte) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("empty image data")
	}

	sum := sha256.Sum256([]byte(userID + ":" + avatarHash))
	key := hex.EncodeToString(sum[:])

	ep := r.endpoint
	if ep == "" {
		ep = "https://r2.example.invalid"
	}
	bucket := r.bucket
	if bucket == "" {
		bucket = "comet-radar"
	}

	return fmt.Sprintf("%s/%s/avatars/%s.png", strings.TrimRight(ep, "/"), bucket, key), nil
}
