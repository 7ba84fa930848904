package filter

import (
	"context"
	"log/slog"
	"strings"

	"comet-radar/internal/models"
)

// Author is the identity text the cheap layers inspect.
type Author struct {
	Nickname  string
	Handle    string
	Signature string
}

// SubjectSource reports the largest detected face as a fraction of
// thumbnail frame area. Implemented by vision.SubjectProbe.
type SubjectSource interface {
	LargestFaceRatio(ctx context.Context, thumbnailURL string) (float64, error)
}

// Verdict is the gate decision plus which layer produced it.
type Verdict struct {
	OK     bool
	Layer  string
	Reason string
}

const (
	LayerPlatform = "platform"
	LayerPronoun  = "pronoun"
	LayerSubject  = "subject"
)

// platformKeywords flag cross-posting and repost/compilation accounts.
var platformKeywords = []string{
	"twitch", "youtube", "kick", "discord", "streaming", "streamer",
	"ttv", "yt", "patreon", "onlyfans", "twitter", "instagram",
	"fanpage", "fan page", "archive", "clips", "highlights", "moments",
	"daily", "compilation", "best of", "edits", "updates",
}

// handleKeywords are rejected only when they appear in the handle itself.
var handleKeywords = []string{
	"video", "videos", "clip", "rate", "rating", "best", "top",
}

// repostPronouns open captions narrating someone else's footage.
var repostPronouns = []string{"bro", "he", "she", "they"}

// Filter gates candidate creators with three fixed-order layers,
// cheapest first, short-circuiting on the first rejection. It also
// keeps the per-layer counters surfaced in the run report.
type Filter struct {
	probe        SubjectSource
	minFaceRatio float64
	logger       *slog.Logger
	stats        models.FilterStats
}

func New(probe SubjectSource, minFaceRatio float64, logger *slog.Logger) *Filter {
	return &Filter{
		probe:        probe,
		minFaceRatio: minFaceRatio,
		logger:       logger,
	}
}

// Check runs all layers. The subject layer is the only one doing network
// I/O, so candidates rejected by the text layers never cost a download.
func (f *Filter) Check(ctx context.Context, author Author, caption, thumbnailURL string) Verdict {
	f.stats.TotalProcessed++

	if v := f.platformCheck(author); !v.OK {
		f.stats.RejectedPlatform++
		return v
	}

	if v := f.pronounCheck(caption); !v.OK {
		f.stats.RejectedPronoun++
		return v
	}

	if v := f.subjectCheck(ctx, author, thumbnailURL); !v.OK {
		f.stats.RejectedFace++
		return v
	}

	f.stats.Passed++
	return Verdict{OK: true, Reason: "all layers passed"}
}

// Stats returns a copy of the running counters.
func (f *Filter) Stats() models.FilterStats {
	return f.stats
}

func (f *Filter) platformCheck(author Author) Verdict {
	combined := strings.ToLower(author.Nickname + " " + author.Handle + " " + author.Signature)
	for _, kw := range platformKeywords {
		if strings.Contains(combined, kw) {
			return Verdict{Layer: LayerPlatform, Reason: "multi-platform keyword '" + kw + "' found"}
		}
	}

	handle := strings.ToLower(author.Handle)
	for _, kw := range handleKeywords {
		if strings.Contains(handle, kw) {
			return Verdict{Layer: LayerPlatform, Reason: "repost handle keyword '" + kw + "' found"}
		}
	}

	return Verdict{OK: true}
}

func (f *Filter) pronounCheck(caption string) Verdict {
	caption = strings.ToLower(strings.TrimSpace(caption))
	if caption == "" {
		return Verdict{OK: true}
	}
	for _, pronoun := range repostPronouns {
		if strings.HasPrefix(caption, pronoun+" ") {
			return Verdict{Layer: LayerPronoun, Reason: "repost pattern: caption starts with '" + pronoun + "'"}
		}
	}
	return Verdict{OK: true}
}

// subjectCheck fails open: a down classifier or missing thumbnail must
// not empty the whole discovery run.
func (f *Filter) subjectCheck(ctx context.Context, author Author, thumbnailURL string) Verdict {
	if f.probe == nil {
		return Verdict{OK: true}
	}
	if thumbnailURL == "" {
		f.logger.Debug("subject_check_skipped", "handle", author.Handle, "reason", "no thumbnail")
		return Verdict{OK: true}
	}

	ratio, err := f.probe.LargestFaceRatio(ctx, thumbnailURL)
	if err != nil {
		f.logger.Warn("subject_check_unavailable", "handle", author.Handle, "error", err)
		return Verdict{OK: true}
	}

	if ratio < f.minFaceRatio {
		return Verdict{Layer: LayerSubject, Reason: "no face above minimum frame area"}
	}
	return Verdict{OK: true}
}
