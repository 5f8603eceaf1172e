package processors

import (
	"context"
	"fmt"
	"sort"

	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

const (
	overviewDefaultTopK = 200
	overviewMaxTopK     = 1000
)

type OverviewParams struct {
	Collection string
	Namespace  string
	TopK       int
	SkipEnsure bool
}

type OverviewResult struct {
	Summary  string
	Frames   []core.OverviewFrame
	Warnings []string
}

// Overview reconstructs a video's frame manifest and summary. The store has
// no native list-all operation, so frames are recovered near-exhaustively
// with a broad probe query; records without a numeric timestamp (summary,
// manifest) are dropped. The summary fetch is best effort and never fails
// the call.
func (p *Pipelines) Overview(ctx context.Context, params OverviewParams) (OverviewResult, error) {
	var res OverviewResult
	if err := p.ensureReady(ctx, params.Collection, params.SkipEnsure); err != nil {
		return res, err
	}

	summaryID := core.SummaryVectorID(params.Namespace)
	if fetched, err := p.Store.Fetch(ctx, params.Collection, params.Namespace, []string{summaryID}); err != nil {
		warning := fmt.Sprintf("summary unavailable: %v", err)
		p.Logger.Warn("summary fetch failed", "namespace", params.Namespace, "error", err)
		res.Warnings = append(res.Warnings, warning)
	} else if rec, ok := fetched[summaryID]; ok && rec.Metadata.Summary != nil {
		res.Summary = rec.Metadata.Summary.Text
	}

	vectors, err := p.Embedder.Embed(ctx, []string{probePhrase})
	if err != nil {
		return res, err
	}
	topK := clampTopK(params.TopK, overviewDefaultTopK, overviewMaxTopK)
	matches, err := p.Store.Query(ctx, params.Collection, params.Namespace, vectors[0], topK)
	if err != nil {
		return res, err
	}

	seen := map[string]bool{}
	for _, m := range matches {
		if _, ok := m.Metadata.Timestamp(); !ok {
			continue
		}
		frame := m.Metadata.Frame
		key := fmt.Sprintf("%s|%s|%s", frame.FrameID, formatTimestamp(frame.Timestamp), frame.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Frames = append(res.Frames, core.OverviewFrame{
			FrameID:     frame.FrameID,
			Timestamp:   frame.Timestamp,
			Description: frame.Description,
			Path:        frame.Path,
		})
	}
	sort.SliceStable(res.Frames, func(i, j int) bool {
		return res.Frames[i].Timestamp < res.Frames[j].Timestamp
	})
	return res, nil
}
