package processors

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

const (
	analyzeDefaultTopK = 10
	analyzeMaxTopK     = 50
)

type AnalyzeParams struct {
	Collection string
	Namespace  string
	Question   string
	TopK       int
	SkipEnsure bool
}

type AnalyzeResult struct {
	Answer    string
	Citations []core.Match
	Warnings  []string
}

// Analyze retrieves the most relevant frames and asks the generative model
// for a grounded answer. Retrieval order is similarity-ranked, but the
// prompt and the returned citations are re-sorted by frame timestamp: the
// model needs a temporal narrative, not a relevance ranking. Frames whose
// image cannot be loaded fall back to text-only context.
func (p *Pipelines) Analyze(ctx context.Context, params AnalyzeParams) (AnalyzeResult, error) {
	var res AnalyzeResult
	matches, err := p.Search(ctx, SearchParams{
		Collection: params.Collection,
		Namespace:  params.Namespace,
		Question:   params.Question,
		TopK:       clampTopK(params.TopK, analyzeDefaultTopK, analyzeMaxTopK),
		SkipEnsure: params.SkipEnsure,
	})
	if err != nil {
		return res, err
	}

	sorted := make([]core.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return matchTimestamp(sorted[i]) < matchTimestamp(sorted[j])
	})

	parts := []ContentPart{{Text: analyzePrompt(params.Question)}}
	for i, m := range sorted {
		block, frame := frameBlock(i+1, m)
		if p.Images == nil || frame == nil || frame.Path == "" {
			parts = append(parts, ContentPart{Text: block})
			continue
		}
		data, mimeType, err := p.Images.Load(ctx, frame.Path)
		if err != nil {
			warning := fmt.Sprintf("image unavailable for frame %s (%s): %v", frame.FrameID, frame.Path, err)
			p.Logger.Warn("frame image unavailable, using text only",
				"frame", frame.FrameID, "path", frame.Path, "error", err)
			res.Warnings = append(res.Warnings, warning)
			parts = append(parts, ContentPart{Text: block})
			continue
		}
		label, description := frameLabelAndDescription(i+1, m, frame)
		parts = append(parts,
			ContentPart{Text: label},
			ContentPart{Image: &InlineImage{MIME: mimeType, Data: data}},
			ContentPart{Text: description},
		)
	}

	answer, err := p.Generator.Generate(ctx, parts)
	if err != nil {
		return res, err
	}
	res.Answer = answer
	res.Citations = sorted
	return res, nil
}

func matchTimestamp(m core.Match) float64 {
	ts, ok := m.Metadata.Timestamp()
	if !ok {
		return 0
	}
	return ts
}

func formatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

// frameBlock renders one match as a text block:
// "#i [t=<timestamp>s] id=<frameId> (<path>) <description>".
func frameBlock(ordinal int, m core.Match) (string, *core.FrameMeta) {
	frame := m.Metadata.Frame
	if frame == nil {
		return fmt.Sprintf("#%d [t=0s] id=%s () ", ordinal, m.ID), nil
	}
	block := fmt.Sprintf("#%d [t=%ss] id=%s (%s) %s",
		ordinal, formatTimestamp(frame.Timestamp), frame.FrameID, frame.Path, frame.Description)
	return block, frame
}

func frameLabelAndDescription(ordinal int, m core.Match, frame *core.FrameMeta) (string, string) {
	label := fmt.Sprintf("#%d [t=%ss] id=%s (%s)",
		ordinal, formatTimestamp(frame.Timestamp), frame.FrameID, frame.Path)
	return label, frame.Description
}

func analyzePrompt(question string) string {
	return fmt.Sprintf(`You are analyzing frames sampled from a single video. The frames below are ordered chronologically from earliest to latest. Reason about the sequence of events and possible cause and effect across frames, not just the content of each frame on its own.

Question: %s

When answering:
- Cite 2-3 specific frames by id and timestamp as evidence.
- If the frames do not contain enough evidence to answer, say so explicitly rather than guessing.`, question)
}
