package processors

import (
	"context"
	"fmt"

	"github.com/EyalShechtman/open-ai-video-understanding/core"
)

type IngestParams struct {
	Collection    string
	Namespace     string
	Frames        []core.Frame
	Summary       string
	VideoID       string
	VideoFilename string
	SkipEnsure    bool
}

type IngestResult struct {
	Upserted int
	Warnings []string
}

// Ingest embeds frame descriptions and writes frame, summary and manifest
// vectors into the namespace in one batch. Vector IDs are deterministic, so
// re-running the same ingestion overwrites instead of duplicating. A failed
// manifest vector degrades the result (warning) but never fails the call.
func (p *Pipelines) Ingest(ctx context.Context, params IngestParams) (IngestResult, error) {
	var res IngestResult
	if len(params.Frames) == 0 {
		return res, core.Validationf("frames", "must not be empty")
	}
	if err := p.ensureReady(ctx, params.Collection, params.SkipEnsure); err != nil {
		return res, err
	}

	texts := make([]string, 0, len(params.Frames))
	for _, f := range params.Frames {
		texts = append(texts, f.Description)
	}
	vectors, err := p.Embedder.Embed(ctx, texts)
	if err != nil {
		return res, err
	}

	records := make([]core.Record, 0, len(params.Frames)+2)
	for i, f := range params.Frames {
		records = append(records, core.Record{
			ID:     core.FrameVectorID(params.Namespace, f.FrameID),
			Values: vectors[i],
			Metadata: core.Metadata{Role: core.RoleFrame, Frame: &core.FrameMeta{
				FrameID:       f.FrameID,
				Timestamp:     f.Timestamp,
				Description:   f.Description,
				Path:          f.Path,
				VideoID:       params.VideoID,
				VideoFilename: params.VideoFilename,
			}},
		})
	}

	if params.Summary != "" {
		summaryVecs, err := p.Embedder.Embed(ctx, []string{params.Summary})
		if err != nil {
			return res, err
		}
		records = append(records, core.Record{
			ID:     core.SummaryVectorID(params.Namespace),
			Values: summaryVecs[0],
			Metadata: core.Metadata{Role: core.RoleSummary, Summary: &core.SummaryMeta{
				Text: params.Summary,
			}},
		})
	}

	if manifest, err := p.buildManifestRecord(ctx, params); err != nil {
		// Best effort: a namespace without a manifest is degraded, not
		// broken.
		warning := fmt.Sprintf("manifest vector skipped: %v", err)
		p.Logger.Warn("manifest vector skipped", "namespace", params.Namespace, "error", err)
		res.Warnings = append(res.Warnings, warning)
	} else {
		records = append(records, manifest)
	}

	if err := p.Store.Upsert(ctx, params.Collection, params.Namespace, records); err != nil {
		return res, err
	}
	res.Upserted = len(records)
	return res, nil
}

// buildManifestRecord summarizes the ingested batch under the deterministic
// manifest ID. The vector is a synthetic probe embedding so the record stays
// reachable through the overview pipeline's broad query.
func (p *Pipelines) buildManifestRecord(ctx context.Context, params IngestParams) (core.Record, error) {
	probeVecs, err := p.Embedder.Embed(ctx, []string{probePhrase})
	if err != nil {
		return core.Record{}, err
	}
	frames := params.Frames
	return core.Record{
		ID:     core.ManifestVectorID(params.Namespace),
		Values: probeVecs[0],
		Metadata: core.Metadata{Role: core.RoleManifest, Manifest: &core.ManifestMeta{
			Count:          len(frames),
			FirstTimestamp: frames[0].Timestamp,
			LastTimestamp:  frames[len(frames)-1].Timestamp,
			VideoID:        params.VideoID,
			VideoFilename:  params.VideoFilename,
		}},
	}, nil
}
