package core

import "encoding/json"

// Frame is the record handed over by the frame-extraction collaborator.
// Frames are immutable once ingested.
type Frame struct {
	FrameID     string  `json:"frame_id"`
	Timestamp   float64 `json:"timestamp"`
	Description string  `json:"description"`
	Path        string  `json:"path"`
}

// Record is a single vector record as stored in a collection namespace.
type Record struct {
	ID       string
	Values   []float32
	Metadata Metadata
}

// Match is a similarity hit returned by the store, score descending.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// OverviewFrame is one entry of a reconstructed frame manifest.
type OverviewFrame struct {
	FrameID     string  `json:"frame_id"`
	Timestamp   float64 `json:"timestamp"`
	Description string  `json:"description"`
	Path        string  `json:"path"`
}

// MetaRole discriminates the three record flavors sharing a namespace.
type MetaRole string

const (
	RoleFrame    MetaRole = "frame"
	RoleSummary  MetaRole = "summary"
	RoleManifest MetaRole = "manifest"
)

// Metadata is the tagged union behind a vector record. Exactly one of
// Frame/Summary/Manifest is set, matching Role. The store adapters and the
// JSON wire format both use the flat map shape; the union exists everywhere
// in between.
type Metadata struct {
	Role     MetaRole
	Frame    *FrameMeta
	Summary  *SummaryMeta
	Manifest *ManifestMeta
}

// MarshalJSON emits the flat map shape, matching what the store holds.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flatten())
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MetadataFromMap(raw)
	return nil
}

type FrameMeta struct {
	FrameID       string  `json:"frame_id"`
	Timestamp     float64 `json:"timestamp"`
	Description   string  `json:"description"`
	Path          string  `json:"path"`
	VideoID       string  `json:"video_id"`
	VideoFilename string  `json:"video_filename,omitempty"`
}

type SummaryMeta struct {
	Text string `json:"text"`
}

type ManifestMeta struct {
	Count          int     `json:"count"`
	FirstTimestamp float64 `json:"first_timestamp"`
	LastTimestamp  float64 `json:"last_timestamp"`
	VideoID        string  `json:"video_id"`
	VideoFilename  string  `json:"video_filename,omitempty"`
}

// Timestamp returns the frame timestamp and whether the record carries one.
// Summary and manifest records have no timestamp; the overview pipeline
// relies on that to tell frames apart from the side-channel records.
func (m Metadata) Timestamp() (float64, bool) {
	if m.Role == RoleFrame && m.Frame != nil {
		return m.Frame.Timestamp, true
	}
	return 0, false
}

// Flatten converts the union to the store's flat map shape.
func (m Metadata) Flatten() map[string]interface{} {
	out := map[string]interface{}{}
	switch m.Role {
	case RoleFrame:
		if m.Frame == nil {
			return out
		}
		out["frame_id"] = m.Frame.FrameID
		out["timestamp"] = m.Frame.Timestamp
		out["description"] = m.Frame.Description
		out["path"] = m.Frame.Path
		out["video_id"] = m.Frame.VideoID
		if m.Frame.VideoFilename != "" {
			out["video_filename"] = m.Frame.VideoFilename
		}
	case RoleSummary:
		if m.Summary == nil {
			return out
		}
		out["summary"] = true
		out["text"] = m.Summary.Text
	case RoleManifest:
		if m.Manifest == nil {
			return out
		}
		out["manifest"] = true
		out["count"] = m.Manifest.Count
		out["first_timestamp"] = m.Manifest.FirstTimestamp
		out["last_timestamp"] = m.Manifest.LastTimestamp
		out["video_id"] = m.Manifest.VideoID
		if m.Manifest.VideoFilename != "" {
			out["video_filename"] = m.Manifest.VideoFilename
		}
	}
	return out
}

// MetadataFromMap rebuilds the union from the store's flat map. Records
// carrying a summary/manifest marker win over stray frame fields; anything
// else is treated as a frame record.
func MetadataFromMap(raw map[string]interface{}) Metadata {
	if truthy(raw["summary"]) {
		return Metadata{Role: RoleSummary, Summary: &SummaryMeta{
			Text: asString(raw["text"]),
		}}
	}
	if truthy(raw["manifest"]) {
		return Metadata{Role: RoleManifest, Manifest: &ManifestMeta{
			Count:          int(asFloat(raw["count"])),
			FirstTimestamp: asFloat(raw["first_timestamp"]),
			LastTimestamp:  asFloat(raw["last_timestamp"]),
			VideoID:        asString(raw["video_id"]),
			VideoFilename:  asString(raw["video_filename"]),
		}}
	}
	if ts, ok := numeric(raw["timestamp"]); ok {
		return Metadata{Role: RoleFrame, Frame: &FrameMeta{
			FrameID:       asString(raw["frame_id"]),
			Timestamp:     ts,
			Description:   asString(raw["description"]),
			Path:          asString(raw["path"]),
			VideoID:       asString(raw["video_id"]),
			VideoFilename: asString(raw["video_filename"]),
		}}
	}
	// No role marker and no numeric timestamp: keep the record opaque so
	// the overview filter drops it.
	return Metadata{}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	case float64:
		return t != 0
	}
	return false
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	f, _ := numeric(v)
	return f
}

func numeric(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
