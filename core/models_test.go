package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataRoundTrip(t *testing.T) {
	t.Run("frame", func(t *testing.T) {
		meta := Metadata{Role: RoleFrame, Frame: &FrameMeta{
			FrameID:       "f7",
			Timestamp:     12.5,
			Description:   "a red car",
			Path:          "data/v1_frame_007.jpg",
			VideoID:       "v1",
			VideoFilename: "crash.mp4",
		}}
		got := MetadataFromMap(meta.Flatten())
		require.Equal(t, RoleFrame, got.Role)
		assert.Equal(t, meta.Frame, got.Frame)
	})

	t.Run("summary", func(t *testing.T) {
		meta := Metadata{Role: RoleSummary, Summary: &SummaryMeta{Text: "a short film"}}
		flat := meta.Flatten()
		assert.Equal(t, true, flat["summary"])
		assert.NotContains(t, flat, "timestamp")

		got := MetadataFromMap(flat)
		require.Equal(t, RoleSummary, got.Role)
		assert.Equal(t, "a short film", got.Summary.Text)
	})

	t.Run("manifest", func(t *testing.T) {
		meta := Metadata{Role: RoleManifest, Manifest: &ManifestMeta{
			Count:          12,
			FirstTimestamp: 0.25,
			LastTimestamp:  30,
			VideoID:        "v1",
		}}
		flat := meta.Flatten()
		assert.Equal(t, true, flat["manifest"])
		assert.NotContains(t, flat, "timestamp")

		got := MetadataFromMap(flat)
		require.Equal(t, RoleManifest, got.Role)
		assert.Equal(t, meta.Manifest, got.Manifest)
	})
}

func TestMetadataTimestamp(t *testing.T) {
	frame := Metadata{Role: RoleFrame, Frame: &FrameMeta{Timestamp: 3.5}}
	ts, ok := frame.Timestamp()
	assert.True(t, ok)
	assert.Equal(t, 3.5, ts)

	// Summary and manifest records carry no timestamp; the overview
	// pipeline filters on this.
	_, ok = Metadata{Role: RoleSummary, Summary: &SummaryMeta{}}.Timestamp()
	assert.False(t, ok)
	_, ok = Metadata{Role: RoleManifest, Manifest: &ManifestMeta{}}.Timestamp()
	assert.False(t, ok)
	_, ok = Metadata{}.Timestamp()
	assert.False(t, ok)
}

func TestMetadataFromMapEdgeCases(t *testing.T) {
	t.Run("numeric timestamp variants", func(t *testing.T) {
		got := MetadataFromMap(map[string]interface{}{"timestamp": int64(4), "frame_id": "f1"})
		require.NotNil(t, got.Frame)
		assert.Equal(t, 4.0, got.Frame.Timestamp)
	})

	t.Run("record without timestamp stays opaque", func(t *testing.T) {
		got := MetadataFromMap(map[string]interface{}{"description": "stray"})
		assert.Nil(t, got.Frame)
		_, ok := got.Timestamp()
		assert.False(t, ok)
	})

	t.Run("marker wins over frame fields", func(t *testing.T) {
		got := MetadataFromMap(map[string]interface{}{"summary": true, "text": "s", "timestamp": 2.0})
		assert.Equal(t, RoleSummary, got.Role)
	})
}

func TestMetadataJSONIsFlat(t *testing.T) {
	meta := Metadata{Role: RoleFrame, Frame: &FrameMeta{FrameID: "f1", Timestamp: 1.5, Description: "d", Path: "p", VideoID: "v"}}
	raw, err := json.Marshal(meta)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Equal(t, "f1", flat["frame_id"])
	assert.Equal(t, 1.5, flat["timestamp"])
	assert.NotContains(t, flat, "role")

	var back Metadata
	require.NoError(t, json.Unmarshal(raw, &back))
	require.NotNil(t, back.Frame)
	assert.Equal(t, "f1", back.Frame.FrameID)
}
