package processors

import (
	"context"
	"mime"
	"os"
	"path/filepath"
)

// LocalImageLoader reads frame images from the local filesystem, where the
// extraction collaborator leaves them (paths like data/<video>_frame_001.jpg
// relative to the working directory).
type LocalImageLoader struct{}

func (LocalImageLoader) Load(_ context.Context, path string) ([]byte, string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, "", err
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}
