package embedding

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// prepareModel downloads modelID into modelDir if it is not already
// present locally, returning the on-disk model path.
func prepareModel(modelID, modelDir string) (string, error) {
	sanitized := strings.ReplaceAll(modelID, "/", "_")
	modelPath := filepath.Join(modelDir, sanitized)

	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat model path: %w", err)
	}

	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory: %w", err)
	}

	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = "onnx/model.onnx"
	downloadedPath, err := hugot.DownloadModel(modelID, modelDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", modelID, err)
	}

	return downloadedPath, nil
}
