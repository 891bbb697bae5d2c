// Package uploads implements the file-storage collaborator for message
// attachments.
package uploads

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/NorthgateLabs/livechat_svc/internal/storage"
)

const (
	uploadsPublicPathPrefix = "/uploads"
	uploadFileMode          = 0o644
	uploadDirectoryMode     = 0o755

	logEventUploadStored = "attachment_stored"
)

// LocalStore writes attachment payloads under a directory on disk and hands
// out links below the configured public base URL.
type LocalStore struct {
	directory     string
	publicBaseURL string
	logger        *zap.Logger
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(directory string, publicBaseURL string, logger *zap.Logger) (*LocalStore, error) {
	trimmedDirectory := strings.TrimSpace(directory)
	if trimmedDirectory == "" {
		return nil, fmt.Errorf("uploads: missing directory")
	}
	if mkdirErr := os.MkdirAll(trimmedDirectory, uploadDirectoryMode); mkdirErr != nil {
		return nil, fmt.Errorf("uploads: create directory: %w", mkdirErr)
	}
	return &LocalStore{
		directory:     trimmedDirectory,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        logger,
	}, nil
}

// Directory returns the directory the store writes into.
func (store *LocalStore) Directory() string {
	return store.directory
}

// Upload stores one attachment payload and returns its public link. The
// stored name is always freshly generated; the client-supplied name only
// contributes its extension.
func (store *LocalStore) Upload(_ context.Context, fileName string, content []byte) (string, error) {
	storedName := storage.NewID() + sanitizeExtension(fileName)
	storedPath := filepath.Join(store.directory, storedName)

	if writeErr := os.WriteFile(storedPath, content, uploadFileMode); writeErr != nil {
		return "", fmt.Errorf("uploads: write file: %w", writeErr)
	}

	link := store.publicBaseURL + path.Join(uploadsPublicPathPrefix, storedName)
	store.logger.Debug(logEventUploadStored,
		zap.String("file", storedName),
		zap.Int("bytes", len(content)))
	return link, nil
}

func sanitizeExtension(fileName string) string {
	extension := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	if extension == "" || len(extension) > 10 {
		return ""
	}
	for _, character := range extension[1:] {
		if (character < 'a' || character > 'z') && (character < '0' || character > '9') {
			return ""
		}
	}
	return extension
}
