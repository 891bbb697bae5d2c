package httpapi

import (
	"fmt"
	"io"
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"github.com/NorthgateLabs/livechat_svc/internal/chat"
)

const (
	attachmentsFormFieldName = "attachments"
	maxAttachmentBytes       = 5 << 20
)

// collectAttachmentFiles reads the uploaded attachment files out of a
// multipart request. The count is checked before any file content is
// buffered, so oversubscribed requests fail without reading payloads.
func collectAttachmentFiles(context *gin.Context) ([]chat.AttachmentFile, error) {
	if context.ContentType() != "multipart/form-data" {
		return nil, nil
	}

	form, formErr := context.MultipartForm()
	if formErr != nil {
		return nil, protocolErrorf("unreadable multipart form")
	}

	fileHeaders := form.File[attachmentsFormFieldName]
	if len(fileHeaders) == 0 {
		return nil, nil
	}
	if len(fileHeaders) > chat.MaxAttachmentsPerMessage {
		return nil, fmt.Errorf("%w: at most %d attachments per message", chat.ErrValidation, chat.MaxAttachmentsPerMessage)
	}

	files := make([]chat.AttachmentFile, 0, len(fileHeaders))
	for _, fileHeader := range fileHeaders {
		content, readErr := readAttachmentContent(fileHeader)
		if readErr != nil {
			return nil, readErr
		}
		files = append(files, chat.AttachmentFile{Name: fileHeader.Filename, Content: content})
	}
	return files, nil
}

func readAttachmentContent(fileHeader *multipart.FileHeader) ([]byte, error) {
	if fileHeader.Size > maxAttachmentBytes {
		return nil, fmt.Errorf("%w: attachment %s is too large", chat.ErrValidation, fileHeader.Filename)
	}

	file, openErr := fileHeader.Open()
	if openErr != nil {
		return nil, protocolErrorf("unreadable attachment %s", fileHeader.Filename)
	}
	defer func() {
		_ = file.Close()
	}()

	content, readErr := io.ReadAll(io.LimitReader(file, maxAttachmentBytes+1))
	if readErr != nil {
		return nil, protocolErrorf("unreadable attachment %s", fileHeader.Filename)
	}
	if len(content) > maxAttachmentBytes {
		return nil, fmt.Errorf("%w: attachment %s is too large", chat.ErrValidation, fileHeader.Filename)
	}
	return content, nil
}
