package upload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperlens/internal/models"
)

const (
	// MaxFileSize is the largest paper accepted for analysis.
	MaxFileSize int64 = 20 * 1024 * 1024
	PDFMimeType       = "application/pdf"

	msgNotPDF   = "Please upload a PDF file."
	msgTooLarge = "File size exceeds 20MB limit."
)

// ValidationError rejects a file before it reaches any AI client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UserMessage is the text shown next to the upload control.
func (e *ValidationError) UserMessage() string { return e.Message }

// Validate checks the declared MIME type and size of a candidate upload.
func Validate(mimeType string, size int64) error {
	if normalizeType(mimeType) != PDFMimeType {
		return &ValidationError{Message: msgNotPDF}
	}
	if size > MaxFileSize {
		return &ValidationError{Message: msgTooLarge}
	}
	return nil
}

// Read validates a multipart upload and loads it into a PaperFile.
func Read(fh *multipart.FileHeader) (*models.PaperFile, error) {
	if fh == nil {
		return nil, &ValidationError{Message: msgNotPDF}
	}
	declared := fh.Header.Get("Content-Type")
	if err := Validate(declared, fh.Size); err != nil {
		return nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	// One byte past the limit is enough to notice a header that lied about size.
	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, &ValidationError{Message: msgTooLarge}
	}
	return NewPaperFile(filepath.Base(fh.Filename), PDFMimeType, data), nil
}

// NewPaperFile wraps already-validated bytes.
func NewPaperFile(name, mimeType string, data []byte) *models.PaperFile {
	sum := sha256.Sum256(data)
	return &models.PaperFile{
		Name:      name,
		MimeType:  mimeType,
		Size:      int64(len(data)),
		Hash:      hex.EncodeToString(sum[:]),
		PageCount: PageCount(data),
		Data:      data,
	}
}

// PageCount reports the number of pages in a PDF, or 0 when the document
// cannot be parsed. The analysis does not depend on it.
func PageCount(data []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return r.NumPage()
}

func normalizeType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}
