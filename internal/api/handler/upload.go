package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/kiranshivaraju/linkmetrics/internal/api/response"
	"github.com/kiranshivaraju/linkmetrics/internal/upload"
	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

const (
	uploadField = "file"

	// multipartOverhead is the slack allowed on top of the file size limit for
	// the multipart framing and any other form fields.
	multipartOverhead int64 = 1 << 20
	maxMemory         int64 = 32 << 20
)

// Uploader defines the upload operations the handlers depend on.
type Uploader interface {
	Preview(src upload.Source) (*models.UploadReport, error)
	CreateFromUpload(ctx context.Context, src upload.Source) (*models.JobCreationSummary, error)
}

// NewUploadHandler returns an http.HandlerFunc for POST /jobs/upload.
func NewUploadHandler(svc Uploader, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, closeFile, err := readUpload(w, r, maxBytes)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer closeFile()

		summary, err := svc.CreateFromUpload(r.Context(), src)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, summary)
	}
}

// NewPreviewHandler returns an http.HandlerFunc for POST /jobs/upload/preview.
// It reports every row without creating a job.
func NewPreviewHandler(svc Uploader, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		src, closeFile, err := readUpload(w, r, maxBytes)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer closeFile()

		report, err := svc.Preview(src)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, report)
	}
}

// readUpload extracts the multipart file field. The request body is capped so
// an oversized upload fails before it is buffered.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (upload.Source, func(), error) {
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload.Source{}, nil, upload.ErrFileTooLarge
		}
		return upload.Source{}, nil, upload.ErrNoFile
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return upload.Source{}, nil, upload.ErrNoFile
	}

	return sourceFrom(file, header), func() { file.Close() }, nil
}

func sourceFrom(file multipart.File, header *multipart.FileHeader) upload.Source {
	return upload.Source{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
}
