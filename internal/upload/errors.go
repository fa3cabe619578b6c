package upload

import "errors"

var (
	ErrNoFile              = errors.New("no file uploaded")
	ErrFileTooLarge        = errors.New("file exceeds the upload size limit")
	ErrUnsupportedFileType = errors.New("unsupported file type, upload CSV or XLSX")
	ErrMissingColumns      = errors.New("file must contain 'platform' and 'url' columns (case-insensitive)")
	ErrUnreadableFile      = errors.New("file could not be read")
)
