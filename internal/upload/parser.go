package upload

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kiranshivaraju/linkmetrics/pkg/models"
)

// DefaultMaxBytes is the upload size ceiling used when none is configured.
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// Source is an uploaded file as received from the client.
type Source struct {
	Name        string
	ContentType string
	// Size is the declared size in bytes; zero or negative when unknown.
	Size int64
	Body io.Reader
}

// rawRow is one data row as extracted by a format reader, before validation.
type rawRow struct {
	Platform string
	URL      string
}

// rowReader extracts raw rows from a whole file.
type rowReader func(data []byte) ([]rawRow, error)

// Parser turns uploaded files into validated row reports.
type Parser struct {
	MaxBytes int64
}

// NewParser returns a Parser with the given size ceiling.
func NewParser(maxBytes int64) *Parser {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Parser{MaxBytes: maxBytes}
}

// Parse reads, validates and summarizes every row of src. Per-row problems
// are reported on the rows; only structural failures return an error.
func (p *Parser) Parse(src Source) (*models.UploadReport, error) {
	if src.Body == nil {
		return nil, ErrNoFile
	}

	if src.Size > p.limit() {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, src.Size, p.limit())
	}

	read, err := selectReader(src.Name, src.ContentType)
	if err != nil {
		return nil, err
	}

	data, err := p.readAll(src.Body)
	if err != nil {
		return nil, err
	}

	raw, err := read(data)
	if err != nil {
		return nil, err
	}

	report := &models.UploadReport{Rows: make([]models.ParsedRow, 0, len(raw))}
	for i, r := range raw {
		platform, url, errs := ValidateRow(cell(r.Platform), cell(r.URL))
		report.Rows = append(report.Rows, models.ParsedRow{
			RowIndex:      i + 1,
			Platform:      platform,
			URL:           url,
			ErrorMessages: errs,
		})
		if len(errs) == 0 {
			report.ValidRows++
		}
	}
	report.TotalRows = len(report.Rows)
	report.InvalidRows = report.TotalRows - report.ValidRows
	return report, nil
}

func (p *Parser) limit() int64 {
	if p.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return p.MaxBytes
}

func (p *Parser) readAll(body io.Reader) ([]byte, error) {
	limit := p.limit()
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w: limit %d", ErrFileTooLarge, limit)
	}
	return buf.Bytes(), nil
}

// selectReader picks a format by extension, falling back to the content type.
func selectReader(name, contentType string) (rowReader, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".csv":
		return readCSV, nil
	case ".xlsx":
		return readXLSX, nil
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "":
	case strings.Contains(ct, "csv") || ct == "text/plain":
		return readCSV, nil
	case strings.Contains(ct, "excel") || strings.Contains(ct, "spreadsheet"):
		return readXLSX, nil
	}
	return nil, fmt.Errorf("%w: filename=%q content_type=%q", ErrUnsupportedFileType, name, contentType)
}

// cell trims a raw value and maps blank cells to nil.
func cell(v string) *string {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	return &s
}

// headerIndex maps the required logical columns to their positions,
// matching header names case-insensitively.
func headerIndex(headers []string) (platform, url int, err error) {
	platform, url = -1, -1
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "platform":
			platform = i
		case "url":
			url = i
		}
	}
	if platform < 0 || url < 0 {
		return 0, 0, ErrMissingColumns
	}
	return platform, url, nil
}

// at returns record[i], or "" when the row is shorter than the header.
func at(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
