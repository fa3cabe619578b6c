package upload

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// readXLSX extracts (platform, url) pairs from the first worksheet. The
// header is the first row naming both columns, or row 1 when none does.
// Fully blank rows are skipped.
func readXLSX(data []byte) ([]rawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	headerAt := findHeaderRow(records)
	pi, ui, err := headerIndex(records[headerAt])
	if err != nil {
		return nil, err
	}

	var rows []rawRow
	for _, record := range records[headerAt+1:] {
		if blankRecord(record) {
			continue
		}
		rows = append(rows, rawRow{Platform: at(record, pi), URL: at(record, ui)})
	}
	return rows, nil
}

func findHeaderRow(records [][]string) int {
	for i, record := range records {
		if _, _, err := headerIndex(record); err == nil {
			return i
		}
	}
	return 0
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
