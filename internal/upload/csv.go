package upload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxUploadSize = 20 << 20 // 20 MB

// csvRow is one data row keyed by normalized (lowercased, trimmed) column
// name. num is the 1-based data row number, matching what a coach sees in
// a spreadsheet below the header.
type csvRow struct {
	num    int
	values map[string]string
}

// get returns the first non-empty value among the given columns.
func (row csvRow) get(columns ...string) (string, bool) {
	for _, column := range columns {
		if value, ok := row.values[column]; ok && value != "" {
			return value, true
		}
	}
	return "", false
}

func (row csvRow) getOr(column, fallback string) string {
	if value, ok := row.get(column); ok {
		return value
	}
	return fallback
}

func (row csvRow) floatPtr(column string) *float64 {
	raw, ok := row.get(column)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &value
}

func (row csvRow) intPtr(column string) *int {
	raw, ok := row.get(column)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		// vendor exports sometimes serialize whole numbers as floats
		floatValue, floatErr := strconv.ParseFloat(raw, 64)
		if floatErr != nil {
			return nil
		}
		intValue := int(floatValue)
		return &intValue
	}
	return &value
}

// csvRowsFromRequest reads the CSV payload, either a multipart form upload
// under the "file" field or a raw CSV request body.
func csvRowsFromRequest(r *http.Request) ([]csvRow, error) {
	var reader io.Reader

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, fileHeader, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("error, file missing from request")
		}
		defer file.Close()

		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
			return nil, errors.New("error, file must be in CSV format")
		}
		reader = file
	} else {
		reader = r.Body
	}

	csvReader := csv.NewReader(io.LimitReader(reader, maxUploadSize))
	csvReader.TrimLeadingSpace = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error, malformed CSV: %s", err)
	}
	if len(records) < 2 {
		return nil, errors.New("error, CSV has no data rows")
	}

	header := make([]string, len(records[0]))
	for i, column := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(column))
	}

	rows := make([]csvRow, 0, len(records)-1)
	for i, record := range records[1:] {
		row := csvRow{
			num:    i + 1,
			values: make(map[string]string, len(header)),
		}
		for j, value := range record {
			if j >= len(header) {
				break
			}
			row.values[header[j]] = strings.TrimSpace(value)
		}
		rows = append(rows, row)
	}

	return rows, nil
}
