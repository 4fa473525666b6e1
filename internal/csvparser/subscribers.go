package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// ParseSubscriberEmails extracts addresses from a CSV with a header row
// containing an "Email" column (case-insensitive). Blank and malformed rows
// are skipped, duplicates within the file are dropped, and addresses are
// lowercased.
//
// maxRows limits how many data rows are read (excluding the header).
func ParseSubscriberEmails(r io.Reader, maxRows int) ([]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, errors.New("csv header row is empty")
	}

	emailIdx := -1
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), "email") {
			emailIdx = i
			break
		}
	}
	if emailIdx == -1 {
		return nil, errors.New("csv must contain an Email column")
	}

	if maxRows <= 0 {
		maxRows = 1000
	}

	seen := make(map[string]struct{})
	emails := make([]string, 0)

	for read := 0; read < maxRows; read++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if emailIdx >= len(record) {
			// skip malformed row
			continue
		}

		email := strings.ToLower(strings.TrimSpace(record[emailIdx]))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}

		seen[email] = struct{}{}
		emails = append(emails, email)
	}

	if len(emails) == 0 {
		return nil, errors.New("csv must contain at least one data row")
	}

	return emails, nil
}
