package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pscheid92/rankpulse/internal/domain"
)

const nameColumn = "Profile_Name"

// columnKey normalises a header so that "High School " and "High_School" name
// the same attribute.
func columnKey(header string) string {
	return strings.Join(strings.Fields(header), "_")
}

// parseAlumni reads a CSV export with a header row. Profile_Name becomes the
// entity name and every other non-empty cell an attribute. Rows without a
// name are skipped.
func parseAlumni(r io.Reader) ([]domain.NewEntity, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty CSV")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	keys := make([]string, len(header))
	nameIdx := -1
	for i, h := range header {
		keys[i] = columnKey(strings.TrimPrefix(h, "\ufeff"))
		if keys[i] == nameColumn {
			nameIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("missing %s column", nameColumn)
	}

	var out []domain.NewEntity
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if nameIdx >= len(record) {
			continue
		}

		name := strings.TrimSpace(record[nameIdx])
		if name == "" {
			continue
		}

		attrs := make(map[string]string)
		for i, cell := range record {
			if i == nameIdx || i >= len(keys) || keys[i] == "" {
				continue
			}
			if v := strings.TrimSpace(cell); v != "" {
				attrs[keys[i]] = v
			}
		}
		out = append(out, domain.NewEntity{Name: name, Attributes: attrs})
	}
}
