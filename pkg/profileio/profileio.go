// Package profileio loads and saves depth-profile arrays as plain CSV
// files. One file holds the profiles of one condition: one row per
// subject, one column per depth level, ordered from the white-matter
// boundary to the CSF boundary. The numeric analysis owns no richer file
// format than this.
package profileio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"corticaldepth/internal/models"
)

// LoadConditionCSV reads a single-condition profile matrix of the form
// [subject][depth].
func LoadConditionCSV(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty profile file", path)
	}
	rows := make([][]float64, len(records))
	for i, record := range records {
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %d: %w", path, i+1, j+1, err)
			}
			row[j] = v
		}
		rows[i] = row
	}
	if _, err := models.CheckMatrix("depth", rows, -1); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// LoadProfiles assembles a [subject][condition][depth] array from one CSV
// file per condition, named "<condition>.csv" inside dir. All files must
// agree on subject and depth-level counts.
func LoadProfiles(dir string, conditions []string) (models.DepthProfiles, error) {
	if len(conditions) == 0 {
		return nil, &models.ParamError{Name: "conditions", Reason: "need at least one condition"}
	}
	var profiles models.DepthProfiles
	for c, condition := range conditions {
		rows, err := LoadConditionCSV(filepath.Join(dir, condition+".csv"))
		if err != nil {
			return nil, err
		}
		if profiles == nil {
			profiles = make(models.DepthProfiles, len(rows))
			for s := range profiles {
				profiles[s] = make([][]float64, len(conditions))
			}
		}
		if len(rows) != len(profiles) {
			return nil, &models.ShapeError{Axis: "subject", Want: len(profiles), Got: len(rows)}
		}
		for s, row := range rows {
			if c > 0 && len(row) != len(profiles[s][0]) {
				return nil, &models.ShapeError{Axis: "depth", Want: len(profiles[s][0]), Got: len(row)}
			}
			profiles[s][c] = row
		}
	}
	return profiles, nil
}

// SaveMatrixCSV writes a numeric matrix as CSV, creating the parent
// directory if needed.
func SaveMatrixCSV(path string, rows [][]float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	record := make([]string, 0, 16)
	for _, row := range rows {
		record = record[:0]
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
