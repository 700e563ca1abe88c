package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"kamadata-bot/internal/models"
	"kamadata-bot/internal/validate"

	"github.com/xuri/excelize/v2"
)

const (
	idColumn   = "id"
	nameColumn = "nombre"
)

// ParseWorkers reads the worker directory from an .xlsx or .csv file with
// "ID" and "Nombre" columns in any order. Rows with a missing name or a
// non-positive ID are skipped; a repeated ID keeps its last name.
func ParseWorkers(fileName string, data []byte) ([]models.Worker, error) {
	var (
		table [][]string
		err   error
	)
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		table, err = readXLSX(data)
	case ".csv":
		table, err = readCSV(data)
	default:
		return nil, fmt.Errorf("%w: unsupported file %q", validate.ErrInvalidFormat, fileName)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", validate.ErrInvalidFormat, err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: empty file", validate.ErrInvalidFormat)
	}

	idIdx, nameIdx := -1, -1
	for i, h := range table[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case idColumn:
			idIdx = i
		case nameColumn:
			nameIdx = i
		}
	}
	if idIdx < 0 || nameIdx < 0 {
		return nil, fmt.Errorf("%w: columns ID and Nombre are required", validate.ErrInvalidFormat)
	}

	position := make(map[int64]int)
	var workers []models.Worker
	for _, row := range table[1:] {
		if idIdx >= len(row) || nameIdx >= len(row) {
			continue
		}
		id, ok := parseID(row[idIdx])
		name := strings.TrimSpace(row[nameIdx])
		if !ok || name == "" {
			continue
		}
		if i, dup := position[id]; dup {
			workers[i].Name = name
			continue
		}
		position[id] = len(workers)
		workers = append(workers, models.Worker{ID: id, Name: name})
	}
	if len(workers) == 0 {
		return nil, fmt.Errorf("%w: no rows with a valid ID and name", validate.ErrInvalidValue)
	}
	return workers, nil
}

// parseID accepts integers and integral decimals such as "12.0", which is
// how spreadsheets often export numeric cells.
func parseID(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n > 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
