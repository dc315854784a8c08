package links

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"formsai/internal/logger"
)

var ErrNoSpreadsheet = errors.New("no spreadsheet found")

// Spreadsheet extensions in lookup order.
var spreadsheetExts = []string{".xlsx", ".xlsm", ".csv"}

// SpreadsheetSource reads the first spreadsheet in Dir. Column 0 holds the
// form name and column 1 the URL; the first row is a header.
type SpreadsheetSource struct {
	Dir string
	log *logger.Logger
}

func NewSpreadsheetSource(dir string, log *logger.Logger) *SpreadsheetSource {
	return &SpreadsheetSource{Dir: dir, log: log}
}

func (s *SpreadsheetSource) Links(ctx context.Context) ([]FormLink, error) {
	path, err := FindSpreadsheet(s.Dir)
	if err != nil {
		return nil, err
	}
	rows, err := readRows(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out := RowsToLinks(rows)
	if s.log != nil {
		s.log.LogInfof("Read %d form link(s) from %s", len(out), filepath.Base(path))
	}
	return out, nil
}

// FindSpreadsheet returns the first spreadsheet in dir, by extension then name.
func FindSpreadsheet(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w in %s: %v", ErrNoSpreadsheet, dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), "~$") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, ext := range spreadsheetExts {
		for _, name := range names {
			if strings.EqualFold(filepath.Ext(name), ext) {
				return filepath.Join(dir, name), nil
			}
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoSpreadsheet, dir)
}

// RowsToLinks skips the header row and any row whose URL is missing or not HTTP.
func RowsToLinks(rows [][]string) []FormLink {
	out := []FormLink{}
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		u := strings.TrimSpace(row[1])
		if !IsHTTP(u) {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			name = fmt.Sprintf("Form %d", i)
		}
		out = append(out, FormLink{Name: name, URL: u})
	}
	return out
}

func readRows(path string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSV(path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}
