package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadOptions locates the catalog table and its embedding matrix.
type LoadOptions struct {
	TablePath       string
	VectorsPath     string
	IDColumn        string
	NameColumn      string
	ReferenceColumn string
}

// Load reads the catalog table (.csv or .xlsx) and the row-aligned embedding matrix (.npy)
// and builds a Catalog.
func Load(opts LoadOptions) (*Catalog, error) {
	rows, err := readTable(opts.TablePath)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("catalog table %s is empty", opts.TablePath)
	}

	header := rows[0]
	nameCol := columnIndex(header, opts.NameColumn)
	if nameCol < 0 {
		return nil, fmt.Errorf("catalog table %s has no %q column", opts.TablePath, opts.NameColumn)
	}
	refCol := columnIndex(header, opts.ReferenceColumn)
	idCol := columnIndex(header, opts.IDColumn)

	vectors, err := ReadNPY(opts.VectorsPath)
	if err != nil {
		return nil, err
	}
	body := rows[1:]
	if len(vectors) != len(body) {
		return nil, fmt.Errorf("catalog has %d rows but %s has %d vectors", len(body), opts.VectorsPath, len(vectors))
	}

	items := make([]Item, len(body))
	for i, row := range body {
		id := int64(i)
		if idCol >= 0 {
			raw := strings.TrimSpace(cell(row, idCol))
			if raw != "" {
				id, err = strconv.ParseInt(raw, 10, 64)
				if err != nil {
					return nil, fmt.Errorf("row %d: invalid id %q: %w", i+2, raw, err)
				}
			}
		}
		items[i] = Item{
			ID:            id,
			DisplayName:   cell(row, nameCol),
			Embedding:     vectors[i],
			ReferenceText: cell(row, refCol),
		}
	}
	return New(items)
}

func readTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported catalog format: %s", filepath.Ext(path))
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("catalog workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func columnIndex(header []string, name string) int {
	if name == "" {
		return -1
	}
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
			return i
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
