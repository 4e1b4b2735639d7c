package behavior

import (
	"encoding/csv"
	"fmt"
	"os"
	"sync"

	"github.com/oriys/rift/internal/domain"
)

// csvTable is a parsed CSV file indexed by one key column, cached for the
// process lifetime so repeated lookup behaviors against the same file
// don't re-read and re-parse it on every request.
type csvTable struct {
	header  []string
	byKey   map[string]map[string]string
}

var (
	csvCacheMu sync.Mutex
	csvCache   = map[string]*csvTable{}
)

func loadCSVTable(path, keyColumn string) (*csvTable, error) {
	csvCacheMu.Lock()
	defer csvCacheMu.Unlock()

	cacheKey := path + "\x00" + keyColumn
	if t, ok := csvCache[cacheKey]; ok {
		return t, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lookup: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("lookup: parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("lookup: %s is empty", path)
	}

	header := rows[0]
	keyIdx := -1
	for i, col := range header {
		if col == keyColumn {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("lookup: key column %q not found in %s", keyColumn, path)
	}

	t := &csvTable{header: header, byKey: map[string]map[string]string{}}
	for _, row := range rows[1:] {
		if keyIdx >= len(row) {
			continue
		}
		record := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		t.byKey[row[keyIdx]] = record
	}
	csvCache[cacheKey] = t
	return t, nil
}

// CSVLookup resolves a single LookupSpec against req/view's captured
// request data and CSV-backed key-column equality, writing the matched
// row as a flat header:value map into the flow-state-style "into" key on
// view.Headers (mountebank's lookup behavior writes into response
// sub-documents addressable via templating; this repo surfaces it as
// extra response headers prefixed with the into-name, the simplest
// reading that keeps the behavior observable without a templating layer).
func CSVLookup(spec domain.LookupSpec, req *domain.Request, view *ResponseView) error {
	table, err := loadCSVTable(spec.FromDataSource.CSV.Path, spec.FromDataSource.CSV.KeyColumn)
	if err != nil {
		return err
	}

	keyValue := lookupKeyValue(spec, req)
	record, ok := table.byKey[keyValue]
	if !ok {
		return nil
	}

	if view.Headers == nil {
		view.Headers = map[string]interface{}{}
	}
	for col, val := range record {
		view.Headers[spec.Into+"."+col] = val
	}
	return nil
}

func lookupKeyValue(spec domain.LookupSpec, req *domain.Request) string {
	switch spec.Key.From {
	case domain.FieldPath:
		return req.Path
	case domain.FieldMethod:
		return req.Method
	case domain.FieldBody:
		return req.Body
	case domain.FieldRequestFrom:
		return req.RequestFrom
	case domain.FieldIP:
		return req.IP
	default:
		if vals, ok := req.Headers[spec.Key.From]; ok && spec.Key.Index < len(vals) {
			return vals[spec.Key.Index]
		}
		if vals, ok := req.Query[spec.Key.From]; ok && spec.Key.Index < len(vals) {
			return vals[spec.Key.Index]
		}
		return ""
	}
}
