package ingest

import (
	"strings"

	"github.com/cognicore/pricedex/pkg/pricedex/store"
)

// Header keyword sets, matched by case-insensitive substring
// containment. Source files come from both English and Indonesian
// exports, so each logical column recognizes both vocabularies.
var (
	codeKeywords        = []string{"code", "kode"}
	articleKeywords     = []string{"article", "artikel"}
	descriptionKeywords = []string{"desc", "deskripsi"}
	priceKeywords       = []string{"price", "harga"}
	departmentKeywords  = []string{"dept", "department", "bagian"}
)

// columnMap holds the resolved index of each logical column,
// or -1 when the header never named it.
type columnMap struct {
	code        int
	article     int
	description int
	price       int
	department  int
}

func mapHeader(header []string) columnMap {
	cols := columnMap{code: -1, article: -1, description: -1, price: -1, department: -1}

	for i, cell := range header {
		h := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case cols.code < 0 && containsAny(h, codeKeywords):
			cols.code = i
		case cols.article < 0 && containsAny(h, articleKeywords):
			cols.article = i
		case cols.description < 0 && containsAny(h, descriptionKeywords):
			cols.description = i
		case cols.price < 0 && containsAny(h, priceKeywords):
			cols.price = i
		case cols.department < 0 && containsAny(h, departmentKeywords):
			cols.department = i
		}
	}

	return cols
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// MapRecords parses raw CSV text and maps it to records using the
// first row as a header. Column order is irrelevant; unrecognized
// columns are ignored and unmapped fields default to "". Rows whose
// trimmed code is empty are dropped outright. Duplicate codes are
// preserved in row order; the store deduplicates on upsert.
func MapRecords(text string) []store.Record {
	rows := ParseCSV(text)
	if len(rows) < 2 {
		return nil
	}

	cols := mapHeader(rows[0])

	var records []store.Record
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		code := strings.TrimSpace(cell(row, cols.code))
		if code == "" {
			continue
		}
		records = append(records, store.Record{
			Code:        code,
			Article:     strings.TrimSpace(cell(row, cols.article)),
			Description: strings.TrimSpace(cell(row, cols.description)),
			Price:       strings.TrimSpace(cell(row, cols.price)),
			Department:  strings.TrimSpace(cell(row, cols.department)),
		})
	}
	return records
}

// cell reads a column by mapped index, tolerating short rows and
// unmapped columns.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
