package ingest

import "strings"

// ParseCSV splits raw comma-separated text into rows of fields.
//
// The scanner is deliberately permissive: source exports arrive with
// mixed line endings, ragged rows, and occasionally unterminated
// quotes, none of which should abort an import. encoding/csv rejects
// all three, so the scan is done by hand.
//
// RFC 4180 quoting applies: a quote toggles quote mode, a doubled
// quote inside quotes decodes to a literal quote, and separators or
// line breaks inside quotes are ordinary characters. An unterminated
// quote at end of input simply flushes whatever accumulated. Fields
// are never trimmed here; trimming is the mapper's job.
func ParseCSV(text string) [][]string {
	var (
		rows     [][]string
		fields   []string
		buf      strings.Builder
		inQuotes bool
	)

	flushField := func() {
		fields = append(fields, buf.String())
		buf.Reset()
	}
	// A row is emitted only if it is non-degenerate: a pending field
	// or at least one field already pushed. Blank trailing lines
	// produce neither and are suppressed.
	flushRow := func() {
		if buf.Len() == 0 && len(fields) == 0 {
			return
		}
		flushField()
		rows = append(rows, fields)
		fields = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				buf.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			flushField()
		case (c == '\n' || c == '\r') && !inQuotes:
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			flushRow()
		default:
			buf.WriteByte(c)
		}
	}

	flushRow()
	return rows
}

// EncodeField quotes a value so ParseCSV round-trips it exactly.
// Values without separators, quotes, or line breaks pass through as-is.
func EncodeField(value string) string {
	if !strings.ContainsAny(value, ",\"\r\n") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
