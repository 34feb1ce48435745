package pipeline

import (
	"strings"
)

// Column-name aliases per semantic field. The sheet is maintained by hand in
// more than one locale, so each field accepts an ordered list of header
// names; the first alias present with a non-empty cell wins.
var (
	titleAliases     = []string{"Title", "title", "כותרת", "כותרת מאמר", "שם המאמר", "נושא"}
	docLinkAliases   = []string{"Document Link", "google_doc_link", "קישור למאמר", "לינק למסמך"}
	dateAliases      = []string{"Scheduled Date", "scheduled_date", "תאריך פרסום", "תאריך"}
	categoryAliases  = []string{"Category", "category", "קטגוריה"}
	imageAliases     = []string{"Image Link", "image_link", "קישור לתמונה", "תמונה"}
	imageNameAliases = []string{"Image Name", "image_name", "שם תמונה"}
	postLinkAliases  = []string{"Post Link", "post_link", "קישור לפוסט"}
	statusAliases    = []string{"Status", "status", "סטטוס"}
)

// HeaderMap maps a column name to its zero-based cell offset. It is built
// once per run from the first fetched row; offsets are only stable for that
// run, since the sheet may be edited between runs.
type HeaderMap map[string]int

func NewHeaderMap(headerRow []string) HeaderMap {
	headers := make(HeaderMap, len(headerRow))
	for idx, name := range headerRow {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		// First occurrence wins on duplicate header names.
		if _, exists := headers[name]; !exists {
			headers[name] = idx
		}
	}
	return headers
}

// Cell reads a cell by offset. Cells beyond the row's length are empty:
// the spreadsheet service omits trailing empty cells.
func Cell(row []string, offset int) string {
	if offset < 0 || offset >= len(row) {
		return ""
	}
	return row[offset]
}

// Lookup returns the first non-empty cell among the aliased columns.
func (h HeaderMap) Lookup(row []string, aliases []string) string {
	for _, alias := range aliases {
		offset, ok := h[alias]
		if !ok {
			continue
		}
		if value := strings.TrimSpace(Cell(row, offset)); value != "" {
			return value
		}
	}
	return ""
}

// Column returns the offset of the first alias that exists in the header,
// regardless of cell contents. Used to locate write-back columns.
func (h HeaderMap) Column(aliases []string) (int, bool) {
	for _, alias := range aliases {
		if offset, ok := h[alias]; ok {
			return offset, true
		}
	}
	return 0, false
}

// rowFields is the raw field set pulled out of one sheet row.
type rowFields struct {
	Title     string
	DocLink   string
	ImageLink string
	ImageName string
	Category  string
	RawDate   string
}

func resolveFields(headers HeaderMap, row []string) rowFields {
	return rowFields{
		Title:     headers.Lookup(row, titleAliases),
		DocLink:   headers.Lookup(row, docLinkAliases),
		ImageLink: headers.Lookup(row, imageAliases),
		ImageName: headers.Lookup(row, imageNameAliases),
		Category:  headers.Lookup(row, categoryAliases),
		RawDate:   headers.Lookup(row, dateAliases),
	}
}

// ColumnLetter converts a zero-based column offset to its A1 letter form.
// Sheets wider than 26 columns get multi-letter addresses (26 -> AA).
func ColumnLetter(offset int) string {
	letters := ""
	n := offset + 1
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}
