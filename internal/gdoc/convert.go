package gdoc

import (
	"fmt"
	"html"
	"strings"
)

// ConvertHTML renders a document's blocks as semantic HTML. The first
// Heading-1 block is suppressed (it duplicates the row's title field); any
// later Heading-1 is kept. List state is a single open-list marker threaded
// through the walk: switching between unordered and numbered bullets closes
// the open list before opening the other kind, and any list still open at the
// end of input is closed.
func ConvertHTML(doc *Document) string {
	var out strings.Builder

	openList := ListNone
	titleSeen := false

	for _, block := range doc.Blocks {
		content := renderRuns(block.Runs)
		if strings.TrimSpace(content) == "" {
			// Fully blank blocks produce no element and leave list
			// state untouched.
			continue
		}

		if block.Style == StyleHeading1 && !titleSeen {
			titleSeen = true
			if block.List == ListNone {
				continue
			}
		}

		if block.List != ListNone {
			if openList != block.List {
				openList = closeList(&out, openList)
				openList = openListTag(&out, block.List)
			}
			out.WriteString("<li>" + content + "</li>\n")
			continue
		}

		openList = closeList(&out, openList)

		switch block.Style {
		case StyleHeading1:
			out.WriteString("<h1>" + content + "</h1>\n")
		case StyleHeading2:
			out.WriteString("<h2>" + content + "</h2>\n")
		case StyleHeading3:
			out.WriteString("<h3>" + content + "</h3>\n")
		default:
			out.WriteString("<p>" + content + "</p>\n")
		}
	}

	closeList(&out, openList)

	return out.String()
}

func openListTag(out *strings.Builder, kind ListKind) ListKind {
	switch kind {
	case ListOrdered:
		out.WriteString("<ol>\n")
	case ListUnordered:
		out.WriteString("<ul>\n")
	}
	return kind
}

func closeList(out *strings.Builder, open ListKind) ListKind {
	switch open {
	case ListOrdered:
		out.WriteString("</ol>\n")
	case ListUnordered:
		out.WriteString("</ul>\n")
	}
	return ListNone
}

// renderRuns concatenates a block's inline runs. Runs with no non-whitespace
// content are dropped entirely; styled runs are wrapped bold, then italic,
// then underline, then link, so the anchor ends up outermost.
func renderRuns(runs []Run) string {
	var out strings.Builder

	for _, run := range runs {
		if strings.TrimSpace(run.Text) == "" {
			continue
		}

		text := html.EscapeString(strings.TrimRight(run.Text, "\n"))

		if run.Bold {
			text = "<strong>" + text + "</strong>"
		}
		if run.Italic {
			text = "<em>" + text + "</em>"
		}
		if run.Underline {
			text = "<u>" + text + "</u>"
		}
		if run.LinkURL != "" {
			text = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(run.LinkURL), text)
		}

		out.WriteString(text)
	}

	return out.String()
}
