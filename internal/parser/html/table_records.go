// Package html adapts an HTML table into records.
package html

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	csvparser "schemaprof/internal/parser/csv"
	"schemaprof/internal/records"
	"schemaprof/internal/value"
)

// Options configures NewReader.
type Options struct {
	// TableSelector picks the table; the first match is used. Default "table".
	TableSelector string
}

// NewReader parses the document from r and returns a Reader over the rows of
// the selected table.
//
// The header comes from the <thead> row when present, otherwise from the first
// row. Header cells are whitespace-collapsed; data cells are typed the same way
// CSV cells are. The whole document is parsed up front: HTML has no streaming
// tree builder and tables are expected to be page-sized.
//
// Errors:
//   - read failures are returned as *records.ParsingError
//   - a document without a matching table yields a *records.ParsingError
func NewReader(r io.Reader, opts Options) (*records.Slice, error) {
	sel := opts.TableSelector
	if sel == "" {
		sel = "table"
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &records.ParsingError{Format: "html", Err: fmt.Errorf("parse html: %w", err)}
	}

	table := doc.Find(sel).First()
	if table.Length() == 0 {
		return nil, &records.ParsingError{Format: "html", Err: fmt.Errorf("no element matches %q", sel)}
	}

	rows := table.Find("tr")
	var header []string
	start := 0
	if head := table.Find("thead tr").First(); head.Length() > 0 {
		header = cellTexts(head)
		start = rows.IndexOfSelection(head) + 1
	} else if rows.Length() > 0 {
		header = cellTexts(rows.First())
		start = 1
	}
	for i, h := range header {
		if h == "" {
			header[i] = fmt.Sprintf("column_%d", i+1)
		}
	}

	out := &records.Slice{}
	rows.Slice(start, rows.Length()).Each(func(_ int, tr *goquery.Selection) {
		cells := cellTexts(tr)
		if len(cells) == 0 {
			return
		}
		obj := make(value.Object, 0, len(cells))
		for i, c := range cells {
			key := fmt.Sprintf("column_%d", i+1)
			if i < len(header) {
				key = header[i]
			}
			obj = append(obj, value.Member{Key: key, Value: csvparser.TypeCell(c)})
		}
		out.Records = append(out.Records, obj)
	})
	return out, nil
}

func cellTexts(tr *goquery.Selection) []string {
	var out []string
	tr.ChildrenFiltered("th,td").Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.Join(strings.Fields(c.Text()), " "))
	})
	return out
}
