package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/guideseg/internal/doctree"
)

// Rows per table element. Every batch repeats the header row.
const csvBatchSize = 20

// CSVParser handles CSV files such as exported dosing tables. The file name
// becomes the single heading; rows follow as table elements.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) ([]doctree.Element, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var out elements
	out.add(doctree.Element{Type: doctree.TypeSectionHeader, Text: strings.TrimSuffix(filename, ".csv"), NativeDepth: 1})
	if len(records) == 0 {
		return paginateAtHeadings(out.list), nil
	}

	headers := records[0]
	data := records[1:]
	for i := 0; i < len(data); i += csvBatchSize {
		end := min(i+csvBatchSize, len(data))
		rows := append([][]string{headers}, data[i:end]...)
		out.add(doctree.Element{Type: doctree.TypeTable, Text: plainTable(rows), Markdown: markdownTable(rows)})
	}
	return paginateAtHeadings(out.list), nil
}
