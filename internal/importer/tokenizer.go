package importer

import "strings"

// Tokenize converts decoded CSV text into rows of fields. Quoted fields may
// embed commas, newlines and doubled quotes; mixed line endings are
// normalized before parsing so a \r\n file never produces empty rows. Rows
// whose fields are all blank are dropped, including trailing artifacts from
// a final newline. Row 0 of the output is the header row.
//
// The whole file is materialized because the controller needs the total row
// count before chunking.
func Tokenize(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var rows [][]string
	var row []string
	var field strings.Builder
	inQuotes := false
	fieldStarted := false

	flushField := func() {
		row = append(row, field.String())
		field.Reset()
		fieldStarted = false
	}
	flushRow := func() {
		flushField()
		if !blankRow(row) {
			rows = append(rows, row)
		}
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case inQuotes:
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					// Doubled quote is a literal quote
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				field.WriteByte(c)
			}
		case c == '"' && !fieldStarted:
			inQuotes = true
			fieldStarted = true
		case c == ',':
			flushField()
		case c == '\n':
			flushRow()
		default:
			field.WriteByte(c)
			fieldStarted = true
		}
	}

	// Unterminated trailing field (file without final newline)
	if field.Len() > 0 || len(row) > 0 {
		flushRow()
	}

	return rows
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
