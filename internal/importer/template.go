package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const templateSheet = "Pitanja"

var templateHeader = []interface{}{
	"Tip", "Pitanje", "Opcija1", "Opcija2", "Opcija3", "Opcija4",
	"TačanOdgovor", "SlikaURL", "YouTubeURL", "Objašnjenje",
}

var templateRows = [][]interface{}{
	{
		"multiple", "Koji je glavni grad Srbije?",
		"Beograd", "Novi Sad", "Niš", "Kragujevac",
		"1", "", "", "Beograd je glavni grad Srbije.",
	},
	{
		"true-false", "Dunav protiče kroz Beograd.",
		"", "", "", "",
		"Tačno", "", "", "Dunav i Sava se sastaju u Beogradu.",
	},
}

// WriteTemplate emits the authoring template workbook. Its sample rows are
// kept valid on purpose: an unmodified template must import back with zero
// skipped rows.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(templateSheet, "A1", &templateHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range templateRows {
		cell := fmt.Sprintf("A%d", i+2)
		r := row
		if err := f.SetSheetRow(templateSheet, cell, &r); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f.Write(w)
}
