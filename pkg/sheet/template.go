package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/openmigrate/mfdata/pkg/schema"
)

const templateSheetName = "import"

// WriteTemplate generates an intake workbook whose header row carries one
// [schema]attribute column per non-system attribute of the requested
// schemas. Relationship columns use the target's display attribute so
// imported values resolve by name.
func WriteTemplate(path string, reg *schema.Registry, schemaNames []string) error {
	if len(schemaNames) == 0 {
		schemaNames = reg.Names()
	}

	var headers []string
	for _, name := range schemaNames {
		s, ok := reg.Get(name)
		if !ok {
			return fmt.Errorf("unknown schema %q", name)
		}
		for _, a := range s.Attributes {
			if a.System {
				continue
			}
			headers = append(headers, fmt.Sprintf("[%s]%s", s.Name, a.Name))
		}
	}
	if len(headers) == 0 {
		return fmt.Errorf("no attributes to template")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(templateSheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(templateSheetName, cell, h); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		_ = f.SetCellStyle(templateSheetName, "A1", last, style)
	}

	return f.SaveAs(path)
}
