// Package publish renders scored batches into the spreadsheet the buyers
// actually read. Each run replaces the model's sheet in a shared workbook
// and also writes a standalone dated snapshot file.
package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"moto_scrooper/config"
	"moto_scrooper/models"
)

// Column order is fixed: the people reading the sheet filter and sort by
// position, so reordering silently breaks their saved views.
var columns = []string{
	"Título", "Precio", "Kilómetros", "Año", "Categoría",
	"Vendedor", "Ubicación", "Publicado", "URL", "Extraído",
}

type Publisher struct {
	workbookPath string
	resultsDir   string
}

func NewPublisher(resultsDir string) *Publisher {
	return &Publisher{
		workbookPath: filepath.Join(resultsDir, "listados.xlsx"),
		resultsDir:   resultsDir,
	}
}

// SheetName builds the per-run sheet name for a profile: "MODEL dd-mm-yy".
// Excel forbids slashes in sheet names, so the date uses dashes.
func SheetName(profile *config.ModelProfile, t time.Time) string {
	return fmt.Sprintf("%s %s", profile.SheetName, t.Format("02-01-06"))
}

// Publish writes the batch to the named sheet in the shared workbook,
// replacing the sheet if it already exists, and drops a dated snapshot
// file next to it. Returns the snapshot path.
func (p *Publisher) Publish(profile *config.ModelProfile, sheetName string, listings []models.ScoredListing) (string, error) {
	if err := os.MkdirAll(p.resultsDir, 0755); err != nil {
		return "", err
	}

	f, err := p.openWorkbook()
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := p.writeSheet(f, sheetName, listings); err != nil {
		return "", err
	}

	// The default sheet excelize creates on a fresh workbook is noise once
	// real sheets exist.
	if f.SheetCount > 1 {
		if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 {
			f.DeleteSheet("Sheet1")
		}
	}

	if err := f.SaveAs(p.workbookPath); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	snapshotPath := filepath.Join(p.resultsDir,
		fmt.Sprintf("%s_%s.xlsx", profile.Key, time.Now().Format("20060102_150405")))
	if err := p.writeSnapshot(snapshotPath, sheetName, listings); err != nil {
		return "", err
	}

	return snapshotPath, nil
}

func (p *Publisher) openWorkbook() (*excelize.File, error) {
	if _, err := os.Stat(p.workbookPath); err == nil {
		f, err := excelize.OpenFile(p.workbookPath)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		return f, nil
	}
	return excelize.NewFile(), nil
}

func (p *Publisher) writeSnapshot(path, sheetName string, listings []models.ScoredListing) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := p.writeSheet(f, sheetName, listings); err != nil {
		return err
	}
	if idx, _ := f.GetSheetIndex("Sheet1"); idx >= 0 && f.SheetCount > 1 {
		f.DeleteSheet("Sheet1")
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (p *Publisher) writeSheet(f *excelize.File, sheetName string, listings []models.ScoredListing) error {
	// A sheet cannot be deleted while it is the only one in the workbook,
	// so an existing sheet is renamed aside, recreated empty, then dropped.
	if idx, _ := f.GetSheetIndex(sheetName); idx >= 0 {
		old := sheetName + " (old)"
		if err := f.SetSheetName(sheetName, old); err != nil {
			return fmt.Errorf("replace sheet: %w", err)
		}
		if _, err := f.NewSheet(sheetName); err != nil {
			return fmt.Errorf("new sheet: %w", err)
		}
		if err := f.DeleteSheet(old); err != nil {
			return fmt.Errorf("drop old sheet: %w", err)
		}
	} else if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
	})
	if err != nil {
		return err
	}

	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return err
		}
	}
	endHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	f.SetCellStyle(sheetName, "A1", endHeader, headerStyle)

	for row, l := range listings {
		values := []interface{}{
			l.Title,
			numericOrText(l.Price, l.PriceText),
			numericOrText(l.Mileage, l.MileageText),
			yearOrText(l.Year, l.YearText),
			string(l.Category),
			l.SellerText,
			l.LocationText,
			l.PublishDateText,
			l.URL,
			l.ExtractedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
	}

	// Metadata footer, one blank row below the data.
	footerRow := len(listings) + 3
	cell, _ := excelize.CoordinatesToCellName(1, footerRow)
	footer := fmt.Sprintf("Generado: %s | Anuncios: %d",
		time.Now().Format("02/01/2006 15:04"), len(listings))
	if err := f.SetCellValue(sheetName, cell, footer); err != nil {
		return err
	}

	f.SetColWidth(sheetName, "A", "A", 45)
	f.SetColWidth(sheetName, "I", "I", 55)

	return nil
}

// numericOrText prefers the parsed number so the column sorts correctly;
// unparsed records fall back to the display text.
func numericOrText(v *float64, text string) interface{} {
	if v != nil {
		return *v
	}
	if text == models.Unspecified {
		return ""
	}
	return text
}

func yearOrText(v *int, text string) interface{} {
	if v != nil {
		return *v
	}
	if text == models.Unspecified {
		return ""
	}
	return text
}
