package publish

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"moto_scrooper/config"
	"moto_scrooper/models"
)

func sampleBatch() []models.ScoredListing {
	price := 6000.0
	mileage := 12000.0
	year := 2020

	return []models.ScoredListing{
		{
			ValidatedListing: models.ValidatedListing{
				ListingCandidate: models.ListingCandidate{
					URL:             "https://es.wallapop.com/item/z900-1",
					Title:           "Kawasaki Z900 2020",
					SellerText:      "Juan",
					LocationText:    "Madrid",
					PublishDateText: "hace 2 días",
					ExtractedAt:     time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
				},
				Price:   &price,
				Mileage: &mileage,
				Year:    &year,
			},
			Composite: 8.2,
			Category:  models.CategoryVeryGood,
		},
		{
			ValidatedListing: models.ValidatedListing{
				ListingCandidate: models.ListingCandidate{
					URL:         "https://es.wallapop.com/item/z900-2",
					Title:       "Kawasaki Z900",
					MileageText: models.Unspecified,
					ExtractedAt: time.Date(2026, 8, 29, 10, 1, 0, 0, time.UTC),
				},
				Price: &price,
			},
			Category: models.CategoryNoData,
		},
	}
}

func TestPublishWritesWorkbookAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir)
	profile := &config.ModelProfile{Key: "z900", SheetName: "Z900"}
	sheet := SheetName(profile, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC))

	snapshot, err := p.Publish(profile, sheet, sampleBatch())
	if err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(p.workbookPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		t.Fatalf("sheet %q missing, have %v", sheet, f.GetSheetList())
	}

	header, err := f.GetCellValue(sheet, "A1")
	if err != nil {
		t.Fatal(err)
	}
	if header != "Título" {
		t.Errorf("A1 = %q, want Título", header)
	}

	title, _ := f.GetCellValue(sheet, "A2")
	if title != "Kawasaki Z900 2020" {
		t.Errorf("A2 = %q", title)
	}
	category, _ := f.GetCellValue(sheet, "E2")
	if category != "Muy Buena" {
		t.Errorf("E2 = %q", category)
	}

	// Second row has no mileage; the cell must be empty, not "unspecified".
	km, _ := f.GetCellValue(sheet, "C3")
	if km != "" {
		t.Errorf("C3 = %q, want empty", km)
	}

	snap, err := excelize.OpenFile(snapshot)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	snap.Close()
}

func TestPublishReplacesExistingSheet(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir)
	profile := &config.ModelProfile{Key: "z900", SheetName: "Z900"}
	sheet := SheetName(profile, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC))

	batch := sampleBatch()
	if _, err := p.Publish(profile, sheet, batch); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Publish(profile, sheet, batch[:1]); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(p.workbookPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	count := 0
	for _, name := range f.GetSheetList() {
		if name == sheet {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("sheet %q appears %d times", sheet, count)
	}

	// Only one data row should remain after the replace.
	second, _ := f.GetCellValue(sheet, "A3")
	if second != "" {
		t.Errorf("A3 = %q, want empty after replace", second)
	}
}

func TestSheetNameFormat(t *testing.T) {
	profile := &config.ModelProfile{SheetName: "MT07"}
	got := SheetName(profile, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	if got != "MT07 05-03-26" {
		t.Errorf("SheetName = %q", got)
	}
}

func TestPublishEmptyBatch(t *testing.T) {
	dir := t.TempDir()
	p := NewPublisher(dir)
	profile := &config.ModelProfile{Key: "mt07", SheetName: "MT07"}
	sheet := SheetName(profile, time.Now())

	if _, err := p.Publish(profile, sheet, nil); err != nil {
		t.Fatalf("empty batch must still publish a sheet: %v", err)
	}
}
