package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validProfile() *ModelProfile {
	return &ModelProfile{
		Key:             "cb125r",
		Name:            "Honda CB125R",
		Brand:           "honda",
		PriceMin:        1000,
		PriceMax:        4500,
		YearMin:         2018,
		YearMax:         2025,
		SheetName:       "CB125R",
		Keywords:        []string{"cb125r"},
		CleanPriceFloor: 1000,
	}
}

func baseConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{PriceWeight: 0.40, MileageWeight: 0.35, YearWeight: 0.25},
		Models:  map[string]*ModelProfile{"cb125r": validProfile()},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateWeightsMustSumToOne(t *testing.T) {
	cfg := baseConfig()
	cfg.Scoring.PriceWeight = 0.50

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for weights summing to 1.10")
	}
	if !strings.Contains(err.Error(), "weights") {
		t.Errorf("error should mention weights: %v", err)
	}
}

func TestValidateRejectsBadProfile(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelProfile)
	}{
		{"inverted price bounds", func(m *ModelProfile) { m.PriceMin = 5000 }},
		{"zero price min", func(m *ModelProfile) { m.PriceMin = 0 }},
		{"year before 1990", func(m *ModelProfile) { m.YearMin = 1985 }},
		{"no keywords", func(m *ModelProfile) { m.Keywords = nil }},
		{"no sheet name", func(m *ModelProfile) { m.SheetName = "" }},
		{"no price floor", func(m *ModelProfile) { m.CleanPriceFloor = 0 }},
		{"key mismatch", func(m *ModelProfile) { m.Key = "other" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg.Models["cb125r"])
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadModelProfiles(t *testing.T) {
	dir := t.TempDir()
	data := `
key: z900
name: Kawasaki Z900
brand: kawasaki
price_min: 4500
price_max: 9000
year_min: 2017
year_max: 2025
sheet_name: Z900
keywords: [z900, "z 900"]
exclude_keywords: [z800]
clean_price_floor: 2500
cron_schedule: "30 9 * * *"
`
	if err := os.WriteFile(filepath.Join(dir, "z900.yaml"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{Models: make(map[string]*ModelProfile)}
	if err := cfg.loadModelProfiles(dir); err != nil {
		t.Fatalf("loadModelProfiles: %v", err)
	}

	m, ok := cfg.Models["z900"]
	if !ok {
		t.Fatal("z900 profile not loaded")
	}
	if m.PriceMax != 9000 || m.YearMin != 2017 {
		t.Errorf("profile fields wrong: %+v", m)
	}
	if len(m.Keywords) != 2 || m.Keywords[1] != "z 900" {
		t.Errorf("keywords wrong: %v", m.Keywords)
	}
	if m.CronSchedule != "30 9 * * *" {
		t.Errorf("cron wrong: %q", m.CronSchedule)
	}
}

func TestLoadModelProfilesMissingDirIsNotFatal(t *testing.T) {
	cfg := &Config{Models: make(map[string]*ModelProfile)}
	if err := cfg.loadModelProfiles("does/not/exist"); err != nil {
		t.Fatalf("missing dir should be tolerated: %v", err)
	}
}

func TestModelKeysSorted(t *testing.T) {
	cfg := &Config{Models: map[string]*ModelProfile{
		"z900": {}, "cb125r": {}, "mt07": {},
	}}
	keys := cfg.ModelKeys()
	want := []string{"cb125r", "mt07", "z900"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}
