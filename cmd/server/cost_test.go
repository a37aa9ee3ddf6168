package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCalculator(t *testing.T) {
	calc, err := loadCalculator("")
	if err != nil || calc == nil {
		t.Fatalf("default calculator: %v", err)
	}

	path := filepath.Join(t.TempDir(), "prices.yaml")
	if err := os.WriteFile(path, []byte("prices:\n  Diesel: 1500\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	calc, err = loadCalculator(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := calc.PricePerLiter("Diesel"); got != 1500 {
		t.Errorf("Diesel = %v", got)
	}

	if _, err := loadCalculator(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestCostCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"cost", "--distance", "100", "--efficiency", "10", "--fuel", "Diesel"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "Consumo:     10.00 l") {
		t.Errorf("output = %q", out.String())
	}

	rootCmd.SetArgs([]string{"cost", "--distance", "10", "--fuel", "GNC"})
	if err := rootCmd.Execute(); err == nil {
		t.Error("expected error for unknown fuel type")
	}
}
