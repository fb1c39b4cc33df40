package util

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"alphanumeric", "abc123", "abc123"},
		{"spaces and colons", "2024-01-02 10:11:12", "2024_01_02_10_11_12"},
		{"dots", "net.v2", "net_v2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeName(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFileStem(t *testing.T) {
	if got := FileStem("networks/CarlaTown05.net.yaml"); got != "CarlaTown05" {
		t.Errorf("FileStem = %q", got)
	}
	if got := FileStem("demand"); got != "demand" {
		t.Errorf("FileStem = %q", got)
	}
}

func TestTraceFileName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	got := TraceFileName("out", "nets/town.yaml", "demands/peak.txt", 600, 7, now)
	want := filepath.Join("out", "town_SimTime600_peak_Seed7_2024_03_05_14_07_09.db")
	if got != want {
		t.Errorf("TraceFileName = %q, want %q", got, want)
	}

	if got := TraceFileName("", "n.yaml", "d.txt", 1, 0, now); got != "n_SimTime1_d_Seed0_2024_03_05_14_07_09.db" {
		t.Errorf("TraceFileName without dir = %q", got)
	}
}
