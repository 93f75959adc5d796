package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Policy", "Harm", "Left"}
	rows := [][]string{
		{"show-all", "97.50", "12"},
		{"severity-pause", "8.00", "3"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0] != "Policy           Harm  Left" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "--------------  -----  ----" {
		t.Fatalf("unexpected rule line: %q", lines[1])
	}
	if lines[2] != "show-all        97.50    12" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
	if lines[3] != "severity-pause   8.00     3" {
		t.Fatalf("unexpected row line: %q", lines[3])
	}
}

func TestFormatTableWideRunes(t *testing.T) {
	lines := formatTable([]string{"A", "B"}, [][]string{{"警報", "x"}}, nil)
	if lines[2] != "警報  x" {
		t.Fatalf("wide runes should count as two cells: %q", lines[2])
	}
	if lines[0] != "A     B" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
}
