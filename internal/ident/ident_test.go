package ident

import "testing"

func TestNormalizeRawID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"main figure", "S3.F2", "fig2", true},
		{"appendix table", "A4.T1", "appendix_tab1", true},
		{"main table", "S1.T3", "tab3", true},
		{"appendix figure", "A2.F7", "appendix_fig7", true},
		{"panel id keeps parent", "S3.F2.sf1", "fig2", true},
		{"whitespace tolerated", " S5.F1 ", "fig1", true},
		{"garbage", "garbage", "", false},
		{"empty", "", "", false},
		{"missing number", "S3.F", "", false},
		{"lowercase not structural", "s3.f2", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeRawID(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("NormalizeRawID(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("NormalizeRawID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestToDisplayID(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"figure prefix", "figure3", "3", true},
		{"fig with underscore letter", "fig1_a", "1.a", true},
		{"fig with dot letter", "fig1.a", "1.a", true},
		{"appendix prefix", "appendix_fig2", "2", true},
		{"bare number", "7", "7", true},
		{"already display form", "3.b", "3.b", true},
		{"uppercase letter lowered", "FIG2.B", "2.b", true},
		{"table prefix", "table4", "4", true},
		{"no number", "figure", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToDisplayID(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ToDisplayID(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ToDisplayID(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDisplayID(t *testing.T) {
	num, letter, ok := ParseDisplayID("3.a")
	if !ok || num != 3 || letter != "a" {
		t.Errorf("ParseDisplayID(3.a) = (%d, %q, %v)", num, letter, ok)
	}
	num, letter, ok = ParseDisplayID("12")
	if !ok || num != 12 || letter != "" {
		t.Errorf("ParseDisplayID(12) = (%d, %q, %v)", num, letter, ok)
	}
	if _, _, ok := ParseDisplayID("nope"); ok {
		t.Error("ParseDisplayID(nope) should fail")
	}
}

func TestParseCanonical(t *testing.T) {
	tests := []struct {
		id       string
		num      int
		kind     string
		appendix bool
		letter   string
		ok       bool
	}{
		{"fig3", 3, "fig", false, "", true},
		{"tab12", 12, "tab", false, "", true},
		{"appendix_fig1", 1, "fig", true, "", true},
		{"fig3_a", 3, "fig", false, "a", true},
		{"appendix_tab2_c", 2, "tab", true, "c", true},
		{"figure3", 0, "", false, "", false},
		{"fig", 0, "", false, "", false},
	}
	for _, tt := range tests {
		num, kind, appendix, letter, ok := ParseCanonical(tt.id)
		if ok != tt.ok || num != tt.num || kind != tt.kind || appendix != tt.appendix || letter != tt.letter {
			t.Errorf("ParseCanonical(%q) = (%d, %q, %v, %q, %v), want (%d, %q, %v, %q, %v)",
				tt.id, num, kind, appendix, letter, ok, tt.num, tt.kind, tt.appendix, tt.letter, tt.ok)
		}
	}
}

func TestSubfigureLetter(t *testing.T) {
	tests := []struct {
		name  string
		rawID string
		seq   int
		want  string
	}{
		{"explicit sf suffix wins", "S3.F2.sf2", 0, "b"},
		{"explicit suffix first panel", "S3.F2.sf1", 5, "a"},
		{"no suffix uses sequence", "S3.F2.panel", 0, "a"},
		{"no suffix second in sequence", "", 1, "b"},
		{"bare trailing digit", "subfig3", 0, "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubfigureLetter(tt.rawID, tt.seq); got != tt.want {
				t.Errorf("SubfigureLetter(%q, %d) = %q, want %q", tt.rawID, tt.seq, got, tt.want)
			}
		})
	}
}

func TestPositionalID(t *testing.T) {
	if got := PositionalID(false, 3); got != "fig3" {
		t.Errorf("PositionalID(false, 3) = %q", got)
	}
	if got := PositionalID(true, 1); got != "tab1" {
		t.Errorf("PositionalID(true, 1) = %q", got)
	}
}

func TestSubfigureKey(t *testing.T) {
	if got := SubfigureKey("fig3", "a"); got != "fig3_a" {
		t.Errorf("SubfigureKey = %q", got)
	}
}
