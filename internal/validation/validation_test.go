package validation

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCheckImageFile(t *testing.T) {
	tests := []struct {
		name    string
		file    FileInfo
		wantErr string
	}{
		{"jpeg", FileInfo{MIMEType: "image/jpeg", Size: 1024}, ""},
		{"png", FileInfo{MIMEType: "image/png", Size: 1024}, ""},
		{"webp with params", FileInfo{MIMEType: "image/webp; q=1", Size: 1024}, ""},
		{"exactly 20MiB", FileInfo{MIMEType: "image/png", Size: MaxImageBytes}, ""},
		{"gif rejected", FileInfo{MIMEType: "image/gif", Size: 10}, "Only JPG, PNG, and WEBP images are accepted."},
		{"empty type", FileInfo{Size: 10}, "Only JPG, PNG, and WEBP images are accepted."},
		{"too large", FileInfo{MIMEType: "image/jpeg", Size: MaxImageBytes + 1}, "Image must be under 20MB."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckImageFile(tt.file)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("got %v, want %q", err, tt.wantErr)
			}
			var vErr *Error
			if !errors.As(err, &vErr) || vErr.Field != FieldImage {
				t.Errorf("expected *Error for field %q, got %#v", FieldImage, err)
			}
		})
	}
}

func TestCheckDocumentFile(t *testing.T) {
	if err := CheckDocumentFile(FileInfo{MIMEType: "application/pdf", Size: MaxDocumentBytes}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckDocumentFile(FileInfo{MIMEType: "image/png", Size: 1}); err == nil || err.Error() != "Only PDF files are accepted." {
		t.Errorf("got %v, want PDF type error", err)
	}
	if err := CheckDocumentFile(FileInfo{MIMEType: "application/pdf", Size: MaxDocumentBytes + 1}); err == nil || err.Error() != "PDF must be under 50MB." {
		t.Errorf("got %v, want size error", err)
	}
}

func TestCheckDesignNumberText(t *testing.T) {
	tests := []struct {
		value   string
		wantErr string
	}{
		{"AB-1_2", ""},
		{"Summer 24", ""},
		{"123456789012345", ""},
		{"", "Design number cannot be empty."},
		{"   ", "Design number cannot be empty."},
		{"1234567890123456", "Maximum 15 characters allowed."},
		{"AB#1", "Special characters are not allowed."},
		{"a/b", "Special characters are not allowed."},
		{"x`y", "Special characters are not allowed."},
		{"café", "Only letters, numbers, hyphens, and underscores allowed."},
		{"a.b", "Only letters, numbers, hyphens, and underscores allowed."},
	}
	for _, tt := range tests {
		err := CheckDesignNumberText(tt.value)
		if tt.wantErr == "" {
			if err != nil {
				t.Errorf("CheckDesignNumberText(%q) unexpected error: %v", tt.value, err)
			}
			continue
		}
		if err == nil || err.Error() != tt.wantErr {
			t.Errorf("CheckDesignNumberText(%q) = %v, want %q", tt.value, err, tt.wantErr)
		}
	}
}

func TestSanitizeFreeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  make it brighter  ", "make it brighter"},
		{"<b>bold</b> silk", "bold silk"},
		{"use {{color}} here", "use } here"},
		{"pay ${amount} now", "pay $ now"},
		{"JavaScript:alert(1)", "alert(1)"},
		{"img onerror = x", "img  x"},
		{`back\slash`, "backslash"},
		{`on\click=go`, "go"},
	}
	for _, tt := range tests {
		if got := SanitizeFreeText(tt.in); got != tt.want {
			t.Errorf("SanitizeFreeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFreeTextIdempotentAndBounded(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"<<b>i>nested",
		"{{a}b}",
		"java<x>script:void",
		"o<p>nload=1",
		`\\\\`,
		strings.Repeat("a", 499) + " " + strings.Repeat("b", 40),
		strings.Repeat("é", 800),
		strings.Repeat("<a>", 300) + strings.Repeat("x", 600),
		"   " + strings.Repeat("z ", 400),
	}
	for _, in := range inputs {
		once := SanitizeFreeText(in)
		twice := SanitizeFreeText(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
		if n := utf8.RuneCountInString(once); n > MaxCustomTextLen {
			t.Errorf("output length %d exceeds %d", n, MaxCustomTextLen)
		}
	}
}

func TestCheckCustomText(t *testing.T) {
	if err := CheckCustomText(strings.Repeat("a", MaxCustomTextLen)); err != nil {
		t.Errorf("unexpected error at limit: %v", err)
	}
	if err := CheckCustomText(strings.Repeat("a", MaxCustomTextLen+1)); err == nil {
		t.Error("expected error above limit")
	}
}

func keywords(ws []Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = string(w.Severity) + ":" + w.Keyword
	}
	return out
}

func TestCheckPromptForRisk(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", "   \n\t", nil},
		{"safe", "make the silk more vibrant", nil},
		{"blocked suppresses contained warning", "Change Neckline please", []string{"blocked:change neckline"}},
		{"independent warning still reported", "change neckline and change color", []string{"blocked:change neckline", "warning:change"}},
		{"warning only", "slightly bigger motifs", []string{"warning:bigger"}},
		{"alter inside alter sleeves", "alter sleeves", []string{"blocked:alter sleeves"}},
		{
			"multiple blocked",
			"redesign it and shorten the hem",
			[]string{"blocked:redesign", "blocked:shorten"},
		},
		{
			"change to different covers both warnings",
			"change to different fabric",
			[]string{"blocked:change to different"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckPromptForRisk(tt.text)
			if got == nil {
				t.Fatal("expected non-nil slice")
			}
			gotKeys := keywords(got)
			if len(gotKeys) != len(tt.want) {
				t.Fatalf("got %v, want %v", gotKeys, tt.want)
			}
			for i := range gotKeys {
				if gotKeys[i] != tt.want[i] {
					t.Errorf("warning[%d] = %q, want %q", i, gotKeys[i], tt.want[i])
				}
			}
		})
	}
}

func TestCheckPromptForRiskMessages(t *testing.T) {
	ws := CheckPromptForRisk("reshape and modify")
	if len(ws) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(ws))
	}
	wantBlocked := `Your prompt contains "reshape" which may override geometry preservation rules. Consider rewording to focus on texture/color only.`
	if ws[0].Message != wantBlocked {
		t.Errorf("blocked message = %q", ws[0].Message)
	}
	wantWarn := `"modify" may cause unintended changes. Ensure it refers to color/texture, not geometry.`
	if ws[1].Message != wantWarn {
		t.Errorf("warning message = %q", ws[1].Message)
	}
}
