package security

import "testing"

func TestSanitizeCellValue_FormulaPrefixes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"formula equals", "=SUM(A1)", "'=SUM(A1)"},
		{"formula plus", "+1+2", "'+1+2"},
		{"formula minus", "-cmd", "'-cmd"},
		{"formula at", "@macro", "'@macro"},
		{"plain text", "plain", "plain"},
		{"trims whitespace", "  rack-1  ", "rack-1"},
		{"trimmed then dangerous", "  =1+1", "'=1+1"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeCellValue(tt.input); got != tt.want {
				t.Errorf("SanitizeCellValue(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeForDisplay(t *testing.T) {
	got := SanitizeForDisplay(`<a href="/x">R&D 'lab'</a>`)
	want := "&lt;a href=&quot;&#x2F;x&quot;&gt;R&amp;D &#x27;lab&#x27;&lt;&#x2F;a&gt;"
	if got != want {
		t.Errorf("SanitizeForDisplay = %q, want %q", got, want)
	}

	if got := SanitizeForDisplay(""); got != "" {
		t.Errorf("SanitizeForDisplay(\"\") = %q, want \"\"", got)
	}
}

func TestValidateTextInput(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{"strips html chars", `<script>"x"&'y'</script>`, 100, "scriptxy/script"},
		{"keeps slashes", "rack/row-4", 100, "rack/row-4"},
		{"strips javascript scheme", "javascript:alert(1)", 100, "alert(1)"},
		{"strips scheme case-insensitive", "JavaScript:alert(1)", 100, "alert(1)"},
		{"strips data scheme", "data:text/html,x", 100, "text/html,x"},
		{"strips reassembled scheme", "javajavascript:script:x", 100, "x"},
		{"trims", "  hello  ", 100, "hello"},
		{"truncates", "abcdefgh", 4, "abcd"},
		{"empty", "", 100, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateTextInput(tt.input, tt.maxLength); got != tt.want {
				t.Errorf("ValidateTextInput(%q, %d) = %q, want %q", tt.input, tt.maxLength, got, tt.want)
			}
		})
	}
}

func TestValidateNumericInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		min   int
		max   int
		want  int
	}{
		{"in range", "12", 1, 24, 12},
		{"clamps high", "500", 1, 24, 24},
		{"clamps low", "0", 1, 24, 1},
		{"non-numeric", "abc", 1, 24, 1},
		{"empty", "", 1, 24, 1},
		{"trimmed", " 7 ", 1, 24, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateNumericInput(tt.input, tt.min, tt.max); got != tt.want {
				t.Errorf("ValidateNumericInput(%q, %d, %d) = %d, want %d",
					tt.input, tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestValidateSelectInput(t *testing.T) {
	allowed := []string{"PSM4", "LCLC", "Custom"}

	if got := ValidateSelectInput("LCLC", allowed); got != "LCLC" {
		t.Errorf("allowed value = %q, want LCLC", got)
	}
	if got := ValidateSelectInput("DROP TABLE", allowed); got != "PSM4" {
		t.Errorf("rejected value = %q, want first allowed PSM4", got)
	}
	if got := ValidateSelectInput("anything", nil); got != "" {
		t.Errorf("empty allowed list = %q, want \"\"", got)
	}
}

func TestValidateFileSize(t *testing.T) {
	if !ValidateFileSize(10*1024*1024, 10) {
		t.Error("exactly 10MB should be allowed")
	}
	if ValidateFileSize(10*1024*1024+1, 10) {
		t.Error("over 10MB should be rejected")
	}
	if !ValidateFileSize(0, 10) {
		t.Error("empty file passes the size gate")
	}
}

func TestValidateFileType(t *testing.T) {
	allowed := []string{"csv", "xlsx", "xls"}

	tests := []struct {
		name string
		file string
		want bool
	}{
		{"csv", "links.csv", true},
		{"uppercase extension", "LINKS.CSV", true},
		{"xlsx", "plan.xlsx", true},
		{"exe", "evil.exe", false},
		{"no extension", "README", false},
		{"trailing dot", "file.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateFileType(tt.file, allowed); got != tt.want {
				t.Errorf("ValidateFileType(%q) = %v, want %v", tt.file, got, tt.want)
			}
		})
	}
}
