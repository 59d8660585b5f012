package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "A002",
			wantMsg: "Invalid config file",
			wantCat: CategoryConfig,
		},
		{
			name:    "scenario error",
			code:    "A103",
			wantMsg: "Unknown dependency",
			wantCat: CategoryScenario,
		},
		{
			name:    "snapshot error",
			code:    "A201",
			wantMsg: "Snapshot not found",
			wantCat: CategorySnapshot,
		},
		{
			name:    "unknown error code",
			code:    "A999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestAtomError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AtomError
		want string
	}{
		{
			name: "coded",
			err:  New("A105"),
			want: "A105: Unknown atom",
		},
		{
			name: "uncoded",
			err:  Newf(CategoryCLI, "bad flag %q", "--x"),
			want: `bad flag "--x"`,
		},
		{
			name: "wrapped",
			err:  New("A001").Wrap(os.ErrPermission),
			want: "A001: Config file not readable: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAtomError_WithLocation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counter.yaml")
	content := `atoms:
  - name: count
    value: 0
  - name: doubled
    expr: count * 2
    deps: [cnt]
steps:
  - set: {count: 1}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	err := New("A103").WithLocation(path, 6, 12)
	if err.Location.String() != path+":6:12" {
		t.Errorf("Location = %q", err.Location.String())
	}
	if len(err.Context) != 5 {
		t.Fatalf("Context has %d lines, want 5", len(err.Context))
	}
	if err.Context[2] != "    deps: [cnt]" {
		t.Errorf("centre line = %q", err.Context[2])
	}

	DisableColors()
	defer EnableColors()
	out := err.Format()
	if !strings.Contains(out, "→    6 │     deps: [cnt]") {
		t.Errorf("Format() does not mark line 6:\n%s", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("Format() has no column marker:\n%s", out)
	}
}

func TestAtomError_WithLocationMissingFile(t *testing.T) {
	err := New("A101").WithLocation("does-not-exist.yaml", 3, 1)
	if err.Context != nil {
		t.Errorf("Context = %v, want nil", err.Context)
	}
}

func TestAtomError_Builders(t *testing.T) {
	err := New("A102").
		WithDetailf("atom %q declares both value and expr", "count").
		WithSuggestion("Remove one of them")

	if err.Detail != `atom "count" declares both value and expr` {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Suggestion != "Remove one of them" {
		t.Errorf("Suggestion = %q", err.Suggestion)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "A108") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	ae := New("A105")
	if FromError(fmt.Errorf("step 2: %w", ae), "A108") != ae {
		t.Error("FromError should return the wrapped AtomError as is")
	}

	plain := stderrors.New("boom")
	got := FromError(plain, "A108")
	if got.Code != "A108" || got.Wrapped != plain {
		t.Errorf("FromError = %+v", got)
	}
	if !stderrors.Is(got, plain) {
		t.Error("errors.Is should see the wrapped error")
	}
}

func TestHasCode(t *testing.T) {
	inner := New("A201")
	outer := New("A108").Wrap(fmt.Errorf("restore: %w", inner))

	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"outer", outer, "A108", true},
		{"nested", outer, "A201", true},
		{"absent", outer, "A300", false},
		{"plain", stderrors.New("x"), "A108", false},
		{"nil", nil, "A108", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("A104")
	err.Location = &Location{File: "s.yaml", Line: 4}
	if got := err.FormatCompact(); got != "s.yaml:4: A104: Expression does not compile" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New("A300").WithSuggestion("GET /atoms lists known atoms").Wrap(stderrors.New("no such atom"))

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatal(jerr)
	}

	var got map[string]any
	if jerr := json.Unmarshal(data, &got); jerr != nil {
		t.Fatal(jerr)
	}
	if got["code"] != "A300" || got["category"] != "inspect" || got["cause"] != "no such atom" {
		t.Errorf("MarshalJSON() = %s", data)
	}
	if _, ok := got["location"]; ok {
		t.Errorf("location should be omitted: %s", data)
	}
}

func TestPrint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Print(&buf, fmt.Errorf("run: %w", New("A107")))
	if !strings.Contains(buf.String(), "ERROR A107: Atom is not writable") {
		t.Errorf("Print() = %q", buf.String())
	}

	buf.Reset()
	Print(&buf, stderrors.New("plain"))
	if !strings.Contains(buf.String(), "ERROR: plain") {
		t.Errorf("Print() = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 30), 20)
	for _, line := range lines {
		if len(line) > 20 {
			t.Errorf("line %q longer than 20", line)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
}

func TestRegisteredCodes(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("no codes registered")
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("code %s has incomplete template %+v", code, tmpl)
		}
	}
}
