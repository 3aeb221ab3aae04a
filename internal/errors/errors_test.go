package errors

import (
	stderrors "errors"
	"fmt"
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
			name:    "setup error",
			code:    "DT001",
			wantMsg: "Cross-page selection requires a row identity function",
			wantCat: CategorySetup,
		},
		{
			name:    "storage error",
			code:    "DT010",
			wantMsg: "Preference read failed",
			wantCat: CategoryStorage,
		},
		{
			name:    "fetch error",
			code:    "DT021",
			wantMsg: "Loading child rows failed",
			wantCat: CategoryFetch,
		},
		{
			name:    "unknown error code",
			code:    "DT999",
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

func TestNewf(t *testing.T) {
	err := Newf(CategoryConfig, "backend %q not supported", "ftp")
	if err.Message != `backend "ftp" not supported` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != "" {
		t.Errorf("Code = %q, want empty", err.Code)
	}
	if err.Error() != `backend "ftp" not supported` {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestError_Error(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := New("DT010").WithSubject("users.visibility").Wrap(cause)

	want := "DT010: Preference read failed (users.visibility): connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestError_Wrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := New("DT020").Wrap(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("compose: %w", New("DT001"))

	if !stderrors.Is(err, New("DT001")) {
		t.Error("errors.Is should match by code")
	}
	if stderrors.Is(err, New("DT002")) {
		t.Error("errors.Is should not match a different code")
	}
	if !HasCode(err, "DT001") {
		t.Error("HasCode(DT001) = false, want true")
	}
	if HasCode(fmt.Errorf("plain"), "DT001") {
		t.Error("HasCode on a plain error = true, want false")
	}
}

func TestFromError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if FromError(nil, "DT011") != nil {
			t.Error("FromError(nil) should be nil")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		err := FromError(fmt.Errorf("disk full"), "DT011")
		if err.Code != "DT011" {
			t.Errorf("Code = %q, want DT011", err.Code)
		}
	})

	t.Run("already coded", func(t *testing.T) {
		orig := New("DT012")
		if got := FromError(fmt.Errorf("wrap: %w", orig), "DT011"); got != orig {
			t.Errorf("FromError should return the existing *Error, got %v", got)
		}
	})
}

func TestFormat(t *testing.T) {
	out := New("DT001").WithSuggestion("Set GetRowID").Format()

	for _, want := range []string{"ERROR DT001", "Positional ids", "Hint: Set GetRowID"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestGetAllCodes(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("no codes registered")
	}
	for _, code := range codes {
		if !strings.HasPrefix(code, "DT") {
			t.Errorf("code %q does not use the DT prefix", code)
		}
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Errorf("GetTemplate(%q) not found", code)
		}
		if tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("template %q is incomplete: %+v", code, tmpl)
		}
	}
}
