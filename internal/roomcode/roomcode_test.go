package roomcode

import (
	"testing"

	"github.com/lox/rpsparty/internal/randutil"
)

func TestGenerate(t *testing.T) {
	code := Generate()

	if len(code) != Length {
		t.Errorf("expected %d characters, got %d", Length, len(code))
	}

	if err := Validate(code); err != nil {
		t.Errorf("generated code failed validation: %v", err)
	}
}

func TestGenerateWithRandSource(t *testing.T) {
	a := NewGenerator(randutil.New(99))
	b := NewGenerator(randutil.New(99))

	for i := 0; i < 20; i++ {
		ca, cb := a.Generate(), b.Generate()
		if ca != cb {
			t.Fatalf("generation %d diverged: %s vs %s", i, ca, cb)
		}
		if err := Validate(ca); err != nil {
			t.Errorf("code %s failed validation: %v", ca, err)
		}
	}
}

func TestGenerateCoversAlphabet(t *testing.T) {
	gen := NewGenerator(randutil.New(1))

	seen := make(map[byte]bool)
	for i := 0; i < 500; i++ {
		code := gen.Generate()
		for j := 0; j < len(code); j++ {
			seen[code[j]] = true
		}
	}

	// 2000 uniform draws over 26 letters should hit everything.
	if len(seen) != 26 {
		t.Errorf("expected all 26 letters across 500 codes, saw %d", len(seen))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"valid code", "ABCD", false},
		{"all same letter", "ZZZZ", false},
		{"too short", "ABC", true},
		{"too long", "ABCDE", true},
		{"empty", "", true},
		{"lowercase", "abcd", true},
		{"digits", "AB1D", true},
		{"punctuation", "AB-D", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
		})
	}
}
