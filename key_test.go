package diskcache

import (
	"regexp"
	"strings"
	"testing"
)

func TestValidKey(t *testing.T) {
	valid := []string{
		"a",
		"abc123",
		"a-b_c",
		"0",
		"______",
		strings.Repeat("a", maxKeyLen),
	}

	for _, k := range valid {
		if !validKey(k) {
			t.Errorf("validKey(%q) = false, want true", k)
		}
	}

	invalid := []string{
		"",
		"A",
		"has space",
		"has/slash",
		"has.dot",
		"héllo",
		strings.Repeat("a", maxKeyLen+1),
	}

	for _, k := range invalid {
		if validKey(k) {
			t.Errorf("validKey(%q) = true, want false", k)
		}
	}
}

// keyGrammar is the reference pattern validKey's hand-rolled byte scan
// must agree with on every input; used only as a fuzzing oracle.
var keyGrammar = regexp.MustCompile(`^[a-z0-9_-]{1,120}$`)

func FuzzValidateKey(f *testing.F) {
	for _, seed := range []string{
		"",
		"a",
		"abc123",
		"a-b_c",
		"A",
		"has space",
		"has/slash",
		"héllo",
		strings.Repeat("a", maxKeyLen),
		strings.Repeat("a", maxKeyLen+1),
		strings.Repeat("z", 500),
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, key string) {
		got := validKey(key)
		want := keyGrammar.MatchString(key)

		if got != want {
			t.Fatalf("validKey(%q) = %v, want %v (per %s)", key, got, want, keyGrammar.String())
		}
	})
}
