package similarity

import (
	"testing"
)

func TestTokenSetSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "identical",
			a:    "tower 2",
			b:    "tower 2",
			want: 1.0,
		},
		{
			name: "word order ignored",
			a:    "marina tower 2",
			b:    "2 tower marina",
			want: 1.0,
		},
		{
			name: "one side contained in the other",
			a:    "marina heights",
			b:    "marina heights tower",
			want: 1.0,
		},
		{
			name: "duplicate tokens collapse",
			a:    "tower a tower",
			b:    "tower a",
			want: 1.0,
		},
		{
			name: "either empty",
			a:    "",
			b:    "tower 2",
			want: 0.0,
		},
	}

	m := TokenSet{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Similarity(tt.a, tt.b); got != tt.want {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTokenSetNearMiss(t *testing.T) {
	m := TokenSet{}

	got := m.Similarity("marina heights", "marina hights")
	if got <= 0.9 || got >= 1.0 {
		t.Errorf("one-typo pair scored %v, want in (0.9, 1.0)", got)
	}

	unrelated := m.Similarity("marina heights", "palm gardens")
	if unrelated >= got {
		t.Errorf("unrelated pair scored %v, not below near-miss %v", unrelated, got)
	}
}

func TestJaroWinklerSimilarity(t *testing.T) {
	m := JaroWinkler{}
	if got := m.Similarity("tower 2", "tower 2"); got != 1.0 {
		t.Errorf("identical strings scored %v, want 1.0", got)
	}
	if got := m.Similarity("", "tower 2"); got != 0.0 {
		t.Errorf("empty string scored %v, want 0.0", got)
	}
	if got := m.Similarity("marina", "marine"); got <= 0.8 {
		t.Errorf("shared-prefix pair scored %v, want > 0.8", got)
	}
}

func TestForName(t *testing.T) {
	if _, err := ForName("token_set"); err != nil {
		t.Errorf("token_set: %v", err)
	}
	if _, err := ForName("jaro_winkler"); err != nil {
		t.Errorf("jaro_winkler: %v", err)
	}
	if _, err := ForName(""); err != nil {
		t.Errorf("default measure: %v", err)
	}
	if _, err := ForName("soundex"); err == nil {
		t.Error("unknown measure did not error")
	}
}
