package hasher

import (
	"testing"
)

func TestHashDeterminism(t *testing.T) {
	inputs := []string{
		"file:///music/artist/song.flac",
		"file:///music/with spaces/song.mp3",
		"just a string",
		"ünïcödé",
	}

	for _, input := range inputs {
		first := Hash(input)
		for i := 0; i < 10; i++ {
			if got := Hash(input); got != first {
				t.Errorf("Hash(%q) not deterministic: %d != %d", input, got, first)
			}
		}
	}
}

func TestHashEmpty(t *testing.T) {
	if got := Hash(""); got != 0 {
		t.Errorf("Hash(\"\") = %d, want 0", got)
	}
	if got := FoldedHash(""); got != 0 {
		t.Errorf("FoldedHash(\"\") = %d, want 0", got)
	}
}

func TestHashDistinguishes(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{name: "Different paths", a: "file:///a.mp3", b: "file:///b.mp3"},
		{name: "Case difference", a: "Song", b: "song"},
		{name: "Trailing byte", a: "song", b: "song "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Hash(tt.a) == Hash(tt.b) {
				t.Errorf("Hash(%q) == Hash(%q), expected different values", tt.a, tt.b)
			}
		})
	}
}

func TestFoldedHashDiacritics(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
	}{
		{name: "Acute accent", a: "Beyoncé", b: "beyonce"},
		{name: "All caps", a: "BEYONCE", b: "beyonce"},
		{name: "Umlaut", a: "Motörhead", b: "motorhead"},
		{name: "Scandinavian o", a: "Mø", b: "mo"},
		{name: "Cedilla", a: "Françoise", b: "francoise"},
		{name: "Tilde", a: "Señor", b: "senor"},
		{name: "Mixed case plain", a: "The Artist", b: "the artist"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if FoldedHash(tt.a) != FoldedHash(tt.b) {
				t.Errorf("FoldedHash(%q) != FoldedHash(%q), expected equal", tt.a, tt.b)
			}
		})
	}
}

func TestFoldedHashDistinguishesArtists(t *testing.T) {
	if FoldedHash("Beyoncé") == FoldedHash("Rihanna") {
		t.Error("Different artists should not collide")
	}
}

func TestFoldTableCoversBothCases(t *testing.T) {
	// Uppercase and lowercase variants of the same letter must fold together.
	pairs := []struct {
		upper string
		lower string
	}{
		{upper: "É", lower: "é"},
		{upper: "Á", lower: "á"},
		{upper: "Ñ", lower: "ñ"},
		{upper: "Ü", lower: "ü"},
	}

	for _, p := range pairs {
		if FoldedHash(p.upper) != FoldedHash(p.lower) {
			t.Errorf("FoldedHash(%q) != FoldedHash(%q)", p.upper, p.lower)
		}
	}
}
