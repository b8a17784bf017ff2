package parser

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expectedW     string
		expectedT     string
		expectedN     string
	}{
		{
			name:          "Simple word and translation",
			input:         "W: la manzana\nT: the apple",
			expectedCards: 1,
			expectedW:     "la manzana",
			expectedT:     "the apple",
		},
		{
			name:          "Word, translation and note",
			input:         "W: der Tisch\nT: the table\nN: masculine",
			expectedCards: 1,
			expectedW:     "der Tisch",
			expectedT:     "the table",
			expectedN:     "masculine",
		},
		{
			name: "Multiline note",
			input: `
W: ir
T: to go
N: irregular
voy, vas, va
`,
			expectedCards: 1,
			expectedW:     "ir",
			expectedT:     "to go",
			expectedN:     "irregular\nvoy, vas, va",
		},
		{
			name: "Two cards",
			input: `
W: uno
T: one

W: dos
T: two
`,
			expectedCards: 2,
		},
		{
			name: "Separator ends a card",
			input: `W: chien
T: dog
---
Some prose between cards is ignored.
---
W: chat
T: cat`,
			expectedCards: 2,
		},
		{
			name:          "No cards, just text",
			input:         "This is a file with no words.",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "W:Haus\nT:house",
			expectedCards: 1,
			expectedW:     "Haus",
			expectedT:     "house",
		},
		{
			name:          "Trailing blank lines are trimmed",
			input:         "W: sol\nT: sun\n\n\n",
			expectedCards: 1,
			expectedW:     "sol",
			expectedT:     "sun",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := strings.NewReader(tc.input)
			cards, err := Parse(r)
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(cards) != tc.expectedCards {
				t.Fatalf("Expected %d cards, but got %d", tc.expectedCards, len(cards))
			}

			if tc.expectedCards == 1 {
				card := cards[0]
				if card.Word != tc.expectedW {
					t.Errorf("Expected Word to be '%s', but got '%s'", tc.expectedW, card.Word)
				}
				if card.Translation != tc.expectedT {
					t.Errorf("Expected Translation to be '%s', but got '%s'", tc.expectedT, card.Translation)
				}
				if card.Note != tc.expectedN {
					t.Errorf("Expected Note to be '%s', but got '%s'", tc.expectedN, card.Note)
				}
			}
		})
	}
}

func TestParseDefaults(t *testing.T) {
	cards, err := Parse(strings.NewReader("W: ciao\nT: hello"))
	if err != nil {
		t.Fatal(err)
	}
	card := cards[0]
	if card.Repetitions != 0 || card.Interval != 1 || card.EaseFactor != 2.5 {
		t.Errorf("Expected default schedule (0, 1, 2.5), got (%d, %d, %.1f)", card.Repetitions, card.Interval, card.EaseFactor)
	}
	if card.Reviewed() {
		t.Error("Expected a parsed card to be unreviewed")
	}
}

func TestParseIncompleteCards(t *testing.T) {
	input := `W: gut
T: good

W: schlecht
---
T: orphan translation
---
W: klein
T: small
`
	cards, err := Parse(strings.NewReader(input))
	if len(cards) != 2 {
		t.Fatalf("Expected 2 complete cards, got %d", len(cards))
	}
	if err == nil {
		t.Fatal("Expected an error describing the dropped cards")
	}

	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("Expected a *LineError, got %T", err)
	}
	if lineErr.Line != 4 {
		t.Errorf("Expected first problem on line 4, got %d", lineErr.Line)
	}
	if !strings.Contains(err.Error(), "line 6: card has no word") {
		t.Errorf("Expected the orphan translation to be reported, got %q", err.Error())
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colours.deck")
	if err := os.WriteFile(path, []byte("W: rojo\nT: red\nW: azul\nT: blue\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cards, err := ParseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 {
		t.Errorf("Expected 2 cards, got %d", len(cards))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.md")); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Expected ErrIncomplete for a missing file, got %v", err)
	}
}

func TestParseLongNote(t *testing.T) {
	note := strings.Repeat("x", 70000)
	cards, err := Parse(strings.NewReader("W: uno\nT: one\n\nW: dos\nT: two\nN: " + note + "\n"))
	if err != nil {
		t.Fatalf("Expected a long note to parse, got %v", err)
	}
	if len(cards) != 2 || cards[1].Note != note {
		t.Fatalf("Expected 2 cards with the long note kept, got %d", len(cards))
	}
}

func TestParseLineTooLong(t *testing.T) {
	input := "W: uno\nT: one\n\nW: dos\nT: two\nN: " + strings.Repeat("x", MaxLineSize+1) + "\nW: tres\nT: three\n"
	cards, err := Parse(strings.NewReader(input))
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Expected ErrIncomplete, got %v", err)
	}
	if len(cards) != 1 || cards[0].Word != "uno" {
		t.Errorf("Expected the card finished before the long line, got %+v", cards)
	}
}

func TestIsDeckFile(t *testing.T) {
	for name, want := range map[string]bool{
		"verbs.md":    true,
		"VERBS.MD":    true,
		"nouns.deck":  true,
		"notes.txt":   false,
		"deck":        false,
		"archive.md~": false,
	} {
		if got := IsDeckFile(name); got != want {
			t.Errorf("IsDeckFile(%q) = %v, want %v", name, got, want)
		}
	}
}
