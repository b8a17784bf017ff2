package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/lexideck/internal/domain"
)

const (
	wordPrefix        = "W:"
	translationPrefix = "T:"
	notePrefix        = "N:"
	separator         = "---"
)

// MaxLineSize is the longest deck line the parser accepts.
const MaxLineSize = 1 << 20

// ErrIncomplete reports that a deck could not be read to the end, so the
// returned cards are only a prefix of its contents.
var ErrIncomplete = errors.New("deck not fully read")

// Extensions lists the file extensions recognised as decks.
var Extensions = []string{".md", ".deck"}

type state int

const (
	seeking state = iota
	readingWord
	readingTranslation
	readingNote
)

// LineError reports a card that was dropped while parsing.
type LineError struct {
	Line int
	Msg  string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// IsDeckFile reports whether name has one of the deck extensions.
func IsDeckFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseFile reads a file from the given path and extracts all cards.
func ParseFile(path string) ([]domain.MemoryCard, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncomplete, err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards. Incomplete cards are
// skipped and reported as *LineError values joined into the returned error;
// the well-formed cards are returned alongside it.
func Parse(r io.Reader) ([]domain.MemoryCard, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	var (
		cards        []domain.MemoryCard
		problems     []error
		currentCard  domain.MemoryCard
		currentBlock []string
		currentState = seeking
		cardLine     int
		lineNo       int
	)

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(currentBlock, "\n"), "\n ")
		switch currentState {
		case readingWord:
			currentCard.Word = content
		case readingTranslation:
			currentCard.Translation = content
		case readingNote:
			currentCard.Note = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentState != seeking {
			switch {
			case currentCard.Word == "":
				problems = append(problems, &LineError{Line: cardLine, Msg: "card has no word"})
			case currentCard.Translation == "":
				problems = append(problems, &LineError{Line: cardLine, Msg: fmt.Sprintf("card %q has no translation", currentCard.Word)})
			default:
				card := domain.NewMemoryCard(currentCard.Word, currentCard.Translation)
				card.Note = currentCard.Note
				cards = append(cards, card)
			}
		}
		currentCard = domain.MemoryCard{}
		currentState = seeking
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if strings.TrimSpace(line) == separator {
			finishCard()
			continue
		}

		prefix, next := "", seeking
		switch {
		case strings.HasPrefix(line, wordPrefix):
			prefix, next = wordPrefix, readingWord
		case strings.HasPrefix(line, translationPrefix):
			prefix, next = translationPrefix, readingTranslation
		case strings.HasPrefix(line, notePrefix):
			prefix, next = notePrefix, readingNote
		}

		if next == seeking {
			if currentState != seeking {
				currentBlock = append(currentBlock, line)
			}
			continue
		}

		if next == readingWord {
			// A new word always starts a new card.
			finishCard()
		} else {
			flushBlock()
		}
		if currentState == seeking {
			cardLine = lineNo
		}
		currentState = next
		currentBlock = append(currentBlock, strings.TrimPrefix(line[len(prefix):], " "))
	}

	if err := scanner.Err(); err != nil {
		// The card being read may be truncated; keep only finished ones.
		problems = append(problems, fmt.Errorf("%w after line %d: %w", ErrIncomplete, lineNo, err))
		return cards, errors.Join(problems...)
	}

	finishCard() // Finish the very last card in the file

	return cards, errors.Join(problems...)
}
