package sm2

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality is the user's self-assessed recall of a card, 0 to 5.
type Quality int

const (
	Blackout  Quality = 0 // no recall at all
	Wrong     Quality = 1 // wrong, the answer felt familiar once shown
	HardWrong Quality = 2 // wrong, but the answer seemed easy to recall
	Hard      Quality = 3 // correct with serious difficulty
	Good      Quality = 4 // correct after hesitation
	Perfect   Quality = 5
)

// PassThreshold is the lowest quality that counts as a successful review.
const PassThreshold = Hard

var qualityNames = [...]string{
	Blackout:  "blackout",
	Wrong:     "wrong",
	HardWrong: "hard-wrong",
	Hard:      "hard",
	Good:      "good",
	Perfect:   "perfect",
}

// Valid reports whether q is within [0, 5].
func (q Quality) Valid() bool {
	return q >= Blackout && q <= Perfect
}

// Passed reports whether q counts as a successful recall.
func (q Quality) Passed() bool {
	return q >= PassThreshold
}

func (q Quality) String() string {
	if !q.Valid() {
		return fmt.Sprintf("quality(%d)", int(q))
	}
	return qualityNames[q]
}

// ParseQuality accepts either the numeric grade or its name.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		q := Quality(n)
		if !q.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrInvalidQuality, n)
		}
		return q, nil
	}
	for i, name := range qualityNames {
		if name == s {
			return Quality(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
}
