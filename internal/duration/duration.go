package duration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Duration is a rest or target interval in whole seconds.
type Duration int

const (
	minuteMark = '\''
	secondMark = '"'
)

// Max is the longest accepted duration, one day.
const Max Duration = 24 * 60 * 60

// ParseError reports a duration token that could not be parsed.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid duration %q: %s", e.Text, e.Reason)
}

// Parse reads tokens such as 1'20", 1', 30" and 90. A bare number is seconds.
// Digits following the minute mark without a closing second mark are seconds too.
func Parse(text string) (Duration, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, &ParseError{Text: text, Reason: "empty"}
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != minuteMark && r != secondMark {
			return 0, &ParseError{Text: text, Reason: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	if strings.Count(s, string(minuteMark)) > 1 || strings.Count(s, string(secondMark)) > 1 {
		return 0, &ParseError{Text: text, Reason: "repeated separator"}
	}

	var minutes, seconds int
	rest := s
	if i := strings.IndexRune(rest, minuteMark); i >= 0 {
		n, err := atoi(rest[:i])
		if err != nil {
			return 0, &ParseError{Text: text, Reason: numberReason(err, "missing minutes")}
		}
		minutes = n
		rest = rest[i+1:]
	}
	if rest != "" {
		if j := strings.IndexRune(rest, secondMark); j >= 0 {
			if j != len(rest)-1 {
				return 0, &ParseError{Text: text, Reason: "characters after seconds mark"}
			}
			rest = rest[:j]
		}
		n, err := atoi(rest)
		if err != nil {
			return 0, &ParseError{Text: text, Reason: numberReason(err, "missing seconds")}
		}
		seconds = n
	}

	// Bound each part before multiplying so large inputs cannot wrap.
	if minutes > int(Max)/60 || seconds > int(Max) || minutes*60+seconds > int(Max) {
		return 0, &ParseError{Text: text, Reason: fmt.Sprintf("value out of range (max %s)", Format(Max))}
	}
	return Duration(minutes*60 + seconds), nil
}

func numberReason(err error, fallback string) string {
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Sprintf("value out of range (max %s)", Format(Max))
	}
	return fallback
}

func atoi(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.Atoi(s)
}

// Format renders d as S" below one minute and M'SS" otherwise.
func Format(d Duration) string {
	if d < 60 {
		return fmt.Sprintf("%d%c", int(d), secondMark)
	}
	return fmt.Sprintf("%d%c%02d%c", int(d)/60, minuteMark, int(d)%60, secondMark)
}

func (d Duration) String() string {
	return Format(d)
}

// Seconds returns the duration as a plain second count.
func (d Duration) Seconds() int {
	return int(d)
}

// Normalize parses text and returns its canonical token.
func Normalize(text string) (string, error) {
	d, err := Parse(text)
	if err != nil {
		return "", err
	}
	return Format(d), nil
}
