package filter

import (
	"regexp"
	"strings"
)

// Mode selects how word-list lines are interpreted. Modes are mutually
// exclusive; regex wins over wildcard wins over substring.
type Mode string

const (
	ModeSubstr   Mode = "substr"
	ModeWildcard Mode = "wildcard"
	ModeRegex    Mode = "regex"
)

// WordSource yields the current word-list lines. The list file is re-read on
// every match so edits (or /badadd) take effect without a restart.
type WordSource interface {
	Lines() ([]string, error)
}

type Service struct {
	words      WordSource
	mode       Mode
	ignoreCase bool
}

type Config struct {
	IgnoreCase bool
	Wildcard   bool
	Regex      bool
}

func NewService(words WordSource, cfg Config) *Service {
	mode := ModeSubstr
	if cfg.Wildcard {
		mode = ModeWildcard
	}
	if cfg.Regex {
		mode = ModeRegex
	}

	return &Service{
		words:      words,
		mode:       mode,
		ignoreCase: cfg.IgnoreCase,
	}
}

// Matches reports whether text hits any configured entry. An empty or
// unreadable word list disables the filter; a malformed regex line is
// skipped rather than failing the whole check.
func (s *Service) Matches(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	lines, err := s.words.Lines()
	if err != nil || len(lines) == 0 {
		return false
	}

	for _, line := range lines {
		if s.lineMatches(line, text) {
			return true
		}
	}
	return false
}

func (s *Service) lineMatches(line, text string) bool {
	switch s.mode {
	case ModeRegex:
		return s.patternMatches(line, text)
	case ModeWildcard:
		escaped := regexp.QuoteMeta(line)
		escaped = strings.ReplaceAll(escaped, `\*`, `.*`)
		escaped = strings.ReplaceAll(escaped, `\?`, `.`)
		return s.patternMatches(escaped, text)
	default:
		if s.ignoreCase {
			return strings.Contains(strings.ToLower(text), strings.ToLower(line))
		}
		return strings.Contains(text, line)
	}
}

func (s *Service) patternMatches(pattern, text string) bool {
	if s.ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
