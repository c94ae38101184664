// Package quote reduces an email body to the text its author wrote for that
// message, dropping quoted history, attribution lines, forwarded copies and
// signatures.
package quote

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// maxHeaderLines is how many physical lines an attribution header may be
// wrapped over.
const maxHeaderLines = 3

var underscoreRule = regexp.MustCompile(`^_{20,}$`)

// Stripper reduces a resolved body to its authored content.
type Stripper interface {
	Strip(body string) string
}

type Options struct {
	// Languages restricts the locale phrasings in use. Empty means all.
	Languages []string
	// ExtraHeaders are additional full-line attribution patterns, matched
	// case-insensitively.
	ExtraHeaders []string
}

// Trimmer is a line-classifying Stripper.
type Trimmer struct {
	attribution []*regexp.Regexp
	delimiter   *regexp.Regexp
	mobile      *regexp.Regexp
	disclaimer  *regexp.Regexp
	fields      map[string]fieldKind
}

var _ Stripper = (*Trimmer)(nil)

// New builds a Trimmer for the given options.
func New(opts Options) (*Trimmer, error) {
	codes := opts.Languages
	if len(codes) == 0 {
		codes = Languages()
	}

	t := &Trimmer{fields: make(map[string]fieldKind)}
	var delimiters, mobile, disclaimers []string
	for _, code := range codes {
		code = strings.ToLower(strings.TrimSpace(code))
		lang, ok := languages[code]
		if !ok {
			return nil, fmt.Errorf("unsupported language %q", code)
		}
		for _, pattern := range lang.attribution {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("compile %s attribution %q: %w", code, pattern, err)
			}
			t.attribution = append(t.attribution, re)
		}
		for _, phrase := range append(append([]string(nil), lang.original...), lang.forwarded...) {
			delimiters = append(delimiters, regexp.QuoteMeta(phrase))
		}
		for kind, names := range lang.fields {
			for _, name := range names {
				t.fields[name] = kind
			}
		}
		mobile = append(mobile, lang.mobile...)
		for _, phrase := range lang.disclaimers {
			disclaimers = append(disclaimers, regexp.QuoteMeta(phrase))
		}
	}

	for _, pattern := range opts.ExtraHeaders {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile extra header %q: %w", pattern, err)
		}
		t.attribution = append(t.attribution, re)
	}

	t.delimiter = alternation(`^[-_=*\s]*(`, delimiters, `)[-_=*\s:]*$`)
	t.mobile = alternation(`^(`, mobile, `)\.?$`)
	t.disclaimer = alternation(`^(`, disclaimers, `)`)
	return t, nil
}

// Default returns a Trimmer covering every supported language.
func Default() *Trimmer {
	t, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return t
}

func alternation(prefix string, parts []string, suffix string) *regexp.Regexp {
	if len(parts) == 0 {
		return nil
	}
	// Longest first so a phrase never shadows a longer one sharing its prefix.
	sorted := append([]string(nil), parts...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return regexp.MustCompile("(?i)" + prefix + strings.Join(sorted, "|") + suffix)
}

// Strip returns the authored content of body. The result is a fixed point:
// stripping it again returns it unchanged.
func (t *Trimmer) Strip(body string) string {
	text := normalize(strings.Split(normalizeNewlines(body), "\n"))
	for {
		next := normalize(t.pass(strings.Split(text, "\n")))
		if next == text {
			return text
		}
		text = next
	}
}

func (t *Trimmer) pass(lines []string) []string {
	kept := make([]string, 0, len(lines))
	authored := false

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case trimmed == "":
			kept = append(kept, "")
			continue
		case isQuoted(trimmed):
			continue
		case t.cutsAt(lines, i):
			return kept
		}

		if span := t.attributionSpan(lines, i); span > 0 {
			next := nextNonBlank(lines, i+span)
			if authored && next >= 0 && !isQuoted(strings.TrimSpace(lines[next])) {
				return kept
			}
			i += span - 1
			continue
		}

		if t.mobile != nil && t.mobile.MatchString(trimmed) {
			continue
		}

		kept = append(kept, lines[i])
		authored = true
	}
	return kept
}

// cutsAt reports whether everything from line i onward is history or
// signature.
func (t *Trimmer) cutsAt(lines []string, i int) bool {
	trimmed := strings.TrimSpace(lines[i])
	switch {
	case trimmed == "--":
		return true
	case underscoreRule.MatchString(trimmed):
		return true
	case t.delimiter != nil && t.delimiter.MatchString(trimmed):
		return true
	case t.disclaimer != nil && t.disclaimer.MatchString(trimmed):
		return true
	}
	return t.headerBlockAt(lines, i)
}

// headerBlockAt detects an Outlook style header block: a From or Sent field
// directly followed by a field of another kind. Two fields only count when
// the From value holds an address or the Sent value holds a date, so
// authored lines like "From: Monday" / "To: Friday" survive.
func (t *Trimmer) headerBlockAt(lines []string, i int) bool {
	first := t.field(lines[i])
	if first != fieldFrom && first != fieldSent {
		return false
	}
	next := nextNonBlank(lines, i+1)
	if next < 0 || next > i+2 {
		return false
	}
	second := t.field(lines[next])
	if second == 0 || second == first {
		return false
	}
	if anchored(first, lines[i]) || anchored(second, lines[next]) {
		return true
	}
	third := nextNonBlank(lines, next+1)
	if third < 0 || third > next+2 {
		return false
	}
	kind := t.field(lines[third])
	return kind != 0 && kind != first && kind != second
}

// anchored reports whether a header line carries the value a real mail
// client writes: an address after From, a date after Sent.
func anchored(kind fieldKind, line string) bool {
	value := fieldValue(line)
	switch kind {
	case fieldFrom:
		return strings.Contains(value, "@")
	case fieldSent:
		return strings.ContainsAny(value, "0123456789")
	}
	return false
}

func fieldValue(line string) string {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(strings.Trim(line[idx+1:], "* \t"))
}

// field returns the kind of a "Name: value" header line, tolerating the
// asterisks plain-text renderings of bold labels leave behind.
func (t *Trimmer) field(line string) fieldKind {
	line = strings.TrimSpace(line)
	idx := strings.IndexByte(line, ':')
	if idx <= 0 || idx > 24 {
		return 0
	}
	name := strings.ToLower(strings.Trim(line[:idx], "* \t"))
	return t.fields[name]
}

// attributionSpan returns how many lines the attribution header starting at
// line i covers, or 0 when none starts there.
func (t *Trimmer) attributionSpan(lines []string, i int) int {
	parts := make([]string, 0, maxHeaderLines)
	for span := 1; span <= maxHeaderLines && i+span <= len(lines); span++ {
		line := strings.TrimSpace(lines[i+span-1])
		if line == "" || (span > 1 && isQuoted(line)) {
			return 0
		}
		parts = append(parts, line)
		if !t.isAttribution(strings.Join(parts, " ")) {
			continue
		}
		if span > 1 && t.isAttribution(line) {
			// The header starts on a later line.
			return 0
		}
		return span
	}
	return 0
}

func (t *Trimmer) isAttribution(line string) bool {
	if len(line) > 500 {
		return false
	}
	for _, re := range t.attribution {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func isQuoted(trimmed string) bool {
	return strings.HasPrefix(trimmed, ">")
}

func nextNonBlank(lines []string, from int) int {
	for j := from; j < len(lines); j++ {
		if strings.TrimSpace(lines[j]) != "" {
			return j
		}
	}
	return -1
}

// normalize trims trailing whitespace, keeps at most one blank line in a row
// and trims the result.
func normalize(lines []string) string {
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\u00a0")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Clean strips body with s. When nothing authored remains it returns the
// original body, normalized, and reports the fallback.
func Clean(s Stripper, body string) (string, bool) {
	original := normalize(strings.Split(normalizeNewlines(body), "\n"))
	if original == "" {
		return "", false
	}
	stripped := s.Strip(body)
	if stripped == "" {
		return original, true
	}
	return stripped, false
}
