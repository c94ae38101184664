package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

// Options captures the filtering configuration.
type Options struct {
	IncludeHeader []string
	ExcludeHeader []string
	IncludeLabel  []string
	ExcludeLabel  []string
}

// Filter decides which threads take part in a run. A thread matches when
// any of its messages matches a header pattern or the thread carries one of
// the listed labels.
type Filter struct {
	includeMode   bool
	excludeMode   bool
	includeHeader []*regexp.Regexp
	excludeHeader []*regexp.Regexp
	includeLabel  map[string]struct{}
	excludeLabel  map[string]struct{}
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeHeader, err := compilePatterns(opts.IncludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	excludeHeader, err := compilePatterns(opts.ExcludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	includeLabel := labelSet(opts.IncludeLabel)
	excludeLabel := labelSet(opts.ExcludeLabel)

	includeActive := len(includeHeader) > 0 || len(includeLabel) > 0
	excludeActive := len(excludeHeader) > 0 || len(excludeLabel) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	return &Filter{
		includeMode:   includeActive,
		excludeMode:   excludeActive,
		includeHeader: includeHeader,
		excludeHeader: excludeHeader,
		includeLabel:  includeLabel,
		excludeLabel:  excludeLabel,
	}, nil
}

// Active reports whether any pattern or label is configured.
func (f *Filter) Active() bool {
	return f != nil && (f.includeMode || f.excludeMode)
}

// Allows returns true if the thread passes the filter criteria.
func (f *Filter) Allows(thread model.ThreadRecord) bool {
	if !f.Active() {
		return true
	}

	if f.includeMode {
		return hasLabel(f.includeLabel, thread.Labels) || matchThread(f.includeHeader, thread)
	}

	if hasLabel(f.excludeLabel, thread.Labels) || matchThread(f.excludeHeader, thread) {
		return false
	}
	return true
}

// HeaderText renders the headers a pattern is matched against, one
// "Name: value" line each.
func HeaderText(h model.Headers) string {
	var b strings.Builder
	for _, kv := range [][2]string{
		{"From", h.From},
		{"To", h.To},
		{"Cc", h.Cc},
		{"Subject", h.Subject},
		{"Date", h.Date},
	} {
		if kv[1] == "" {
			continue
		}
		b.WriteString(kv[0])
		b.WriteString(": ")
		b.WriteString(kv[1])
		b.WriteByte('\n')
	}
	return b.String()
}

func matchThread(patterns []*regexp.Regexp, thread model.ThreadRecord) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, msg := range thread.Messages {
		if matchAny(patterns, HeaderText(msg.Headers)) {
			return true
		}
	}
	return false
}

func labelSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label != "" {
			set[label] = struct{}{}
		}
	}
	return set
}

func hasLabel(set map[string]struct{}, labels []string) bool {
	if len(set) == 0 {
		return false
	}
	for _, label := range labels {
		if _, ok := set[strings.ToLower(label)]; ok {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
