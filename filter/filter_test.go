package filter

import (
	"testing"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

func thread(labels []string, subjects ...string) model.ThreadRecord {
	t := model.ThreadRecord{ID: "t1", Labels: labels}
	for _, subject := range subjects {
		t.Messages = append(t.Messages, model.MessageRecord{
			Headers: model.Headers{From: "sender@example.com", Subject: subject},
		})
	}
	return t
}

func TestFilter_Allows_IncludeMode(t *testing.T) {
	f, err := New(Options{IncludeHeader: []string{"Subject: Estate"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(thread(nil, "Lunch", "Estate settlement")) {
		t.Error("Expected thread to be allowed (second message matches)")
	}
	if f.Allows(thread(nil, "Lunch")) {
		t.Error("Expected thread to be filtered out (header doesn't match)")
	}
}

func TestFilter_Allows_ExcludeMode(t *testing.T) {
	f, err := New(Options{ExcludeHeader: []string{"newsletter"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !f.Allows(thread(nil, "Normal Message")) {
		t.Error("Expected thread to be allowed (no newsletter)")
	}
	if f.Allows(thread(nil, "Weekly newsletter")) {
		t.Error("Expected thread to be filtered out (contains newsletter)")
	}
}

func TestFilter_Labels(t *testing.T) {
	include, err := New(Options{IncludeLabel: []string{"case-estate"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !include.Allows(thread([]string{"INBOX", "Case-Estate"}, "Anything")) {
		t.Error("Expected thread with label to be allowed (labels match case-insensitively)")
	}
	if include.Allows(thread([]string{"INBOX"}, "Anything")) {
		t.Error("Expected thread without label to be filtered out")
	}

	exclude, err := New(Options{ExcludeLabel: []string{"SPAM"}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if exclude.Allows(thread([]string{"SPAM"}, "Anything")) {
		t.Error("Expected spam thread to be filtered out")
	}
}

func TestFilter_MutuallyExclusive(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "headers", opts: Options{IncludeHeader: []string{"test"}, ExcludeHeader: []string{"spam"}}},
		{name: "header and label", opts: Options{IncludeHeader: []string{"test"}, ExcludeLabel: []string{"SPAM"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("Expected error when both include and exclude are specified")
			}
		})
	}
}

func TestFilter_InvalidPattern(t *testing.T) {
	if _, err := New(Options{IncludeHeader: []string{"("}}); err == nil {
		t.Error("Expected error for invalid regex")
	}
}

func TestFilter_NoFilters(t *testing.T) {
	f, err := New(Options{IncludeHeader: []string{"  "}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if f.Active() {
		t.Error("Expected blank patterns to leave the filter inactive")
	}
	if !f.Allows(thread(nil, "Any Message")) {
		t.Error("Expected thread to be allowed when no filters are active")
	}

	var nilFilter *Filter
	if !nilFilter.Allows(thread(nil, "Any")) {
		t.Error("Expected nil filter to allow everything")
	}
}

func TestHeaderText(t *testing.T) {
	tests := []struct {
		name    string
		headers model.Headers
		want    string
	}{
		{
			name:    "all present",
			headers: model.Headers{From: "a@x", To: "b@x", Cc: "c@x", Subject: "Hi", Date: "Mon"},
			want:    "From: a@x\nTo: b@x\nCc: c@x\nSubject: Hi\nDate: Mon\n",
		},
		{
			name:    "empty values skipped",
			headers: model.Headers{From: "a@x", Subject: "Hi"},
			want:    "From: a@x\nSubject: Hi\n",
		},
		{
			name:    "nothing",
			headers: model.Headers{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeaderText(tt.headers); got != tt.want {
				t.Errorf("HeaderText() = %q, want %q", got, tt.want)
			}
		})
	}
}
