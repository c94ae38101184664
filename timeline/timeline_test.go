package timeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/extract/extracttest"
	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

type mapLocator map[string][]model.AttachmentRef

func (m mapLocator) Attachments(msg model.MessageRecord) []model.AttachmentRef {
	return m[msg.ID]
}

var base = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func plain(text string) []model.ContentPart {
	return []model.ContentPart{{MediaType: "text/plain", Charset: "utf-8", Data: []byte(text)}}
}

func msg(id string, idx int, offset time.Duration, from, subject, text string) model.MessageRecord {
	return model.MessageRecord{
		ID:        id,
		ThreadID:  "t1",
		Index:     idx,
		Timestamp: base.Add(offset),
		Headers:   model.Headers{From: from, Subject: subject},
		Parts:     plain(text),
	}
}

func TestAssembleStripsQuotes(t *testing.T) {
	thread := model.ThreadRecord{
		ID: "t1",
		Messages: []model.MessageRecord{
			msg("a", 0, 0, "Alice <alice@example.com>", "Estate", "Hello, see attached. \n\n> On Mon, X wrote: old stuff"),
			msg("b", 1, time.Minute, "Bob <bob@example.com>", "Re: Estate", "> On Mon, X wrote: old stuff\n\nThanks!"),
		},
	}

	tl := New(Options{}).Assemble(thread)
	require.Len(t, tl.Messages, 2)
	assert.Equal(t, "Hello, see attached.", tl.Messages[0].Body)
	assert.Equal(t, "Thanks!", tl.Messages[1].Body)
	for _, m := range tl.Messages {
		assert.NotContains(t, m.Body, "old stuff")
	}
	assert.Equal(t, "alice@example.com", tl.Messages[0].Sender)
	assert.Equal(t, "Estate", tl.Subject)
	assert.Empty(t, tl.Messages[1].Subject)
	assert.Equal(t, base, tl.FirstTimestamp)
	assert.Equal(t, base.Add(time.Minute), tl.LastTimestamp)
	assert.Empty(t, tl.Warnings)
}

func TestAssembleOrdersByTimestamp(t *testing.T) {
	thread := model.ThreadRecord{
		ID: "t1",
		Messages: []model.MessageRecord{
			msg("late", 0, 2*time.Hour, "a@example.com", "", "third"),
			msg("tie-first", 1, time.Hour, "b@example.com", "", "first of tie"),
			msg("early", 2, 0, "c@example.com", "", "earliest"),
			msg("tie-second", 3, time.Hour, "d@example.com", "", "second of tie"),
		},
	}

	tl := New(Options{}).Assemble(thread)
	var ids []string
	for _, m := range tl.Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"early", "tie-first", "tie-second", "late"}, ids)
	assert.Equal(t, "late", thread.Messages[0].ID, "input must not be reordered")
}

func TestAssembleDeduplicates(t *testing.T) {
	thread := model.ThreadRecord{
		ID: "t1",
		Messages: []model.MessageRecord{
			msg("m1", 0, 0, "a@example.com", "Deed", "Please sign the deed."),
			msg("m2", 1, time.Minute, "b@example.com", "Deed", "Please sign the deed.  "),
			msg("m3", 2, 2*time.Minute, "c@example.com", "Deed", "Please sign the deed."),
			msg("m4", 3, 3*time.Minute, "d@example.com", "Deed", "Done."),
		},
	}
	thread.Messages[1].Parts = plain("\nPlease sign the deed.\n")

	tl := New(Options{}).Assemble(thread)
	require.Len(t, tl.Messages, 4)

	first := tl.Messages[0]
	assert.Equal(t, "Please sign the deed.", first.Body)
	assert.Equal(t, []string{"m2", "m3"}, first.Duplicates)

	for _, dup := range tl.Messages[1:3] {
		assert.Empty(t, dup.Body)
		assert.Equal(t, "m1", dup.DuplicateOf)
		assert.NotEmpty(t, dup.Sender)
		assert.False(t, dup.Timestamp.IsZero())
	}
	assert.Equal(t, "Done.", tl.Messages[3].Body)
	assert.Empty(t, tl.Messages[3].DuplicateOf)
}

func TestDeduplicateIgnoresEmptyBodies(t *testing.T) {
	msgs := []model.CleanedMessage{{ID: "a"}, {ID: "b", Body: "  "}, {ID: "c"}}
	Deduplicate(msgs)
	for _, m := range msgs {
		assert.Empty(t, m.DuplicateOf)
		assert.Empty(t, m.Duplicates)
	}
}

func TestAssembleWarnings(t *testing.T) {
	scan := extracttest.PDF("", "")
	deed := extracttest.PDF("Deed of estate")
	thread := model.ThreadRecord{
		ID: "t1",
		Messages: []model.MessageRecord{
			{ID: "m1", ThreadID: "t1", Timestamp: base, Headers: model.Headers{From: "a@example.com"}},
			msg("m2", 1, time.Minute, "b@example.com", "", "> quoted only"),
			msg("m3", 2, 2*time.Minute, "c@example.com", "", "See files."),
		},
	}
	locator := mapLocator{
		"m3": {
			{ThreadID: "t1", MessageID: "m3", Filename: "scan.pdf", MediaType: "application/pdf", Data: scan},
			{ThreadID: "t1", MessageID: "m3", Filename: "deed.pdf", MediaType: "application/pdf", Data: deed},
			{ThreadID: "t1", MessageID: "m3", Filename: "broken.pdf", MediaType: "application/pdf", Data: []byte("%PDF-1.4 junk")},
			{ThreadID: "t1", MessageID: "m3", Filename: "photo.jpg", MediaType: "image/jpeg", Data: []byte{0xff, 0xd8}},
		},
	}

	tl := New(Options{Locator: locator}).Assemble(thread)
	require.Len(t, tl.Messages, 3)

	assert.Empty(t, tl.Messages[0].Body)
	assert.Equal(t, "> quoted only", tl.Messages[1].Body)

	atts := tl.Messages[2].Attachments
	require.Len(t, atts, 4)
	assert.Equal(t, model.StatusEmptyScan, atts[0].Status)
	assert.Empty(t, atts[0].Text)
	assert.Equal(t, model.StatusExtracted, atts[1].Status)
	assert.Contains(t, atts[1].Text, "Deed of estate")
	assert.Equal(t, model.StatusFailed, atts[2].Status)
	assert.Equal(t, model.StatusSkipped, atts[3].Status)

	kinds := make(map[model.WarningKind]model.Warning)
	for _, w := range tl.Warnings {
		kinds[w.Kind] = w
	}
	assert.Contains(t, kinds, model.WarningNoBody)
	assert.Contains(t, kinds, model.WarningStripFallback)
	assert.Contains(t, kinds, model.WarningExtractionFailed)

	ocr, ok := kinds[model.WarningOCRRequired]
	require.True(t, ok)
	assert.Equal(t, "t1", ocr.ThreadID)
	assert.Equal(t, "m3", ocr.MessageID)
	assert.Equal(t, "scan.pdf", ocr.Filename)
	assert.Contains(t, ocr.Message(), "OCR required")
}

func TestAssembleHTMLBody(t *testing.T) {
	thread := model.ThreadRecord{
		ID: "t1",
		Messages: []model.MessageRecord{{
			ID:        "m1",
			Timestamp: base,
			Parts:     []model.ContentPart{{MediaType: "text/html", Data: []byte("<p>Filed <b>motion</b> today.</p>")}},
		}},
	}
	tl := New(Options{}).Assemble(thread)
	assert.Equal(t, "Filed motion today.", tl.Messages[0].Body)
}

func TestForwardRestore(t *testing.T) {
	forwarded := strings.Repeat("The estate inventory lists the house and the car. ", 10)
	text := "FYI\n\n---------- Forwarded message ---------\nFrom: Lawyer <law@example.com>\n\n" + forwarded
	thread := model.ThreadRecord{
		ID:       "t1",
		Messages: []model.MessageRecord{msg("m1", 0, 0, "a@example.com", "Fwd: Inventory", text)},
	}

	off := New(Options{}).Assemble(thread)
	assert.Equal(t, "FYI", off.Messages[0].Body)

	on := New(Options{ForwardRestore: true}).Assemble(thread)
	assert.Contains(t, on.Messages[0].Body, "estate inventory")
	assert.True(t, strings.HasPrefix(on.Messages[0].Body, "FYI"))
}

func TestThreadSubject(t *testing.T) {
	tests := []struct {
		name     string
		subjects []string
		want     string
	}{
		{name: "first non empty", subjects: []string{"", "Estate", "Other"}, want: "Estate"},
		{name: "reply replaced", subjects: []string{"Re: Estate", "Estate"}, want: "Estate"},
		{name: "reply kept when alone", subjects: []string{"SV: Estate"}, want: "SV: Estate"},
		{name: "none", subjects: []string{"", " "}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msgs []model.MessageRecord
			for _, s := range tt.subjects {
				msgs = append(msgs, model.MessageRecord{Headers: model.Headers{Subject: s}})
			}
			assert.Equal(t, tt.want, ThreadSubject(msgs))
		})
	}
}

func TestIsForward(t *testing.T) {
	assert.True(t, IsForward("Fwd: papers", ""))
	assert.True(t, IsForward("VS: papers", ""))
	assert.True(t, IsForward("", "---------- Forwarded message ----------"))
	assert.True(t, IsForward("", "Begin forwarded message:"))
	assert.False(t, IsForward("Re: papers", "thanks"))
	assert.False(t, IsForward("papers", "thanks"))
}

func TestAddresses(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Alice <alice@example.com>", want: "alice@example.com"},
		{in: "alice@example.com, \"Bob B\" <bob@example.com>", want: "alice@example.com, bob@example.com"},
		{in: "alice@example.com, Alice <ALICE@example.com>", want: "alice@example.com"},
		{in: "Broken <<x@y.dk> and z@w.se", want: "x@y.dk, z@w.se"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Addresses(tt.in))
		})
	}
}

func TestMergeOrder(t *testing.T) {
	threads := []model.ThreadTimeline{
		{ID: "c", FirstTimestamp: base.Add(time.Hour)},
		{ID: "b", FirstTimestamp: base},
		{ID: "a", FirstTimestamp: base},
	}
	tl := Merge(threads)

	var ids []string
	for _, th := range tl.Threads() {
		ids = append(ids, th.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	got, ok := tl.Thread("c")
	require.True(t, ok)
	assert.Equal(t, base.Add(time.Hour), got.FirstTimestamp)
	assert.Equal(t, "c", threads[0].ID)
}
