package body

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/simplenotezy/email-timeline-and-llm-analysis/model"
)

func textPart(mediaType, data string) model.ContentPart {
	return model.ContentPart{MediaType: mediaType, Charset: "utf-8", Data: []byte(data)}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		parts     []model.ContentPart
		wantText  string
		wantMedia string
	}{
		{
			name: "plain preferred over html",
			parts: []model.ContentPart{{
				MediaType: "multipart/alternative",
				Parts: []model.ContentPart{
					textPart("text/plain", "Plain body\r\n"),
					textPart("text/html", "<p>HTML body</p>"),
				},
			}},
			wantText:  "Plain body",
			wantMedia: "text/plain",
		},
		{
			name:      "html only",
			parts:     []model.ContentPart{textPart("text/html", "<p>Filed <b>motion</b> today.</p>")},
			wantText:  "Filed motion today.",
			wantMedia: "text/html",
		},
		{
			name: "blank plain falls back to html",
			parts: []model.ContentPart{{
				MediaType: "multipart/alternative",
				Parts: []model.ContentPart{
					textPart("text/plain", " \n\t "),
					textPart("text/html", "<div>Real content</div>"),
				},
			}},
			wantText:  "Real content",
			wantMedia: "text/html",
		},
		{
			name: "multiple plain parts joined with blank line",
			parts: []model.ContentPart{{
				MediaType: "multipart/mixed",
				Parts: []model.ContentPart{
					textPart("text/plain", "First part\n"),
					textPart("text/plain", "Second part"),
				},
			}},
			wantText:  "First part\n\nSecond part",
			wantMedia: "text/plain",
		},
		{
			name: "text attachment is not body",
			parts: []model.ContentPart{{
				MediaType: "multipart/mixed",
				Parts: []model.ContentPart{
					{MediaType: "text/plain", Filename: "notes.txt", Data: []byte("attached notes")},
					{MediaType: "application/pdf", Filename: "deed.pdf", AttachmentID: "a1"},
				},
			}},
			wantText:  "",
			wantMedia: "",
		},
		{
			name:      "no parts",
			parts:     nil,
			wantText:  "",
			wantMedia: "",
		},
		{
			name: "legacy charset decoded",
			parts: []model.ContentPart{
				{MediaType: "text/plain", Charset: "iso-8859-1", Data: []byte("Sm\xf8rrebr\xf8d")},
			},
			wantText:  "Smørrebrød",
			wantMedia: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.parts)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantMedia, got.MediaType)
			assert.Equal(t, tt.wantMedia != "", got.Found())
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		declared string
		want     string
	}{
		{name: "valid utf-8", data: []byte("Grüße"), declared: "utf-8", want: "Grüße"},
		{name: "valid utf-8 with wrong label", data: []byte("Grüße"), declared: "iso-8859-1", want: "Grüße"},
		{name: "latin1", data: []byte("caf\xe9 au lait"), declared: "ISO-8859-1", want: "café au lait"},
		{name: "invalid utf-8 falls back to windows-1252", data: []byte("caf\xe9 \x80"), declared: "utf-8", want: "café €"},
		{name: "unknown charset falls back to windows-1252", data: []byte("na\xefve"), declared: "x-unknown-charset", want: "naïve"},
		{name: "no charset", data: []byte("\x93quoted\x94"), declared: "", want: "“quoted”"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.data, tt.declared))
		})
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "inline markup",
			html: "<p>Filed <b>motion</b> today.</p>",
			want: "Filed motion today.",
		},
		{
			name: "line breaks and paragraphs",
			html: "<div>Hello<br>World</div><p>Next   paragraph\n spans</p>",
			want: "Hello\nWorld\n\nNext paragraph spans",
		},
		{
			name: "invisible content dropped",
			html: `<html><head><title>T</title><style>p{color:red}</style></head><body>` +
				`<script>alert(1)</script><span style="display: none">preheader</span>` +
				`<div hidden>secret</div><p>Visible</p></body></html>`,
			want: "Visible",
		},
		{
			name: "blockquote prefixed",
			html: "<p>Yes.</p><blockquote><p>Old text</p><p>More</p></blockquote>",
			want: "Yes.\n\n> Old text\n>\n> More",
		},
		{
			name: "entities decoded",
			html: "<p>Tom &amp; Jerry&nbsp;&lt;3</p>",
			want: "Tom & Jerry <3",
		},
		{
			name: "list items on their own lines",
			html: "<ul><li>one</li><li>two</li></ul>",
			want: "one\ntwo",
		},
		{
			name: "empty document",
			html: "<html><body>   </body></html>",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.html))
		})
	}
}
