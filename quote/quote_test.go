package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stripCases = []struct {
	name string
	body string
	want string
}{
	{
		name: "trailing quote",
		body: "Hello, see attached. \n\n> On Mon, X wrote: old stuff",
		want: "Hello, see attached.",
	},
	{
		name: "leading quote",
		body: "> On Mon, X wrote: old stuff\n\nThanks!",
		want: "Thanks!",
	},
	{
		name: "gmail attribution with quoted history",
		body: "Sounds good.\r\n\r\nOn Mon, Jan 2, 2006 at 3:04 PM Alice <alice@example.com> wrote:\r\n> Shall we meet?\r\n> Alice\r\n",
		want: "Sounds good.",
	},
	{
		name: "danish attribution wrapped over two lines",
		body: "Tak for det.\n\nDen man. 2. jan. 2006 kl. 15.04 skrev Alice Example <\nalice@example.com>:\n\n> Hej Bob",
		want: "Tak for det.",
	},
	{
		name: "top posted reply with unquoted history",
		body: "New text here.\nOn Mon, Jan 2, 2006 at 3:04 PM Alice <a@example.com> wrote:\nOld unquoted text.",
		want: "New text here.",
	},
	{
		name: "interleaved answers kept",
		body: "On Mon, Alice wrote:\n> Question one?\nAnswer one.\n> Question two?\nAnswer two.",
		want: "Answer one.\nAnswer two.",
	},
	{
		name: "outlook header block",
		body: "Agreed, please file it.\n\nFrom: Alice <alice@example.com>\nSent: Monday, January 2, 2006 3:04 PM\nTo: Bob\nSubject: Estate\n\nOld body",
		want: "Agreed, please file it.",
	},
	{
		name: "danish outlook header block with bold labels",
		body: "Vedhæftet.\n\n*Fra:* Advokat <adv@example.dk>\n*Sendt:* 2. januar 2006 15:04\n*Til:* Bob\n*Emne:* Dødsbo\n\nGammel tekst",
		want: "Vedhæftet.",
	},
	{
		name: "authored from and to lines kept",
		body: "Schedule:\nFrom: Monday\nTo: Friday\n\nThanks",
		want: "Schedule:\nFrom: Monday\nTo: Friday\n\nThanks",
	},
	{
		name: "header block without address needs a third field",
		body: "Ok\n\nFrom: Alice\nTo: Bob\nSubject: Estate\n\nOld body",
		want: "Ok",
	},
	{
		name: "original message delimiter",
		body: "Noted.\n\n-----Original Message-----\nFrom: Alice\nOld text",
		want: "Noted.",
	},
	{
		name: "forwarded banner",
		body: "FYI\n\n---------- Forwarded message ---------\nFrom: Court <court@example.com>\nHearing moved.",
		want: "FYI",
	},
	{
		name: "danish forward banner",
		body: "Se nedenfor\n\nStart på videresendt besked:\n\nFra: Retten",
		want: "Se nedenfor",
	},
	{
		name: "signature separator",
		body: "See you there.\n-- \nAlice Example\nPartner, Example Law",
		want: "See you there.",
	},
	{
		name: "mobile signatures",
		body: "Ok!\n\nSendt fra min iPhone",
		want: "Ok!",
	},
	{
		name: "get outlook line",
		body: "Will do\n\nGet Outlook for iOS",
		want: "Will do",
	},
	{
		name: "disclaimer",
		body: "Best regards\nAlice\n\nThis email is intended only for the named recipient and may contain privileged information.",
		want: "Best regards\nAlice",
	},
	{
		name: "outlook underscore rule",
		body: "Thanks\n________________________________\nFra: Alice\nSendt: 2. jan",
		want: "Thanks",
	},
	{
		name: "sentence starting with On is kept",
		body: "On Monday I will call the court.\nBob",
		want: "On Monday I will call the court.\nBob",
	},
	{
		name: "blank lines collapsed",
		body: "One\n\n\n\nTwo   \n",
		want: "One\n\nTwo",
	},
	{
		name: "entirely quoted",
		body: "> only quoted\n> text",
		want: "",
	},
}

func TestTrimmerStrip(t *testing.T) {
	trimmer := Default()
	for _, tt := range stripCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trimmer.Strip(tt.body))
		})
	}
}

func TestTrimmerStripIsIdempotent(t *testing.T) {
	trimmer := Default()
	for _, tt := range stripCases {
		t.Run(tt.name, func(t *testing.T) {
			once := trimmer.Strip(tt.body)
			assert.Equal(t, once, trimmer.Strip(once))
		})
	}
}

func TestTrimmerLanguages(t *testing.T) {
	body := "Tak.\n\nDen man. 2. jan. 2006 kl. 15.04 skrev Alice:\nGammel tekst"

	english, err := New(Options{Languages: []string{"en"}})
	require.NoError(t, err)
	assert.Equal(t, body, english.Strip(body))

	danish, err := New(Options{Languages: []string{"en", "DA"}})
	require.NoError(t, err)
	assert.Equal(t, "Tak.", danish.Strip(body))

	_, err = New(Options{Languages: []string{"tlh"}})
	assert.Error(t, err)
}

func TestTrimmerExtraHeaders(t *testing.T) {
	body := "Fine by me.\nQuoting Alice Example:\nold unquoted text"

	assert.Equal(t, body, Default().Strip(body))

	custom, err := New(Options{ExtraHeaders: []string{`^quoting .+:$`}})
	require.NoError(t, err)
	assert.Equal(t, "Fine by me.", custom.Strip(body))

	_, err = New(Options{ExtraHeaders: []string{"("}})
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		want         string
		wantFallback bool
	}{
		{name: "stripped", body: "Thanks!\n\n> old", want: "Thanks!", wantFallback: false},
		{name: "fallback to original", body: "> only quoted\r\n> text  ", want: "> only quoted\n> text", wantFallback: true},
		{name: "empty body is not a fallback", body: " \n ", want: "", wantFallback: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fellBack := Clean(Default(), tt.body)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFallback, fellBack)
		})
	}
}
