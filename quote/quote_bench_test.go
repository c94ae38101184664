package quote

import (
	"strings"
	"testing"
)

func replyChain(depth int) string {
	var b strings.Builder
	b.WriteString("Latest reply with the decision we need.\n\n")
	prefix := ""
	for i := 0; i < depth; i++ {
		prefix += "> "
		b.WriteString(prefix + "On Mon, Jan 2, 2006 at 3:04 PM Alice <alice@example.com> wrote:\n")
		b.WriteString(prefix + "Earlier message text that keeps getting quoted again and again.\n")
		b.WriteString(prefix + "\n")
	}
	b.WriteString("Sent from my iPhone\n")
	return b.String()
}

// BenchmarkTrimmer_Strip_ShortReply benchmarks a single-level reply
func BenchmarkTrimmer_Strip_ShortReply(b *testing.B) {
	trimmer := Default()
	body := replyChain(1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		trimmer.Strip(body)
	}
}

// BenchmarkTrimmer_Strip_DeepChain benchmarks a long quoted reply chain
func BenchmarkTrimmer_Strip_DeepChain(b *testing.B) {
	trimmer := Default()
	body := replyChain(40)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		trimmer.Strip(body)
	}
}

// BenchmarkNew benchmarks compiling every language table
func BenchmarkNew(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := New(Options{}); err != nil {
			b.Fatal(err)
		}
	}
}
