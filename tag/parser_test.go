package tag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
)

func thinkRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(Strategy{Start: "<think>", End: "</think>", Channel: core.MessageThinking})
	require.NoError(t, err)
	return r
}

// feedEach streams s one byte at a time and merges adjacent results with the
// same channel.
func feedEach(p *Parser, s string) []Result {
	var out []Result
	for i := 0; i < len(s); i++ {
		out = append(out, p.Feed(s[i:i+1])...)
	}
	out = append(out, p.Close()...)
	return coalesce(out)
}

func concat(results []Result) string {
	var b strings.Builder
	for _, r := range results {
		b.WriteString(r.Content)
	}
	return b.String()
}

func TestParser_ThinkScenario(t *testing.T) {
	got := thinkRegistry(t).Parse("hello <think>world</think>!")

	assert.Equal(t, []Result{
		{Content: "hello ", Channel: ""},
		{Content: "world", Channel: core.MessageThinking},
		{Content: "!", Channel: ""},
	}, got)
}

func TestParser_ThinkScenarioStreamed(t *testing.T) {
	got := feedEach(thinkRegistry(t).NewParser(), "hello <think>world</think>!")

	assert.Equal(t, []Result{
		{Content: "hello ", Channel: ""},
		{Content: "world", Channel: core.MessageThinking},
		{Content: "!", Channel: ""},
	}, got)
}

func TestParser_UnmarkedTextIsVerbatim(t *testing.T) {
	inputs := []string{
		"plain text without any markers",
		"a < b and c > d",
		"<thin> almost <thinking",
		"line one\nline two <",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got := DefaultRegistry().Parse(in)
			require.Len(t, got, 1)
			assert.Equal(t, in, got[0].Content)
			assert.Empty(t, got[0].Channel)
		})
	}
}

func TestParser_RoundTrip(t *testing.T) {
	reg := DefaultRegistry()
	inputs := []string{
		"<think>plan</think>then <final_answer>42</final_answer>",
		"<report>body</report> trailing < text",
		"<<think>>nested</think>",
		"<tool_through>half",
		"a <think>b</think> c <report>d</report>",
	}
	strip := func(s string) string {
		for _, st := range reg.Strategies() {
			s = strings.ReplaceAll(s, st.Start, "")
			s = strings.ReplaceAll(s, st.End, "")
		}
		return s
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, strip(in), concat(reg.Parse(in)))
			assert.Equal(t, strip(in), concat(feedEach(reg.NewParser(), in)))
		})
	}
}

func TestParser_PrefixAmbiguity(t *testing.T) {
	reg := MustRegistry(
		Strategy{Start: "<A>", End: "</A>", Channel: core.MessageThinking},
		Strategy{Start: "<AB>", End: "</AB>", Channel: core.MessageReportResult},
	)

	p := reg.NewParser()
	for _, c := range "<AB>" {
		assert.Empty(t, p.Feed(string(c)))
	}
	assert.Equal(t, core.MessageReportResult, p.Active())

	got := feedEach(reg.NewParser(), "<AB>x</AB><A>y</A>")
	assert.Equal(t, []Result{
		{Content: "x", Channel: core.MessageReportResult},
		{Content: "y", Channel: core.MessageThinking},
	}, got)
}

func TestParser_ExactMatchWins(t *testing.T) {
	reg := MustRegistry(
		Strategy{Start: "<A", End: "A>", Channel: core.MessageThinking},
		Strategy{Start: "<AB>", End: "</AB>", Channel: core.MessageReportResult},
	)

	got := reg.Parse("<AB>")
	assert.Equal(t, []Result{{Content: "B>", Channel: core.MessageThinking}}, got)
}

func TestParser_FalseStartKeepsMarkerSuffix(t *testing.T) {
	reg := MustRegistry(Strategy{Start: "aab", End: "bba", Channel: core.MessageThinking})

	got := reg.Parse("xaaabyyybbba")
	assert.Equal(t, []Result{
		{Content: "xa", Channel: ""},
		{Content: "yyyb", Channel: core.MessageThinking},
	}, got)
}

func TestParser_DoubleOpeningBracket(t *testing.T) {
	got := thinkRegistry(t).Parse("<<think>x</think>")

	assert.Equal(t, []Result{
		{Content: "<", Channel: ""},
		{Content: "x", Channel: core.MessageThinking},
	}, got)
}

func TestParser_UnclosedTagSurfacesContent(t *testing.T) {
	p := thinkRegistry(t).NewParser()

	out := p.Feed("<think>still thinking")
	out = append(out, p.Close()...)

	assert.Equal(t, []Result{{Content: "still thinking", Channel: core.MessageThinking}}, out)
}

func TestParser_UnfinishedMarkerIsRawText(t *testing.T) {
	p := thinkRegistry(t).NewParser()

	out := p.Feed("done <thi")
	assert.Equal(t, []Result{{Content: "done ", Channel: ""}}, out)

	assert.Equal(t, []Result{{Content: "<thi", Channel: ""}}, p.Close())
}

func TestParser_StreamsBeforeClosingMarker(t *testing.T) {
	p := thinkRegistry(t).NewParser()

	assert.Empty(t, p.Feed("<think>"))
	assert.Equal(t, []Result{{Content: "par", Channel: core.MessageThinking}}, p.Feed("par"))
	assert.Equal(t, []Result{{Content: "tial", Channel: core.MessageThinking}}, p.Feed("tial</"))
	assert.Equal(t, []Result{{Content: "</x", Channel: core.MessageThinking}}, p.Feed("x"))
	assert.Empty(t, p.Feed("</think>"))
	assert.Equal(t, "", string(p.Active()))
	assert.Empty(t, p.Close())
}

func TestParser_EmptyInput(t *testing.T) {
	p := DefaultRegistry().NewParser()
	assert.Empty(t, p.Feed(""))
	assert.Empty(t, p.Close())
}

func TestParser_UnicodeContent(t *testing.T) {
	got := thinkRegistry(t).Parse("grüße <think>日本語</think> ✓")
	assert.Equal(t, []Result{
		{Content: "grüße ", Channel: ""},
		{Content: "日本語", Channel: core.MessageThinking},
		{Content: " ✓", Channel: ""},
	}, got)
}
