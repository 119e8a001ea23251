package tag

import (
	"strings"

	"github.com/hupe1980/agentrelay/core"
)

// Result is one classified segment. An empty Channel means untagged text.
type Result struct {
	Content string
	Channel core.MessageType
}

// Parser is a single-use parse session. It is not safe for concurrent use.
type Parser struct {
	registry *Registry
	active   int // index of the open strategy, -1 outside any tag
	match    strings.Builder
	content  strings.Builder
	out      []Result
}

// Active returns the channel of the currently open tag, if any.
func (p *Parser) Active() core.MessageType {
	if p.active < 0 {
		return ""
	}
	return p.registry.strategies[p.active].Channel
}

// Feed consumes a chunk and returns the segments it completed, followed by
// the confirmed content of the chunk so output streams without waiting for a
// closing marker. Input that may still be part of a marker is held back.
func (p *Parser) Feed(chunk string) []Result {
	p.out = nil
	for i := 0; i < len(chunk); i++ {
		p.match.WriteByte(chunk[i])
		p.step()
	}
	p.flush(p.Active())
	return p.out
}

// Close ends the session and returns the residual input, including an
// unfinished marker, as a single segment in the active channel.
func (p *Parser) Close() []Result {
	p.out = nil
	p.content.WriteString(p.match.String())
	p.match.Reset()
	p.flush(p.Active())
	return p.out
}

// step evaluates the match buffer after one byte was added.
func (p *Parser) step() {
	m := p.match.String()
	if p.resolve(m) {
		return
	}
	// False start: demote the buffer but keep its longest suffix that can
	// still begin a marker.
	for i := 1; i < len(m); i++ {
		suffix := m[i:]
		if p.exact(suffix) || p.prefix(suffix) {
			p.content.WriteString(m[:i])
			p.match.Reset()
			p.match.WriteString(suffix)
			p.resolve(suffix)
			return
		}
	}
	p.content.WriteString(m)
	p.match.Reset()
}

// resolve applies an exact marker match or accepts a prefix. It reports
// false when m can no longer become a marker.
func (p *Parser) resolve(m string) bool {
	if p.active < 0 {
		if idx := p.registry.matchStart(m); idx >= 0 {
			p.flush("")
			p.active = idx
			p.match.Reset()
			return true
		}
		return p.registry.startPrefix(m)
	}
	end := p.registry.strategies[p.active].End
	if m == end {
		p.flush(p.registry.strategies[p.active].Channel)
		p.active = -1
		p.match.Reset()
		return true
	}
	return len(m) < len(end) && strings.HasPrefix(end, m)
}

func (p *Parser) exact(s string) bool {
	if p.active < 0 {
		return p.registry.matchStart(s) >= 0
	}
	return s == p.registry.strategies[p.active].End
}

func (p *Parser) prefix(s string) bool {
	if p.active < 0 {
		return p.registry.startPrefix(s)
	}
	end := p.registry.strategies[p.active].End
	return len(s) < len(end) && strings.HasPrefix(end, s)
}

func (p *Parser) flush(ch core.MessageType) {
	if p.content.Len() == 0 {
		return
	}
	p.out = append(p.out, Result{Content: p.content.String(), Channel: ch})
	p.content.Reset()
}

// Parse classifies a complete string in one session. Adjacent segments of
// the same channel are merged.
func (r *Registry) Parse(s string) []Result {
	p := r.NewParser()
	out := p.Feed(s)
	return coalesce(append(out, p.Close()...))
}

func coalesce(in []Result) []Result {
	var out []Result
	for _, r := range in {
		if n := len(out); n > 0 && out[n-1].Channel == r.Channel {
			out[n-1].Content += r.Content
			continue
		}
		out = append(out, r)
	}
	return out
}
