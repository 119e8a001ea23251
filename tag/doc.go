// Package tag classifies an incrementally arriving text stream into typed
// segments using literal start/end markers.
//
// A Registry holds the ordered marker rules of an agent type. Each streamed
// model response gets its own Parser:
//
//	p := tag.DefaultRegistry().NewParser()
//	for chunk := range chunks {
//		for _, r := range p.Feed(chunk) {
//			emit(r.Channel, r.Content)
//		}
//	}
//	for _, r := range p.Close() {
//		emit(r.Channel, r.Content)
//	}
//
// Markers are removed from the output. Text outside any marker pair has an
// empty Channel. The parser keeps at most one marker's worth of pending input
// and never re-scans emitted text.
package tag
