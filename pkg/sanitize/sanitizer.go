package sanitize

import "strings"

const (
	defaultOpen  = "<think>"
	defaultClose = "</think>"

	// DefaultMaxPending caps how much text may be withheld while waiting
	// for a close marker before the buffer is force-flushed verbatim.
	DefaultMaxPending = 64 * 1024
)

type Config struct {
	Open       string
	Close      string
	MaxPending int // 0 selects DefaultMaxPending, negative disables the bound
}

// Sanitizer removes delimited hidden-reasoning spans from a stream of text
// deltas. It is stateful and strictly single-stream: create one per
// response and feed deltas in arrival order.
//
// After every Push the internal buffer holds only text that cannot be
// classified yet: either an open marker whose close has not arrived, or a
// trailing fragment that may turn out to be the start of an open marker.
// Everything else is returned immediately.
type Sanitizer struct {
	open  string
	close string

	buf        string
	inSpan     bool // buf begins with an unresolved open marker
	scanFrom   int  // next search position in buf; avoids rescanning
	maxPending int
}

func New() *Sanitizer {
	return NewWithConfig(Config{})
}

func NewWithConfig(config Config) *Sanitizer {
	if config.Open == "" {
		config.Open = defaultOpen
	}
	if config.Close == "" {
		config.Close = defaultClose
	}
	if config.MaxPending == 0 {
		config.MaxPending = DefaultMaxPending
	}
	return &Sanitizer{
		open:       config.Open,
		close:      config.Close,
		maxPending: config.MaxPending,
	}
}

// Push appends one delta and returns every byte that is now provably safe:
// all text outside complete open...close spans, in order, with the spans
// removed. Spans are resolved leftmost-first and do not nest. An empty
// return means nothing became safe, not that the stream ended.
func (s *Sanitizer) Push(delta string) string {
	s.buf += delta

	var out strings.Builder
	for {
		if s.inSpan {
			i := strings.Index(s.buf[s.scanFrom:], s.close)
			if i < 0 {
				// Close not seen yet. Remember how far we scanned so the
				// next delta is searched only from the overlap boundary.
				s.scanFrom = max(len(s.open), len(s.buf)-len(s.close)+1)
				break
			}
			s.buf = s.buf[s.scanFrom+i+len(s.close):]
			s.inSpan = false
			s.scanFrom = 0
			continue
		}

		i := strings.Index(s.buf[s.scanFrom:], s.open)
		if i >= 0 {
			at := s.scanFrom + i
			out.WriteString(s.buf[:at])
			s.buf = s.buf[at:]
			s.inSpan = true
			s.scanFrom = len(s.open)
			continue
		}

		// No open marker. Everything is safe except a trailing fragment
		// that could still grow into one.
		keep := trailingPrefixLen(s.buf, s.open)
		out.WriteString(s.buf[:len(s.buf)-keep])
		s.buf = s.buf[len(s.buf)-keep:]
		s.scanFrom = 0
		break
	}

	// A close marker may never arrive. Past the bound, give up waiting and
	// pass the withheld text through verbatim.
	if s.maxPending > 0 && len(s.buf) > s.maxPending {
		out.WriteString(s.buf)
		s.reset()
	}

	return out.String()
}

// Flush ends the stream and returns whatever is still withheld, verbatim.
// An open marker with no close therefore leaks its literal text into the
// output, matching how unterminated spans have always been handled here.
func (s *Sanitizer) Flush() string {
	rest := s.buf
	s.reset()
	return rest
}

func (s *Sanitizer) reset() {
	s.buf = ""
	s.inSpan = false
	s.scanFrom = 0
}

// trailingPrefixLen reports the length of the longest suffix of s that is
// a proper prefix of marker.
func trailingPrefixLen(s, marker string) int {
	limit := min(len(s), len(marker)-1)
	for k := limit; k > 0; k-- {
		if strings.HasSuffix(s, marker[:k]) {
			return k
		}
	}
	return 0
}
