package splitter

import "strings"

type SplitterConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string // coarsest first; a character window is the final fallback
}

// Splitter breaks document text into overlapping chunks no longer than
// ChunkSize. It tries the coarsest separator first and descends to finer
// ones only for segments that are still too long, so chunks end on the
// largest structural boundary available.
type Splitter struct {
	config SplitterConfig
}

func NewWithConfig(config SplitterConfig) Splitter {
	if config.ChunkSize == 0 {
		config.ChunkSize = 512
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 100
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 4
	}
	if len(config.Separators) == 0 {
		config.Separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}
	}
	return Splitter{config: config}
}

func New() Splitter {
	return NewWithConfig(SplitterConfig{})
}

func (s Splitter) Split(text string) []string {
	return s.split(text, s.config.Separators)
}

func (s Splitter) split(text string, seps []string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= s.config.ChunkSize {
		return []string{text}
	}
	if len(seps) == 0 {
		return s.window(text)
	}

	parts := strings.SplitAfter(text, seps[0])
	if len(parts) <= 1 {
		return s.split(text, seps[1:])
	}

	var chunks []string
	var fitting []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) <= s.config.ChunkSize {
			fitting = append(fitting, part)
			continue
		}
		// This segment alone breaks the bound; merge what fits so far and
		// descend to the next finer boundary for the oversized segment.
		chunks = append(chunks, s.merge(fitting)...)
		fitting = nil
		chunks = append(chunks, s.split(part, seps[1:])...)
	}
	return append(chunks, s.merge(fitting)...)
}

// merge packs consecutive segments into chunks of at most ChunkSize,
// seeding each new chunk with the tail of the previous one so adjacent
// chunks share ChunkOverlap characters of context.
func (s Splitter) merge(parts []string) []string {
	var chunks []string
	var cur strings.Builder

	for _, part := range parts {
		if cur.Len() > 0 && cur.Len()+len(part) > s.config.ChunkSize {
			chunk := cur.String()
			chunks = append(chunks, chunk)
			cur.Reset()
			n := s.config.ChunkOverlap
			// A large next segment shrinks the carried tail rather than
			// dropping it, so adjacent chunks always share some context.
			if n+len(part) > s.config.ChunkSize {
				n = s.config.ChunkSize - len(part)
			}
			if n > 0 && len(chunk) > n {
				cur.WriteString(chunk[len(chunk)-n:])
			}
		}
		cur.WriteString(part)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// window slices text that has no usable boundaries into fixed-size chunks
// advancing by ChunkSize-ChunkOverlap each step.
func (s Splitter) window(text string) []string {
	stride := s.config.ChunkSize - s.config.ChunkOverlap
	var chunks []string
	for i := 0; i < len(text); i += stride {
		end := min(i+s.config.ChunkSize, len(text))
		chunks = append(chunks, text[i:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}
