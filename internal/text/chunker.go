package text

import (
	"regexp"
	"strings"
)

// Segment is one chunk of document content ready for embedding.
type Segment struct {
	Content string
}

// Approximation used throughout: one token is about four characters.
const charsPerToken = 4

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_]*[[:space:]]*\\n(.*?)\\n[[:space:]]*```")
var headerRe = regexp.MustCompile(`(?m)^#{1,6}\s`)

// ChunkDocument splits uploaded document text into segments bounded by
// maxTokens, keeping fenced code blocks whole where they fit and
// carrying overlap tokens of trailing context between adjacent prose
// segments.
func ChunkDocument(content string, maxTokens, overlap int) []Segment {
	var segments []Segment

	lastIndex := 0
	for _, match := range fenceRe.FindAllStringIndex(content, -1) {
		if match[0] > lastIndex {
			segments = append(segments, chunkProse(content[lastIndex:match[0]], maxTokens, overlap)...)
		}

		block := content[match[0]:match[1]]
		if len(block)/charsPerToken <= maxTokens {
			segments = append(segments, Segment{Content: strings.TrimSpace(block)})
		} else {
			segments = append(segments, splitByLines(block, maxTokens)...)
		}
		lastIndex = match[1]
	}

	if lastIndex < len(content) {
		segments = append(segments, chunkProse(content[lastIndex:], maxTokens, overlap)...)
	}

	return segments
}

// chunkProse splits on headers first, then packs paragraphs greedily.
func chunkProse(prose string, maxTokens, overlap int) []Segment {
	prose = strings.TrimSpace(prose)
	if prose == "" {
		return nil
	}

	maxChars := maxTokens * charsPerToken
	overlapChars := overlap * charsPerToken

	var sections []string
	lastIdx := 0
	for _, loc := range headerRe.FindAllStringIndex(prose, -1) {
		if loc[0] > lastIdx {
			sections = append(sections, prose[lastIdx:loc[0]])
		}
		lastIdx = loc[0]
	}
	if lastIdx < len(prose) {
		sections = append(sections, prose[lastIdx:])
	}

	var segments []Segment
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if len(section) <= maxChars {
			segments = append(segments, Segment{Content: section})
			continue
		}

		var current strings.Builder
		tail := ""
		emit := func() {
			if current.Len() == 0 {
				return
			}
			chunk := current.String()
			segments = append(segments, Segment{Content: chunk})
			current.Reset()
			if overlapChars > 0 && len(chunk) > overlapChars {
				tail = chunk[len(chunk)-overlapChars:]
			} else {
				tail = ""
			}
		}

		for _, para := range strings.Split(section, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			if len(para) > maxChars {
				emit()
				tail = ""
				segments = append(segments, splitByLines(para, maxTokens)...)
				continue
			}
			if current.Len()+len(para)+2 > maxChars {
				emit()
			}
			if current.Len() == 0 && tail != "" {
				current.WriteString(tail)
				tail = ""
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(para)
		}
		if current.Len() > 0 {
			segments = append(segments, Segment{Content: current.String()})
		}
	}

	return segments
}

func splitByLines(block string, maxTokens int) []Segment {
	maxChars := maxTokens * charsPerToken

	var segments []Segment
	var current strings.Builder
	for _, line := range strings.Split(block, "\n") {
		if current.Len()+len(line)+1 > maxChars && current.Len() > 0 {
			segments = append(segments, Segment{Content: strings.TrimRight(current.String(), "\n")})
			current.Reset()
		}
		// A single pathological line is hard-cut.
		for len(line) > maxChars {
			segments = append(segments, Segment{Content: line[:maxChars]})
			line = line[maxChars:]
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		segments = append(segments, Segment{Content: strings.TrimRight(current.String(), "\n")})
	}
	return segments
}
