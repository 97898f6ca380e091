// Package section isolates the part of an HTML page that belongs to one
// heading anchor.
//
// The scan is a single forward pass of ordered substring searches over an
// ASCII-lowered copy of the page, so byte offsets in the copy are valid in the
// original and the work is linear in the page length.
package section

import (
	"fmt"
	"strings"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/models"
)

// Section is the slice of a page between a matched heading and the next
// heading of the same level.
type Section struct {
	Anchor string
	Tag    string // "h1" through "h6"
	Start  int    // byte offset of the matched heading tag
	End    int    // byte offset of the next same-level heading, or len(document)
	Text   string // document[Start:End], whitespace-trimmed
}

// NotFoundError reports that no heading carried the requested identifier.
type NotFoundError struct {
	Anchor string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("section with id %q not found", e.Anchor)
}

// Is lets errors.Is match NotFoundError against models.ErrSectionNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == models.ErrSectionNotFound
}

// Extract returns the section introduced by the first heading whose id equals
// anchorID (case-insensitive). The section runs up to the next opening tag of
// the same heading level, or to the end of the document when none follows.
func Extract(document, anchorID string) (Section, error) {
	lower := asciiLower(document)
	want := asciiLower(anchorID)

	pos := 0
	for {
		tag, ok := nextHeading(lower, pos, 0)
		if !ok {
			return Section{}, &NotFoundError{Anchor: anchorID}
		}
		if id, found := attrValue(lower[tag.nameEnd:tag.end], "id"); found && id == want {
			return build(document, lower, anchorID, tag), nil
		}
		pos = tag.end
	}
}

func build(document, lower, anchorID string, start headingTag) Section {
	end := len(document)
	if next, ok := nextHeading(lower, start.end, start.level); ok {
		end = next.start
	}
	return Section{
		Anchor: anchorID,
		Tag:    fmt.Sprintf("h%d", start.level),
		Start:  start.start,
		End:    end,
		Text:   strings.TrimSpace(document[start.start:end]),
	}
}

// headingTag locates an opening heading tag in the lowered document.
type headingTag struct {
	start   int // offset of '<'
	nameEnd int // offset just past "<hN"
	end     int // offset just past the closing '>'
	level   int
}

// nextHeading finds the first complete opening heading tag at or after pos,
// skipping anything inside <!-- --> comments. A level of 0 accepts any of
// h1-h6.
func nextHeading(lower string, pos, level int) (headingTag, bool) {
	comment := -2 // offset of the next "<!--" at or after pos; -1 when none remain
	for pos < len(lower) {
		i := strings.Index(lower[pos:], "<h")
		if i < 0 {
			return headingTag{}, false
		}
		start := pos + i

		if comment != -1 && comment < pos {
			if c := strings.Index(lower[pos:], "<!--"); c < 0 {
				comment = -1
			} else {
				comment = pos + c
			}
		}
		if comment >= 0 && comment < start {
			closeAt := strings.Index(lower[comment+4:], "-->")
			if closeAt < 0 {
				return headingTag{}, false
			}
			pos = comment + 4 + closeAt + 3
			continue
		}

		nameEnd := start + 3
		if nameEnd > len(lower) {
			return headingTag{}, false
		}
		pos = start + 2

		c := lower[start+2]
		if c < '1' || c > '6' {
			continue
		}
		n := int(c - '0')
		if level != 0 && n != level {
			continue
		}
		if nameEnd < len(lower) && !isTagNameEnd(lower[nameEnd]) {
			continue
		}
		gt := tagEnd(lower, nameEnd)
		if gt < 0 {
			return headingTag{}, false
		}
		return headingTag{start: start, nameEnd: nameEnd, end: gt + 1, level: n}, true
	}
	return headingTag{}, false
}

// tagEnd returns the offset of the '>' closing the tag whose attributes start
// at i, ignoring any '>' inside quoted attribute values, or -1.
func tagEnd(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case '>':
			return i
		case '=':
			i++
			for i < len(s) && isSpace(s[i]) {
				i++
			}
			if i < len(s) && (s[i] == '"' || s[i] == '\'') {
				j := strings.IndexByte(s[i+1:], s[i])
				if j < 0 {
					return -1
				}
				i += j + 2
			}
			continue
		}
		i++
	}
	return -1
}

func isTagNameEnd(c byte) bool {
	return c == '>' || c == '/' || isSpace(c)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// attrValue returns the value of attribute name inside a tag body such as
// ` class="x" id='manhattan'>`. Values may be double-quoted, single-quoted or
// bare.
func attrValue(body, name string) (string, bool) {
	i := 0
	for i < len(body) {
		for i < len(body) && (isSpace(body[i]) || body[i] == '/') {
			i++
		}
		if i >= len(body) || body[i] == '>' {
			return "", false
		}

		keyStart := i
		for i < len(body) && !isSpace(body[i]) && body[i] != '=' && body[i] != '>' && body[i] != '/' {
			i++
		}
		key := body[keyStart:i]

		for i < len(body) && isSpace(body[i]) {
			i++
		}
		if i >= len(body) || body[i] != '=' {
			// Attribute without a value.
			if key == name {
				return "", true
			}
			continue
		}
		i++
		for i < len(body) && isSpace(body[i]) {
			i++
		}

		var value string
		if i < len(body) && (body[i] == '"' || body[i] == '\'') {
			quote := body[i]
			j := strings.IndexByte(body[i+1:], quote)
			if j < 0 {
				return "", false
			}
			value = body[i+1 : i+1+j]
			i += j + 2
		} else {
			valStart := i
			for i < len(body) && !isSpace(body[i]) && body[i] != '>' {
				i++
			}
			value = body[valStart:i]
		}

		if key == name {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

// asciiLower lowers A–Z only, keeping byte offsets identical to the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
