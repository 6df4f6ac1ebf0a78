package core

// placeholder.go performs substitution inside WordprocessingML parts.
//
// Word splits visible text across runs freely, so a placeholder typed as
// {{firstName}} may be stored as "{{first" in one <w:t> and "Name}}" in the
// next. Text nodes are therefore grouped by paragraph and matched on the
// joined, entity-decoded text. The replacement value is written into the node
// where the placeholder starts and the consumed characters are removed from
// the nodes that follow, which keeps the formatting of the first run.

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"sort"
	"strings"
)

var (
	textOpen     = []byte("<w:t")
	textClose    = []byte("</w:t>")
	paragraphEnd = []byte("</w:p>")
)

const lineBreak = `</w:t><w:br/><w:t xml:space="preserve">`

// PlaceholderSyntaxError reports a start delimiter with no matching end
// delimiter in the same paragraph.
type PlaceholderSyntaxError struct {
	Fragment string
}

func (e *PlaceholderSyntaxError) Error() string {
	return fmt.Sprintf("unclosed placeholder near %q", e.Fragment)
}

type textNode struct {
	start, end int // byte range of the whole <w:t> element
	text       string
}

type span struct {
	start, end int
	name       string
}

// substitute replaces every placeholder in part. Names that lookup cannot
// resolve are returned in order of appearance and render as empty text.
func substitute(part []byte, d Delimiters, lookup func(string) (string, bool)) ([]byte, []string, error) {
	type edit struct {
		start, end int
		repl       []byte
	}

	var (
		edits   []edit
		missing []string
	)
	for _, para := range scanParagraphs(part) {
		texts, miss, err := rewriteParagraph(para, d, lookup)
		if err != nil {
			return nil, nil, err
		}
		missing = append(missing, miss...)
		if texts == nil {
			continue
		}
		for k, n := range para {
			edits = append(edits, edit{start: n.start, end: n.end, repl: encodeTextNode(texts[k])})
		}
	}
	if len(edits) == 0 {
		return part, missing, nil
	}

	var out bytes.Buffer
	out.Grow(len(part))
	cursor := 0
	for _, e := range edits {
		out.Write(part[cursor:e.start])
		out.Write(e.repl)
		cursor = e.end
	}
	out.Write(part[cursor:])
	return out.Bytes(), missing, nil
}

// checkPlaceholders reports the first unclosed placeholder in part.
func checkPlaceholders(part []byte, d Delimiters) error {
	for _, para := range scanParagraphs(part) {
		text, _ := joinText(para)
		if _, err := findPlaceholders(text, d); err != nil {
			return err
		}
	}
	return nil
}

// rewriteParagraph returns the new text of each node, or nil texts when the
// paragraph holds no placeholder.
func rewriteParagraph(para []textNode, d Delimiters, lookup func(string) (string, bool)) ([]string, []string, error) {
	text, offs := joinText(para)
	spans, err := findPlaceholders(text, d)
	if err != nil || len(spans) == 0 {
		return nil, nil, err
	}

	out := make([]strings.Builder, len(para))
	copyRange := func(a, b int) {
		for k := range para {
			lo, hi := max(a, offs[k]), min(b, offs[k+1])
			if lo < hi {
				out[k].WriteString(text[lo:hi])
			}
		}
	}
	owner := func(p int) int {
		return sort.Search(len(para), func(i int) bool { return offs[i+1] > p })
	}

	var missing []string
	cursor := 0
	for _, sp := range spans {
		copyRange(cursor, sp.start)
		value, ok := lookup(sp.name)
		if !ok {
			missing = append(missing, sp.name)
		}
		out[owner(sp.start)].WriteString(value)
		cursor = sp.end
	}
	copyRange(cursor, len(text))

	texts := make([]string, len(para))
	for k := range out {
		texts[k] = out[k].String()
	}
	return texts, missing, nil
}

// joinText concatenates node text. offs[k] is where node k starts in the
// joined string; offs[len(para)] is its length.
func joinText(para []textNode) (string, []int) {
	var sb strings.Builder
	offs := make([]int, len(para)+1)
	for k, n := range para {
		offs[k] = sb.Len()
		sb.WriteString(n.text)
	}
	offs[len(para)] = sb.Len()
	return sb.String(), offs
}

// findPlaceholders locates Start name End sequences. An empty name is left
// as literal text, as is an end delimiter with no opening.
func findPlaceholders(text string, d Delimiters) ([]span, error) {
	var spans []span
	pos := 0
	for pos < len(text) {
		i := strings.Index(text[pos:], d.Start)
		if i < 0 {
			break
		}
		i += pos
		inner := i + len(d.Start)
		j := strings.Index(text[inner:], d.End)
		if j < 0 {
			return nil, &PlaceholderSyntaxError{Fragment: fragment(text[i:])}
		}
		j += inner
		pos = j + len(d.End)

		name := strings.TrimSpace(text[inner:j])
		if name == "" {
			continue
		}
		spans = append(spans, span{start: i, end: pos, name: name})
	}
	return spans, nil
}

func fragment(s string) string {
	const limit = 40
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return s
}

// scanParagraphs collects text nodes grouped by enclosing paragraph.
func scanParagraphs(part []byte) [][]textNode {
	var (
		paras [][]textNode
		cur   []textNode
	)
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, cur)
			cur = nil
		}
	}

	pos := 0
	for pos < len(part) {
		t := indexTextOpen(part, pos)
		p := bytes.Index(part[pos:], paragraphEnd)
		if p >= 0 {
			p += pos
		}
		if p >= 0 && (t < 0 || p < t) {
			flush()
			pos = p + len(paragraphEnd)
			continue
		}
		if t < 0 {
			break
		}
		node, next, ok := parseTextNode(part, t)
		if ok {
			cur = append(cur, node)
		}
		pos = next
	}
	flush()
	return paras
}

// indexTextOpen finds the next <w:t> or <w:t attr...> tag, skipping elements
// that merely share the prefix such as <w:tab/> and <w:tbl>.
func indexTextOpen(part []byte, from int) int {
	for from < len(part) {
		i := bytes.Index(part[from:], textOpen)
		if i < 0 {
			return -1
		}
		i += from
		k := i + len(textOpen)
		if k < len(part) {
			switch part[k] {
			case '>', ' ', '\t', '\n', '\r':
				return i
			}
		}
		from = k
	}
	return -1
}

func parseTextNode(part []byte, start int) (textNode, int, bool) {
	gt := bytes.IndexByte(part[start:], '>')
	if gt < 0 {
		return textNode{}, len(part), false
	}
	gt += start
	if part[gt-1] == '/' {
		return textNode{}, gt + 1, false
	}
	body := gt + 1
	end := bytes.Index(part[body:], textClose)
	if end < 0 {
		return textNode{}, len(part), false
	}
	end += body
	return textNode{
		start: start,
		end:   end + len(textClose),
		text:  html.UnescapeString(string(part[body:end])),
	}, end + len(textClose), true
}

// encodeTextNode renders text as a <w:t> element. Newlines become <w:br/>.
func encodeTextNode(text string) []byte {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var buf bytes.Buffer
	buf.WriteString(`<w:t xml:space="preserve">`)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			buf.WriteString(lineBreak)
		}
		xml.EscapeText(&buf, []byte(line))
	}
	buf.WriteString("</w:t>")
	return buf.Bytes()
}
