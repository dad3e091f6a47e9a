package render

import "strings"

// builder accumulates rendered lines and tracks open lists.
type builder struct {
	sb       strings.Builder
	indent   []int
	lastText bool
	assets   *assetSet
}

// block writes an element that needs no line break around it.
func (b *builder) block(s string) {
	b.sb.WriteString(s)
	b.lastText = false
}

// line writes a text line, separated from a preceding one by <br>.
func (b *builder) line(s string) {
	if b.lastText {
		b.sb.WriteString("<br>")
	}
	b.sb.WriteString(s)
	b.lastText = true
}

func (b *builder) item(indent int, s string) {
	switch {
	case len(b.indent) == 0 || indent > b.indent[len(b.indent)-1]:
		b.sb.WriteString("<ul>")
		b.indent = append(b.indent, indent)
	default:
		for len(b.indent) > 1 && indent < b.indent[len(b.indent)-1] {
			b.sb.WriteString("</li></ul>")
			b.indent = b.indent[:len(b.indent)-1]
		}
		b.sb.WriteString("</li>")
	}
	b.sb.WriteString("<li>" + s)
	b.lastText = false
}

func (b *builder) closeList() {
	for range b.indent {
		b.sb.WriteString("</li></ul>")
	}
	b.indent = b.indent[:0]
}

func (b *builder) String() string {
	return b.sb.String()
}

// assetSet keeps asset paths unique in first-seen order.
type assetSet struct {
	seen  map[string]struct{}
	order []string
}

func newAssetSet() *assetSet {
	return &assetSet{seen: make(map[string]struct{})}
}

func (a *assetSet) add(p string) {
	if _, ok := a.seen[p]; ok {
		return
	}
	a.seen[p] = struct{}{}
	a.order = append(a.order, p)
}

func (a *assetSet) list() []string {
	return a.order
}
