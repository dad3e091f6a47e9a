package render

import (
	"context"
	"fmt"
	"html"
	"path"
	"regexp"
	"strconv"
	"strings"

	"anki-sync/core/reconcile"
)

var (
	propertyLine = regexp.MustCompile(`^\s*[A-Za-z0-9_.-]+::(\s.*)?$`)
	orgDrawer    = regexp.MustCompile(`(?s):PROPERTIES:.*?:END:\n?`)
	clozeNumber  = regexp.MustCompile(`\{\{c(\d+)::`)
	clozeMacro   = regexp.MustCompile(`\{\{cloze\s+(.*?)\}\}`)
	clozeFull    = regexp.MustCompile(`\{\{c\d+::(.*?)\}\}`)

	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)(\{[^}]*\})?`)
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	orgLink    = regexp.MustCompile(`\[\[([^\]]+)\]\[([^\]]+)\]\]`)
	orgImage   = regexp.MustCompile(`\[\[([^\]]+\.(?i:png|jpe?g|gif|svg|webp|bmp))\]\]`)
	pageRef    = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	tagRef     = regexp.MustCompile(`(^|\s)#\[\[([^\]]+)\]\]|(^|\s)#([^\s#,.!?;:()\[\]{}"']+)`)
	codeSpan   = regexp.MustCompile("`([^`]+)`")
	mdBold     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdItalic   = regexp.MustCompile(`(^|[^*\w])[*_]([^*_\s][^*_]*?)[*_]($|[^*\w])`)
	highlight  = regexp.MustCompile(`\^\^(.+?)\^\^|==(.+?)==`)
	strike     = regexp.MustCompile(`~~(.+?)~~`)
	orgBold    = regexp.MustCompile(`(^|\s)\*([^*\s][^*]*?)\*($|\s)`)
	orgItalic  = regexp.MustCompile(`(^|\s)/([^/\s][^/]*?)/($|\s)`)
	heading    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	orgHeading = regexp.MustCompile(`^(\*{1,6})\s+(.*)$`)
	listItem   = regexp.MustCompile(`^(\s*)[-*+]\s+(.*)$`)
)

// Renderer implements reconcile.Renderer.
type Renderer struct{}

// New returns a renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render converts raw in the given format ("markdown" or "org") to HTML.
func (r *Renderer) Render(_ context.Context, raw, format string) (reconcile.Rendered, error) {
	org := strings.EqualFold(format, "org")
	text := StripProperties(raw)
	text = NumberClozeMacros(text)

	out := &builder{assets: newAssetSet()}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || (org && strings.HasPrefix(strings.ToUpper(trimmed), "#+BEGIN_SRC")) {
			end := "```"
			if org {
				end = "#+END_SRC"
			}
			var code []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(lines[i])), end); i++ {
				code = append(code, lines[i])
			}
			out.closeList()
			out.block("<pre><code>" + html.EscapeString(strings.Join(code, "\n")) + "</code></pre>")
			continue
		}

		if trimmed == "" {
			out.closeList()
			continue
		}

		if m := listItem.FindStringSubmatch(line); m != nil && !org {
			out.item(len(m[1]), inline(m[2], org, out.assets))
			continue
		}
		out.closeList()

		if m := heading.FindStringSubmatch(trimmed); m != nil && !org {
			out.block(fmt.Sprintf("<h%d>%s</h%d>", len(m[1]), inline(m[2], org, out.assets), len(m[1])))
			continue
		}
		if m := orgHeading.FindStringSubmatch(trimmed); m != nil && org {
			out.block(fmt.Sprintf("<h%d>%s</h%d>", len(m[1]), inline(m[2], org, out.assets), len(m[1])))
			continue
		}
		out.line(inline(trimmed, org, out.assets))
	}
	out.closeList()

	return reconcile.Rendered{HTML: out.String(), Assets: out.assets.list()}, nil
}

// StripProperties removes property lines and org property drawers.
func StripProperties(raw string) string {
	raw = orgDrawer.ReplaceAllString(raw, "")
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if propertyLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// NumberClozeMacros rewrites {{cloze text}} macros to {{cN::text}},
// numbering after the highest explicit cloze number.
func NumberClozeMacros(text string) string {
	next := 1
	for _, m := range clozeNumber.FindAllStringSubmatch(text, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}
	return clozeMacro.ReplaceAllStringFunc(text, func(s string) string {
		body := clozeMacro.FindStringSubmatch(s)[1]
		out := "{{c" + strconv.Itoa(next) + "::" + strings.TrimSpace(body) + "}}"
		next++
		return out
	})
}

// HasCloze reports whether text contains cloze markup.
func HasCloze(text string) bool {
	return clozeNumber.MatchString(text) || clozeMacro.MatchString(text)
}

// StripClozes replaces cloze markup with its answer text.
func StripClozes(text string) string {
	return clozeFull.ReplaceAllStringFunc(NumberClozeMacros(text), func(m string) string {
		answer, _, _ := strings.Cut(clozeFull.FindStringSubmatch(m)[1], "::")
		return answer
	})
}

// Tags returns the #tag and #[[tag]] references of text in order.
func Tags(text string) []string {
	var tags []string
	for _, m := range tagRef.FindAllStringSubmatch(StripProperties(text), -1) {
		if m[2] != "" {
			tags = append(tags, m[2])
		} else if m[4] != "" {
			tags = append(tags, m[4])
		}
	}
	return tags
}

func inline(s string, org bool, assets *assetSet) string {
	s = html.EscapeString(s)
	var codes []string
	s = codeSpan.ReplaceAllStringFunc(s, func(m string) string {
		codes = append(codes, "<code>"+codeSpan.FindStringSubmatch(m)[1]+"</code>")
		return "\x00" + strconv.Itoa(len(codes)-1) + "\x00"
	})

	if org {
		s = orgImage.ReplaceAllStringFunc(s, func(m string) string {
			return image(orgImage.FindStringSubmatch(m)[1], "", assets)
		})
		s = orgLink.ReplaceAllString(s, `<a href="$1">$2</a>`)
	}
	s = mdImage.ReplaceAllStringFunc(s, func(m string) string {
		sub := mdImage.FindStringSubmatch(m)
		return image(sub[2], sub[1], assets)
	})
	s = mdLink.ReplaceAllString(s, `<a href="$2">$1</a>`)
	s = tagRef.ReplaceAllString(s, `$1$3<span class="tag">#$2$4</span>`)
	s = pageRef.ReplaceAllString(s, `<span class="page-reference">$1</span>`)
	s = highlight.ReplaceAllString(s, `<mark>$1$2</mark>`)
	s = strike.ReplaceAllString(s, `<del>$1</del>`)
	if org {
		s = orgBold.ReplaceAllString(s, `$1<strong>$2</strong>$3`)
		s = orgItalic.ReplaceAllString(s, `$1<em>$2</em>$3`)
	} else {
		s = mdBold.ReplaceAllString(s, `<strong>$1</strong>`)
		s = mdItalic.ReplaceAllString(s, `$1<em>$2</em>$3`)
	}

	for i, code := range codes {
		s = strings.Replace(s, "\x00"+strconv.Itoa(i)+"\x00", code, 1)
	}
	return s
}

func image(src, alt string, assets *assetSet) string {
	raw := html.UnescapeString(src)
	if isLocal(raw) {
		assets.add(raw)
		src = html.EscapeString(path.Base(strings.ReplaceAll(raw, `\`, "/")))
	}
	return fmt.Sprintf(`<img src="%s" alt="%s">`, src, alt)
}

func isLocal(src string) bool {
	lower := strings.ToLower(src)
	for _, scheme := range []string{"http://", "https://", "data:", "file://"} {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}
