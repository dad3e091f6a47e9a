package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"anki-sync/core/reconcile"
	"anki-sync/feature/render"

	"github.com/charmbracelet/huh"
)

const previewLength = 60

// Prompter asks the user through huh forms.
type Prompter struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// New creates a prompter. Accessible mode uses plain line prompts, which
// also work when in is not a terminal.
func New(in io.Reader, out io.Writer, accessible bool) *Prompter {
	return &Prompter{in: in, out: out, accessible: accessible}
}

func (p *Prompter) run(ctx context.Context, fields ...huh.Field) error {
	form := huh.NewForm(huh.NewGroup(fields...)).
		WithAccessible(p.accessible).
		WithInput(p.in).
		WithOutput(p.out)
	return form.RunWithContext(ctx)
}

// Select implements reconcile.Selector. Every candidate starts selected;
// aborting the form aborts the run.
func (p *Prompter) Select(ctx context.Context, c *reconcile.Candidates) (*reconcile.Candidates, error) {
	if c.Total() == 0 {
		return c, nil
	}
	opts := options(c)
	selected := make([]string, 0, len(opts))
	ms := huh.NewMultiSelect[string]().
		Title(fmt.Sprintf("Sync %d creates, %d updates, %d deletes?", len(c.Create), len(c.Update), len(c.Delete))).
		Description("Deselect anything that should be left alone.").
		Options(opts...).
		Value(&selected)
	if err := p.run(ctx, ms); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, nil
		}
		return nil, err
	}
	return apply(c, selected), nil
}

// Confirm implements reconcile.Confirmer.
func (p *Prompter) Confirm(ctx context.Context, message string) (bool, error) {
	ok := false
	confirm := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)
	if err := p.run(ctx, confirm); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

func optionKey(kind string, i int) string {
	return fmt.Sprintf("%s:%d", kind, i)
}

// options lists every candidate as a preselected option.
func options(c *reconcile.Candidates) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, c.Total())
	for i, note := range c.Create {
		opts = append(opts, huh.NewOption("+ "+preview(note), optionKey("create", i)).Selected(true))
	}
	for i, note := range c.Update {
		opts = append(opts, huh.NewOption("~ "+preview(note), optionKey("update", i)).Selected(true))
	}
	for i, id := range c.Delete {
		opts = append(opts, huh.NewOption(fmt.Sprintf("- note %d", id), optionKey("delete", i)).Selected(true))
	}
	return opts
}

// apply keeps the candidates whose option keys are in selected.
func apply(c *reconcile.Candidates, selected []string) *reconcile.Candidates {
	keep := make(map[string]struct{}, len(selected))
	for _, key := range selected {
		keep[key] = struct{}{}
	}
	has := func(kind string, i int) bool {
		_, ok := keep[optionKey(kind, i)]
		return ok
	}

	out := &reconcile.Candidates{}
	for i, note := range c.Create {
		if has("create", i) {
			out.Create = append(out.Create, note)
		}
	}
	for i, note := range c.Update {
		if has("update", i) {
			out.Update = append(out.Update, note)
		}
	}
	for i, id := range c.Delete {
		if has("delete", i) {
			out.Delete = append(out.Delete, id)
		}
	}
	return out
}

// preview is the note kind and the first line of its text.
func preview(note *reconcile.SourceNote) string {
	text := render.StripClozes(render.StripProperties(note.Content))
	line, _, _ := strings.Cut(text, "\n")
	if r := []rune(line); len(r) > previewLength {
		line = string(r[:previewLength]) + "…"
	}
	return fmt.Sprintf("[%s] %s", note.Type, line)
}
