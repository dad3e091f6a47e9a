// Package prompt is the terminal side of a sync run: candidate selection
// and confirmations with huh, and progress and summaries styled with
// lipgloss.
package prompt
