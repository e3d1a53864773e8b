// Package viz renders derivation output in the terminal.
//
// Transcripts and verdicts are styled with lipgloss in one of the built-in
// themes. [RunBrowser] is a Bubble Tea program over stored runs.
//
// # Key Bindings
//
//	j/k   - Move through runs or scroll a pane
//	Enter - Open the selected run
//	Tab   - Cycle formulas, verdicts, transcript and snippet
//	Esc   - Back to the run list
//	q     - Quit
package viz
