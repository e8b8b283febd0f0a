// Package viz renders runs in the terminal.
//
// Plots go through asciigraph; tables and panels are styled with lipgloss
// under a selectable [Theme]. The live console in package tui draws with the
// same styles.
package viz
