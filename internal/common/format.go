package common

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Report widths for the console tools.
const (
	DefaultWidth = 80
	WideWidth    = 100

	// TimestampLayout is used for every timestamp printed by the console tools.
	TimestampLayout = "2006-01-02 15:04:05"
)

func rule(char string, width int) string {
	return strings.Repeat(char, width)
}

// PrintHeader opens a report with a bold title between two rules.
func PrintHeader(title string, width int) {
	fmt.Println()
	fmt.Println(rule("=", width))
	color.New(color.Bold).Println(title)
	fmt.Println(rule("=", width))
}

// PrintFooter closes a report with a summary line.
func PrintFooter(summary string, width int) {
	fmt.Println()
	fmt.Println(rule("=", width))
	fmt.Println(summary)
	fmt.Println(rule("=", width))
	fmt.Println()
}

// PrintBoxSeparator starts a sub-section inside a tree listing.
func PrintBoxSeparator(width int) {
	fmt.Println("├" + rule("─", width))
}

// BoxPrefix is the branch drawn before a list item.
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix indents a detail line under a list item.
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// ShortId trims long ids such as transaction uuids for console output.
func ShortId(id string) string {
	switch {
	case id == "":
		return "none"
	case len(id) > 8:
		return id[:8] + "..."
	default:
		return id
	}
}
