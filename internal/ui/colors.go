package ui

import "fmt"

// ANSI color and style constants for CLI output
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

func Bold(s string) string {
	return ColorBold + s + ColorReset
}

// Heading is a bold white section title.
func Heading(s string) string {
	return ColorBold + ColorWhite + s + ColorReset
}

func Dim(s string) string {
	return ColorDim + s + ColorReset
}

func Value(s string) string {
	return ColorWhite + s + ColorReset
}

func Success(s string) string {
	return ColorGreen + s + ColorReset
}

func Warn(s string) string {
	return ColorYellow + s + ColorReset
}

func Info(s string) string {
	return ColorDim + ColorYellow + s + ColorReset
}

func Error(s string) string {
	return ColorRed + s + ColorReset
}

// Field formats one "Label: value" summary line.
func Field(label string, value any) string {
	return fmt.Sprintf("  %s %s", Bold(label+":"), Value(fmt.Sprint(value)))
}
