package cli

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// paint wraps s in color unless noColor is set
func paint(s, color string, noColor bool) string {
	if noColor || color == "" {
		return s
	}
	return color + s + colorReset
}
