package console

// Escape sequences used to colorize the CI job output.
const (
	FgGreen    = "\x1b[1;32;5;197m"
	FgRed      = "\x1b[1;38;5;197m"
	FgYellow   = "\x1b[1;33;5;197m"
	FgMagenta  = "\x1b[1;35;5;197m"
	Reset      = "\x1b[0m"
	Underlined = "\x1b[3m"
	Bold       = "\x1b[1m"
	Dim        = "\x1b[2m"
)

// Escape is the erase-in-line prefix the CI viewer expects around section markers.
const Escape = "\x1b[0K"
