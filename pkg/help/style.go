package help

// Header returns text styled as a header (bold + cyan).
func Header(text string) string {
	return ColorBold + ColorCyan + text + ColorReset
}

// StyleCategory returns text styled as a category label (bold + green).
func StyleCategory(text string) string {
	return ColorBold + ColorGreen + text + ColorReset
}

// StyleCommand returns text styled as a command name (cyan).
func StyleCommand(text string) string {
	return ColorCyan + text + ColorReset
}

// Argument returns text styled as a command argument (yellow).
func Argument(text string) string {
	return ColorYellow + text + ColorReset
}

// Shortcut returns text styled as a keyboard shortcut or alias (bold + yellow).
func Shortcut(text string) string {
	return ColorBold + ColorYellow + text + ColorReset
}

// Dim returns text in a muted gray.
func Dim(text string) string {
	return ColorGray + text + ColorReset
}

// Bold returns text in bold.
func Bold(text string) string {
	return ColorBold + text + ColorReset
}

// HighlightUsage styles a command line: the command in cyan, the rest in
// yellow. "/value metric 0 3" -> cyan("/value") + yellow(" metric 0 3").
func HighlightUsage(line string) string {
	name, args, found := cutSpace(line)
	if name == "" {
		return ""
	}
	if !found || args == "" {
		return StyleCommand(name)
	}
	return StyleCommand(name) + Argument(" "+args)
}

func cutSpace(s string) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			rest := s[i+1:]
			for len(rest) > 0 && rest[0] == ' ' {
				rest = rest[1:]
			}
			return s[:i], rest, true
		}
	}
	return s, "", false
}

// WithShortcut formats a usage line with its alias: "/help (or /h)".
func WithShortcut(usage, shortcut string) string {
	if shortcut == "" {
		return HighlightUsage(usage)
	}
	return HighlightUsage(usage) + Dim(" (or ") + Shortcut(shortcut) + Dim(")")
}

// ExampleLine formats an example with its explanation.
func ExampleLine(cmd, desc string) string {
	return HighlightUsage(cmd) + Dim(" -> "+desc)
}
