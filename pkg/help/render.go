package help

import "strings"

// Layout constants, tuned for 80-column terminals.
const (
	// usageColumnWidth fits the longest usage with shortcut.
	usageColumnWidth = 32

	indentCategory = "  "
	indentCommand  = "    "
	indentExample  = "      "
)

// RenderFull renders every category followed by the shortcuts section.
func (r *Renderer) RenderFull() {
	r.writeln("")
	r.writeln(Header(indentCategory + "TransformerScope Commands"))
	r.writeln("")

	for _, cat := range CategoryOrder {
		r.renderCategory(cat)
	}
	r.RenderShortcuts()
}

// RenderCommand renders the description, usage and examples of one
// command. It reports whether the command exists.
func (r *Renderer) RenderCommand(name string) bool {
	cmd, found := GetCommand(name)
	if !found {
		return false
	}

	r.writeln("")
	r.writeln(indentCategory + WithShortcut(cmd.Name, cmd.Shortcut))
	r.writeln(indentCategory + Dim(cmd.Description))
	r.writeln("")
	r.writeln(indentCategory + Bold("Usage:") + " " + HighlightUsage(cmd.Usage))
	r.writeln("")

	if len(cmd.Examples) > 0 {
		r.writeln(indentCategory + Bold("Examples:"))
		for _, ex := range cmd.Examples {
			r.writeln(indentCommand + ExampleLine(ex.Command, ex.Description))
		}
		r.writeln("")
	}
	return true
}

// RenderShortcuts renders aliases and key bindings.
func (r *Renderer) RenderShortcuts() {
	r.writeln(indentCategory + StyleCategory("Shortcuts & Tips"))
	r.writeln(indentCategory + Dim(BoxTeeLeft+strings.Repeat(BoxHorizontal, usageColumnWidth+20)))
	r.writeln(indentCommand + Dim(BoxVertical+" ") + Dim("Aliases: ") +
		Shortcut("/h") + Dim(" help  ") +
		Shortcut("/q") + Dim(" quit  ") +
		Shortcut("/exit") + Dim(" quit"))
	r.writeln(indentCommand + Dim(BoxVertical+" ") + Dim("Keys:    ") +
		Shortcut("Tab") + Dim(" complete commands and value names  ") +
		Shortcut("Ctrl+D") + Dim(" exit"))
	r.writeln("")
}

func (r *Renderer) renderCategory(cat Category) {
	commands := CommandsByCategory(cat)
	if len(commands) == 0 {
		return
	}

	r.writeln(indentCategory + StyleCategory(cat.DisplayName()))
	r.writeln(indentCategory + Dim(BoxTeeLeft+strings.Repeat(BoxHorizontal, usageColumnWidth+20)))
	for _, cmd := range commands {
		r.renderCommandLine(cmd)
	}
	r.writeln("")
}

// renderCommandLine writes "│ usage (or alias)   description" and the
// command's first example.
func (r *Renderer) renderCommandLine(cmd Command) {
	usage := PadRight(WithShortcut(cmd.Usage, cmd.Shortcut), usageColumnWidth)
	r.writeln(indentCommand + Dim(BoxVertical+" ") + usage + Dim(cmd.Description))

	if len(cmd.Examples) > 0 {
		r.writeln(indentExample + Dim(BoxVertical+"   e.g. ") + HighlightUsage(cmd.Examples[0].Command))
	}
}
