package help

// Category groups commands in help output.
type Category string

const (
	CategoryPayload Category = "payload"
	CategoryNeurons Category = "neurons"
	CategoryGeneral Category = "general"
)

// CategoryOrder is the order categories appear in help output.
var CategoryOrder = []Category{
	CategoryPayload,
	CategoryNeurons,
	CategoryGeneral,
}

var categoryNames = map[Category]string{
	CategoryPayload: "Payload",
	CategoryNeurons: "Neurons & Values",
	CategoryGeneral: "General",
}

// DisplayName returns the human-readable category name.
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// Command is the help metadata of one shell command.
type Command struct {
	// Name includes the leading slash, e.g. "/value".
	Name     string
	Shortcut string
	Category Category

	Description string
	Usage       string
	Examples    []Example
}

// Example is a sample invocation with what it does.
type Example struct {
	Command     string
	Description string
}

// Commands lists every shell command.
var Commands = []Command{
	{
		Name:        "/info",
		Category:    CategoryPayload,
		Description: "Show payload dimensions and ranking",
		Usage:       "/info",
	},
	{
		Name:        "/values",
		Category:    CategoryPayload,
		Description: "List stored values with scope, type and shape",
		Usage:       "/values",
	},
	{
		Name:        "/template",
		Category:    CategoryPayload,
		Description: "Print the neuron template source",
		Usage:       "/template",
	},
	{
		Name:        "/value",
		Category:    CategoryNeurons,
		Description: "Show a value, or its slice for one neuron",
		Usage:       "/value <name> [layer neuron]",
		Examples: []Example{
			{Command: "/value moves", Description: "Whole value"},
			{Command: "/value activations 3 117", Description: "Slice for layer 3, neuron 117"},
		},
	},
	{
		Name:        "/top",
		Category:    CategoryNeurons,
		Description: "List the first k neurons of a layer in rank order",
		Usage:       "/top <layer> [k]",
		Examples: []Example{
			{Command: "/top 0", Description: "First 10 neurons of layer 0"},
			{Command: "/top 5 3", Description: "First 3 neurons of layer 5"},
		},
	},
	{
		Name:        "/render",
		Category:    CategoryNeurons,
		Description: "Render the neuron template as text",
		Usage:       "/render <layer> <neuron>",
		Examples: []Example{
			{Command: "/render 2 40", Description: "Layer 2, neuron 40"},
		},
	},
	{
		Name:        "/help",
		Shortcut:    "/h",
		Category:    CategoryGeneral,
		Description: "Show help for all commands or one",
		Usage:       "/help [command]",
		Examples: []Example{
			{Command: "/help top", Description: "Detailed /top help"},
		},
	},
	{
		Name:        "/quit",
		Shortcut:    "/q",
		Category:    CategoryGeneral,
		Description: "Exit the explorer",
		Usage:       "/quit",
	},
}

// CommandsByCategory returns the commands in cat.
func CommandsByCategory(cat Category) []Command {
	var result []Command
	for _, cmd := range Commands {
		if cmd.Category == cat {
			result = append(result, cmd)
		}
	}
	return result
}

// GetCommand looks a command up by name or shortcut, with or without the
// leading slash.
func GetCommand(name string) (Command, bool) {
	if len(name) > 0 && name[0] != '/' {
		name = "/" + name
	}
	for _, cmd := range Commands {
		if cmd.Name == name || cmd.Shortcut == name {
			return cmd, true
		}
	}
	return Command{}, false
}

// Names returns every command name without its slash.
func Names() []string {
	names := make([]string, len(Commands))
	for i, cmd := range Commands {
		names[i] = cmd.Name[1:]
	}
	return names
}
