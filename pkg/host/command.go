package host

import (
	"fmt"
	"strings"
)

// Command is a parsed "send plugin <name> <action> [<data>]" line.
type Command struct {
	Plugin string
	Action string
	Data   string
}

// ParseCommand parses a host command. Data runs to the end of the line; one pair
// of surrounding single quotes is stripped and inner quotes are kept as-is.
func ParseCommand(line string) (Command, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "send plugin ")
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrBadCommand, truncate(line, 40))
	}

	name, rest, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	action, data, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	if name == "" || action == "" {
		return Command{}, fmt.Errorf("%w: missing plugin or action", ErrBadCommand)
	}
	if len(data) >= 2 && data[0] == '\'' && data[len(data)-1] == '\'' {
		data = data[1 : len(data)-1]
	}
	return Command{Plugin: name, Action: action, Data: data}, nil
}

// String formats the command back into its wire form.
func (c Command) String() string {
	return fmt.Sprintf("send plugin %s %s '%s'", c.Plugin, c.Action, c.Data)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
