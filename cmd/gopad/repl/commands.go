package repl

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is a parsed command-line directive.
type Command struct {
	Name string
	Arg  string
}

// ParseCommand recognizes "/name arg" lines. Anything else is code.
func ParseCommand(line string) (Command, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) < 2 {
		return Command{}, false
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	return Command{Name: strings.ToLower(name), Arg: strings.TrimSpace(arg)}, true
}

// ParseLineRange parses "a-b" or "a" into an inclusive 1-based range.
func ParseLineRange(s string) (start, end int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, fmt.Errorf("expected a line range like 2-5")
	}
	a, b, found := strings.Cut(s, "-")
	start, err = strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, fmt.Errorf("bad start line %q", a)
	}
	end = start
	if found {
		end, err = strconv.Atoi(strings.TrimSpace(b))
		if err != nil {
			return 0, 0, fmt.Errorf("bad end line %q", b)
		}
	}
	if start < 1 || end < start {
		return 0, 0, fmt.Errorf("invalid range %d-%d", start, end)
	}
	return start, end, nil
}

// helpText is rendered with glamour.
const helpText = `# gopad

Type Go in the editor, or a single line in the command line below it.

| Key | Action |
|-----|--------|
| ctrl+r | run the editor buffer |
| enter | run the command line |
| tab | switch focus between editor and command line |
| ctrl+c | quit |

| Command | Action |
|---------|--------|
| /run | run the editor buffer |
| /runsel | run the current selection |
| /select a-b | select editor lines a through b |
| /format | gofmt the editor buffer |
| /tree | show or hide the structure preview |
| /reset | clear interpreter bindings |
| /clear | clear the transcript |
| /share | print a share link for the buffer |
| /open link | load a share link into the buffer |
| /example name | load a sample (%s) |
| /help | this help |
| /quit | quit |
`
