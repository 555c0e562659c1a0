package process

import (
	"errors"
	"strings"
)

// ErrUnclosedQuote is returned by ParseCommand for unbalanced quotes.
var ErrUnclosedQuote = errors.New("unclosed quote in command")

// ParseCommand splits a command line into argv. Single and double quotes
// group words and a backslash escapes the next character.
func ParseCommand(command string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inWord  bool
	)

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
			inWord = true
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
			inWord = true
		case quote == 0 && (r == ' ' || r == '\t'):
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if quote != 0 {
		return nil, ErrUnclosedQuote
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}

// ExpandArgs replaces {name} placeholders in every argument.
func ExpandArgs(args []string, vars map[string]string) []string {
	if len(vars) == 0 {
		return args
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}
