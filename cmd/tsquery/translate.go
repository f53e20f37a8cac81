// =============================================================================
// translate.go - REPL Input to ServerQuery Commands
// =============================================================================
//
// Users type commands the way they appear in the ServerQuery manual, but
// with plain text values instead of escaped ones:
//
//	clientlist -uid -away
//	sendtextmessage targetmode=2 target=1 msg="hello everyone"
//	clientkick clid=5 clid=6 reasonid=5 reasonmsg="go away"
//
// The first word is the command name. Words starting with "-" are options.
// Everything else must be key=value; double quotes group a value containing
// spaces, and a key repeated several times becomes a list parameter
// (clid=5|clid=6 on the wire). Escaping for the wire is done by the
// queryprotocol package.
//
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/tsquery/tsquery/queryprotocol"
)

var (
	// errUnterminatedQuote is returned when a double quote is not closed.
	errUnterminatedQuote = errors.New("unterminated quote")
)

// translateLine parses one line of user input into a command. It returns a
// nil command for blank input.
func translateLine(line string) (*queryprotocol.PendingCommand, error) {
	words, err := splitWords(line)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, nil
	}

	name := words[0]
	if strings.HasPrefix(name, queryprotocol.OptionPrefix) || strings.Contains(name, "=") {
		return nil, fmt.Errorf("expected a command name, got %q", name)
	}

	var options []string
	var params queryprotocol.Params
	index := make(map[string]int)

	for _, word := range words[1:] {
		if opt, ok := strings.CutPrefix(word, queryprotocol.OptionPrefix); ok && !strings.Contains(word, "=") {
			if opt == "" {
				return nil, fmt.Errorf("empty option in %q", line)
			}
			options = append(options, opt)
			continue
		}

		key, value, ok := strings.Cut(word, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", word)
		}
		if key == "" {
			return nil, fmt.Errorf("missing key in %q", word)
		}

		if i, seen := index[key]; seen {
			params[i].Values = append(params[i].Values, value)
			params[i].List = true
			continue
		}
		index[key] = len(params)
		params = append(params, queryprotocol.Param{Key: key, Values: []string{value}})
	}

	return queryprotocol.NewCommand(name,
		queryprotocol.WithOptions(options...),
		queryprotocol.WithParams(params...),
	), nil
}

// GO CONCEPT: strings.Builder
// ---------------------------
// Strings are immutable in Go, so building one with += copies it every
// time. strings.Builder keeps a growing byte buffer and only produces the
// final string when String() is called.
//
// Compare with Python: the idiom there is collecting pieces in a list and
// calling "".join(parts) once at the end.

// splitWords splits line on whitespace. Double quotes group characters into
// one word and are removed; inside quotes a backslash escapes the next
// character.
func splitWords(line string) ([]string, error) {
	var words []string
	var current strings.Builder
	inWord := false
	inQuotes := false
	escaped := false

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case inQuotes && r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
			inWord = true
		case !inQuotes && unicode.IsSpace(r):
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if inQuotes || escaped {
		return nil, errUnterminatedQuote
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}
