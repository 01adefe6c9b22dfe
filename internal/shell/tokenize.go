package shell

import "strings"

// Tokenize splits a command line on spaces and tabs. A double quote toggles
// quoting and is dropped, so `echo "a b" f` yields [echo, a b, f]. Empty
// tokens, including an empty pair of quotes, are discarded. An unterminated
// quote runs to the end of the line.
func Tokenize(line string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quoted bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
		case (r == ' ' || r == '\t') && !quoted:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}
