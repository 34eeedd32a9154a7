package bot

import "strings"

// parseTokens splits text of the form "[a] [b] ..." into its bracketed
// tokens. ok is false if any whitespace-separated field is not a single
// non-empty bracketed group without nested brackets.
func parseTokens(text string) (tokens []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, false
	}

	tokens = make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) < 3 || field[0] != '[' || field[len(field)-1] != ']' {
			return nil, false
		}
		inner := field[1 : len(field)-1]
		if strings.ContainsAny(inner, "[]") {
			return nil, false
		}
		tokens = append(tokens, inner)
	}

	return tokens, true
}

// isHelp matches the help command exactly. Case variants fall through to
// ordinary token handling.
func isHelp(text string) bool {
	return text == "[help]"
}
