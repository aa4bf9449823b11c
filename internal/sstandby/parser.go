// Package sstandby parses the PostgreSQL synchronous_standby_names GUC.
package sstandby

import "strings"

// isSeparator reports whether r terminates a token. Quotes are separators,
// not quote characters: a name containing a comma inside quotes is still
// split on the comma. This matches the upstream behavior bug-for-bug.
func isSeparator(r byte) bool {
	switch r {
	case ' ', ',', '(', ')', '"':
		return true
	default:
		return false
	}
}

// tokenize splits raw into the maximal non-separator runs, collapsing
// consecutive separators.
func tokenize(raw string) []string {
	var tokens []string
	start := -1
	for i := 0; i < len(raw); i++ {
		if isSeparator(raw[i]) {
			if start >= 0 {
				tokens = append(tokens, raw[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, raw[start:])
	}
	return tokens
}

// parseNumSync reads the leading decimal digits of tok. A non-numeric token
// yields 0.
func parseNumSync(tok string) int {
	n := 0
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// Parse parses the raw synchronous_standby_names value into the ordered
// sequence of application names considered synchronous under the priority
// ("FIRST") form. Pure and total: malformed or empty input yields an empty
// sequence, never an error.
//
// Recognized grammar (PostgreSQL 9.6+):
//
//	ANY num_sync ( name [, ...] )    -- quorum form, always returns []
//	FIRST num_sync ( name [, ...] )  -- priority form, explicit
//	num_sync ( name [, ...] )        -- priority form, FIRST implicit
//	name [, ...]                     -- exactly the first name
//	""                               -- empty
func Parse(raw string) []string {
	tokens := tokenize(raw)
	if len(tokens) == 0 {
		return nil
	}

	first := tokens[0]
	if strings.EqualFold(first, "any") {
		return nil
	}
	if strings.EqualFold(first, "first") {
		return takeFirstN(tokens[1:])
	}

	// "num_sync ( name [, ...] )" with FIRST implicit: upstream detects this
	// form by the presence of "(" anywhere in the remainder rather than
	// requiring it immediately after the count, so a stray paren elsewhere
	// in the input can trigger this branch unexpectedly. Preserved as-is
	// per spec; see Open Questions.
	if strings.Contains(raw, "(") {
		return takeFirstN(tokens)
	}

	// Bare "name [, ...]": take exactly the first name.
	return []string{first}
}

// takeFirstN interprets tokens as "num_sync name1 name2 ...": the first
// token is the count, the remainder are names.
func takeFirstN(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	n := parseNumSync(tokens[0])
	names := tokens[1:]
	if n > len(names) {
		n = len(names)
	}
	if n <= 0 {
		return nil
	}
	return append([]string(nil), names[:n]...)
}
