// Package variables implements the session-scoped SET/UNSET variable store
// and the $name inlining pass that runs on raw SQL text before parsing.
package variables

import (
	"regexp"
	"strings"
	"sync"

	"fsnow/internal/fserr"
)

// refRe matches a $name reference, excluding the $$ escape (a literal
// dollar sign). Names are matched case-insensitively and normalised to
// upper-case keys in the store, mirroring the target dialect's unquoted
// identifier casing rule.
var refRe = regexp.MustCompile(`\$\$|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Store is a session-scoped name -> literal-SQL-text map. It is safe for
// concurrent use because a Cursor may inline variables while another
// goroutine inspects the Session for diagnostics.
type Store struct {
	mu   sync.RWMutex
	vals map[string]string
}

// New returns an empty variable store.
func New() *Store {
	return &Store{vals: map[string]string{}}
}

// Set stores name (upper-cased) with the given already-serialised literal
// SQL text, e.g. "'abc'" or "42".
func (s *Store) Set(name, literalSQL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[strings.ToUpper(name)] = literalSQL
}

// Unset removes name from the store. Unsetting a name that was never set
// is not an error, matching the target dialect's UNSET semantics.
func (s *Store) Unset(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vals, strings.ToUpper(name))
}

// Get returns the literal SQL text for name and whether it exists.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vals[strings.ToUpper(name)]
	return v, ok
}

// Inline substitutes every $name reference in raw with its stored literal
// text. $$ is an escape for a literal dollar sign and is left as a single
// '$' in the output. An unresolved $name raises a SqlCompilation-class
// error naming the variable, matching the target dialect's "session
// variable does not exist" diagnostic.
//
// Inlining runs on raw SQL text, before the statement is parsed, because
// the target dialect allows $var in lexical positions (e.g. table names,
// IDENTIFIER arguments) that a real SQL grammar would reject.
func (s *Store) Inline(raw string) (string, error) {
	var firstErr error
	out := refRe.ReplaceAllStringFunc(raw, func(m string) string {
		if m == "$$" {
			return "$"
		}
		name := strings.ToUpper(m[1:])
		s.mu.RLock()
		v, ok := s.vals[name]
		s.mu.RUnlock()
		if !ok {
			if firstErr == nil {
				firstErr = fserr.New(fserr.SQLCompilation, "session variable %q does not exist", name)
			}
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// IsModifier reports whether the statement text is a SET or UNSET
// statement, i.e. one that mutates the variable store rather than
// executing against the host engine.
func IsModifier(sql string) bool {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	return strings.HasPrefix(upper, "SET ") || strings.HasPrefix(upper, "UNSET ")
}

// setRe and unsetRe extract the operands of a SET/UNSET statement. Only
// the single-variable forms "SET x = expr" and "UNSET x" match; the
// multi-variable "SET (x, y) = (1, 2)" shorthand does not, so Apply
// returns false for it.
var setRe = regexp.MustCompile(`(?is)^SET\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.+?);?\s*$`)
var unsetRe = regexp.MustCompile(`(?is)^UNSET\s+([A-Za-z_][A-Za-z0-9_]*)\s*;?\s*$`)

// Apply parses a SET/UNSET statement's raw text and applies it to the
// store. It returns false if sql is not a recognised SET/UNSET form, in
// which case the caller should treat it as an ordinary statement.
func (s *Store) Apply(sql string) bool {
	trimmed := strings.TrimSpace(sql)
	if m := setRe.FindStringSubmatch(trimmed); m != nil {
		s.Set(m[1], strings.TrimSpace(m[2]))
		return true
	}
	if m := unsetRe.FindStringSubmatch(trimmed); m != nil {
		s.Unset(m[1])
		return true
	}
	return false
}
