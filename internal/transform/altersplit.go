package transform

import (
	"fmt"
	"regexp"
	"strings"
)

// alterAddRe matches "ALTER TABLE t ADD [COLUMN] <defs>", where <defs> may
// list more than one column definition separated by commas — a shape the
// host engine's ALTER TABLE does not accept in one statement.
var alterAddRe = regexp.MustCompile(`(?is)^\s*ALTER\s+TABLE\s+([A-Za-z0-9_."]+)\s+ADD\s+(?:COLUMN\s+)?(.+?)\s*;?\s*$`)

var ifNotExistsRe = regexp.MustCompile(`(?i)^\s*IF\s+NOT\s+EXISTS\s+`)

// splitAlterTableAdd expands a multi-column ALTER TABLE ADD into one ALTER
// per column, spec.md §4.3's "ALTER TABLE ADD multi-column" family. If any
// column in the list carried IF NOT EXISTS, every generated statement
// carries it, per spec.md's propagation rule. Returns ok=false when sql
// isn't a multi-column ALTER TABLE ADD (single-column ADDs and every other
// statement shape are left untouched).
func splitAlterTableAdd(sql string) (stmts []string, ok bool) {
	m := alterAddRe.FindStringSubmatch(sql)
	if m == nil {
		return nil, false
	}
	table, defs := m[1], m[2]
	cols := splitTopLevelCommas(defs)
	if len(cols) < 2 {
		return nil, false
	}

	propagateIfNotExists := false
	cleaned := make([]string, len(cols))
	for i, c := range cols {
		c = strings.TrimSpace(c)
		if ifNotExistsRe.MatchString(c) {
			propagateIfNotExists = true
			c = ifNotExistsRe.ReplaceAllString(c, "")
		}
		cleaned[i] = c
	}

	out := make([]string, len(cleaned))
	for i, c := range cleaned {
		if propagateIfNotExists {
			out[i] = fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", table, c)
		} else {
			out[i] = fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, c)
		}
	}
	return out, true
}

// splitTopLevelCommas splits s on commas that are not nested inside
// parentheses or quotes, so a column type like "NUMBER(10,2)" or a quoted
// default value isn't mistaken for two list entries.
func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
