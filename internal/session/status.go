package session

import (
	"regexp"
	"strings"
)

// createRe and dropRe match the DDL shapes whose exact status strings
// spec.md §6.6 requires for non-data statements. Hard-coded per command keyword, since they are
// part of the observable contract rather than a derived message.
var createRe = regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?(TEMP(?:ORARY)?\s+)?(DATABASE|SCHEMA|TABLE|VIEW|STAGE|SEQUENCE)\s+(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9_."\$]+)`)
var dropRe = regexp.MustCompile(`(?is)^DROP\s+(DATABASE|SCHEMA|TABLE|VIEW|STAGE|SEQUENCE|USER)\s+(?:IF\s+EXISTS\s+)?([A-Za-z0-9_."\$]+)`)

var createNouns = map[string]string{
	"DATABASE": "Database",
	"SCHEMA":   "Schema",
	"TABLE":    "Table",
	"VIEW":     "View",
	"STAGE":    "Stage area",
	"SEQUENCE": "Sequence",
}

// ddlStatus derives the one-row status string for a successfully executed
// DDL/generic statement, or "" if sql does not match a templated shape (in
// which case the caller falls back to the generic "Statement executed
// successfully." message).
func ddlStatus(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if m := createRe.FindStringSubmatch(trimmed); m != nil {
		noun, ok := createNouns[strings.ToUpper(m[2])]
		if !ok {
			return ""
		}
		return noun + " " + m[3] + " successfully created."
	}
	if m := dropRe.FindStringSubmatch(trimmed); m != nil {
		return m[2] + " successfully dropped."
	}
	return ""
}

// StatementExecutedSuccessfully is the fallback status text for ALTER,
// TRUNCATE, and any other non-data statement without a more specific
// template (spec.md §6.6).
const StatementExecutedSuccessfully = "Statement executed successfully."

// dmlKind classifies sql as INSERT/UPDATE/DELETE for result shaping, or
// "" for anything else.
func dmlKind(sql string) string {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.HasPrefix(upper, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(upper, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(upper, "DELETE"):
		return "DELETE"
	default:
		return ""
	}
}

// currentFnRe matches the session-context functions the target dialect
// resolves from connection state rather than data: CURRENT_DATABASE(),
// CURRENT_SCHEMA(), CURRENT_WAREHOUSE(), CURRENT_VERSION().
var currentFnRe = regexp.MustCompile(`(?i)\bCURRENT_(DATABASE|SCHEMA|WAREHOUSE|VERSION)\s*\(\s*\)`)

// inlineSessionContext substitutes session-context function calls with the
// session's own state as string literals (or NULL when unset), since the
// host engine has no notion of the emulated current database/schema.
func (s *Session) inlineSessionContext(sql string) string {
	return currentFnRe.ReplaceAllStringFunc(sql, func(m string) string {
		sub := currentFnRe.FindStringSubmatch(m)
		var v string
		switch strings.ToUpper(sub[1]) {
		case "DATABASE":
			v = s.Database
		case "SCHEMA":
			v = s.Schema
		case "WAREHOUSE":
			v = "FSNOW"
		case "VERSION":
			v = "1.0.0"
		}
		if v == "" {
			return "NULL"
		}
		return "'" + v + "'"
	})
}

// statusRow wraps a single status string into the one-row, one-column
// result shape spec.md invariant 4 requires for DDL/USE/SET/COMMIT/
// ROLLBACK.
func statusRow(cur *Cursor, message string) *Cursor {
	cur.Columns = []string{"status"}
	cur.Rows = []map[string]any{{"status": message}}
	return succeed(cur, 1)
}
