package transform

import (
	"fmt"
	"regexp"
	"strings"
)

// valuesRowRe matches a VALUES row-constructor clause: one or more
// parenthesised tuples, used as a table (the target dialect's bare
// "SELECT * FROM VALUES (1,2), (3,4)" idiom). INSERT ... VALUES never
// matches this family since that VALUES clause names its columns from the
// target table, not COLUMN1..COLUMNn.
var valuesRowRe = regexp.MustCompile(`(?is)\bVALUES\s*(\((?:[^()]|\([^()]*\))*\))((?:\s*,\s*\((?:[^()]|\([^()]*\))*\))*)`)

// valuesAlreadyAliasedRe matches an existing "AS name (col, ...)" or bare
// "AS name" following a VALUES clause, meaning the caller already named
// the columns and this family is a no-op.
var valuesAlreadyAliasedRe = regexp.MustCompile(`(?is)^\s*AS\s+[A-Za-z_][A-Za-z0-9_]*(\s*\([^)]*\))?`)

// rewriteValuesColumnNaming attaches COLUMN1..COLUMNn aliases to a
// standalone VALUES row source, spec.md §4.3's "VALUES column naming"
// family, since the host engine otherwise names these columns after its
// own positional convention rather than the target dialect's.
func rewriteValuesColumnNaming(sql string) string {
	upper := strings.ToUpper(sql)
	if strings.Contains(upper, "INSERT") {
		return sql
	}
	loc := valuesRowRe.FindStringSubmatchIndex(sql)
	if loc == nil {
		return sql
	}
	after := sql[loc[1]:]
	if valuesAlreadyAliasedRe.MatchString(after) {
		return sql
	}
	firstTuple := sql[loc[2]:loc[3]]
	inner := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(firstTuple), "("), ")")
	n := len(splitTopLevelCommas(inner))
	cols := make([]string, n)
	for i := range cols {
		cols[i] = fmt.Sprintf("COLUMN%d", i+1)
	}
	alias := " AS _fs_values(" + strings.Join(cols, ", ") + ")"
	return sql[:loc[1]] + alias + sql[loc[1]:]
}
