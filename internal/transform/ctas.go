package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// ctasRe matches a CREATE TABLE ... AS SELECT ... with an explicit,
// parenthesised column list: "CREATE TABLE t (a NUMBER(10,2), b VARCHAR(20))
// AS SELECT ...". The host engine infers column names/types from the
// SELECT list alone and rejects a column list on a CTAS, so this family
// re-expresses the declared names/types as casts and aliases in the
// SELECT itself.
var ctasRe = regexp.MustCompile(`(?is)^(CREATE\s+(?:OR\s+REPLACE\s+)?TABLE\s+)([A-Za-z0-9_."]+)\s*\(((?:[^()]|\([^()]*\))*)\)\s*AS\s+(SELECT\b[\s\S]+)$`)

var selectFromRe = regexp.MustCompile(`(?is)^SELECT\s+(.*?)\s+FROM\s+(.+)$`)

// rewriteCTAS realigns CREATE TABLE AS with a user-supplied column list by
// wrapping each select expression in a CAST and alias, spec.md §4.3's CTAS
// family; a bare "*" select list is expanded first via a synchronous probe
// query (a LIMIT 0 SELECT, the same "ask the host for column names"
// technique DESCRIBE uses) so every declared column gets a source
// expression to cast. sql is returned unchanged if it isn't a CTAS with an
// explicit column list.
func rewriteCTAS(ctx context.Context, tctx *Context, sql string) (string, error) {
	m := ctasRe.FindStringSubmatch(sql)
	if m == nil {
		return sql, nil
	}
	prefix, table, colListText, selectText := m[1], m[2], m[3], m[4]

	colDefs := splitTopLevelCommas(colListText)
	names := make([]string, len(colDefs))
	types := make([]string, len(colDefs))
	for i, def := range colDefs {
		fields := strings.Fields(strings.TrimSpace(def))
		if len(fields) == 0 {
			continue
		}
		names[i] = fields[0]
		if len(fields) > 1 {
			types[i] = strings.Join(fields[1:], " ")
		}
	}

	selMatch := selectFromRe.FindStringSubmatch(selectText)
	if selMatch == nil {
		// Shape the parser can't split into a plain "SELECT ... FROM ..."
		// (e.g. a set operation); leave the statement for the host to
		// reject or accept as-is rather than guess.
		return sql, nil
	}
	selectList, fromRest := strings.TrimSpace(selMatch[1]), selMatch[2]

	var exprs []string
	if selectList == "*" {
		if tctx == nil || tctx.Host == nil {
			return sql, nil
		}
		probe := "SELECT * FROM " + fromRest + " LIMIT 0"
		res, err := tctx.Host.Exec(ctx, tctx.Tenant, probe)
		if err != nil {
			return "", err
		}
		exprs = res.Columns
	} else {
		exprs = splitTopLevelCommas(selectList)
		for i, e := range exprs {
			exprs[i] = strings.TrimSpace(e)
		}
	}

	if len(exprs) != len(names) {
		// The select list's arity doesn't match the declared column list;
		// that's a user error the host's own CTAS validation should
		// report, not something this rewrite can repair.
		return sql, nil
	}

	items := make([]string, len(names))
	for i, name := range names {
		if types[i] == "" {
			items[i] = fmt.Sprintf("%s AS %s", exprs[i], name)
		} else {
			items[i] = fmt.Sprintf("CAST(%s AS %s) AS %s", exprs[i], types[i], name)
		}
	}

	return fmt.Sprintf("%s%s AS SELECT %s FROM %s", prefix, table, strings.Join(items, ", "), fromRest), nil
}
