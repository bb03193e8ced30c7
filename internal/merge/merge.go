// Package merge plans a MERGE INTO statement as a candidate-table build
// followed by one host-dialect DELETE/UPDATE/INSERT per WHEN clause, since
// the host engine (SPEC_FULL.md §2) has no native MERGE support. The plan
// follows spec.md §4.4: a materialized candidates table carries each
// source row plus a MERGE_OP column holding the index of the first WHEN
// clause whose predicate matches (computed by one CASE expression, so
// every predicate is evaluated exactly once per row and in listed order,
// against the pre-statement state), and each clause's DML then filters on
// its own MERGE_OP index. An earlier clause's UPDATE can therefore never
// change which rows a later clause claims.
package merge

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"fsnow/internal/engine"
	"fsnow/internal/fserr"
	"fsnow/internal/sqlparse"
)

// Counts is the per-action row count a MERGE reports. The Has* flags
// record which action kinds appear in any WHEN clause: spec.md §4.4 omits
// result columns for kinds no clause names.
type Counts struct {
	Inserted int64
	Updated  int64
	Deleted  int64

	HasInsert bool
	HasUpdate bool
	HasDelete bool
}

// Run executes stmt against tenant and returns the affected-row counts.
//
// Known limitation, flagged rather than hidden: spec.md invariant §3.5
// calls for MERGE to be atomic from the client's viewpoint, under a host
// transaction for stable row ids. tinySQL exposes no transaction API
// through the surface this module depends on, so the sub-statements commit
// individually and a failure partway through can leave a partial effect.
// The candidates table bounds the damage (later clauses still see the
// pre-statement claims), but does not remove it.
//
// Row correlation between the candidates table and the live target runs
// through the ON predicate's column equalities, since the host exposes no
// row ids; a WHEN clause that updates one of its own join-key columns is
// outside what this planner supports.
func Run(ctx context.Context, host *engine.Host, tenant string, stmt *sqlparse.MergeStmt) (*Counts, error) {
	if len(stmt.Whens) == 0 {
		return nil, fserr.New(fserr.SQLCompilation, "merge: at least one WHEN clause is required")
	}

	normalizeTargetAlias(stmt)
	sourceAlias := sourceAliasFor(stmt)

	cand := "_fs_merge_candidates_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if _, err := host.Exec(ctx, tenant, candidatesSQL(stmt, cand, sourceAlias)); err != nil {
		return nil, err
	}
	defer func() { _, _ = host.Exec(ctx, tenant, "DROP TABLE "+cand) }()

	counts := &Counts{}
	for i, w := range stmt.Whens {
		opFilter := fmt.Sprintf("%s.MERGE_OP = %d", sourceAlias, i)
		if w.Matched {
			// The live target row is tied to its candidate row by the ON
			// predicate; the candidate's MERGE_OP was computed before any
			// DML ran, so earlier clauses cannot re-route this one.
			exists := fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s AND %s)",
				cand, sourceAlias, stmt.On, opFilter)
			switch w.Action {
			case sqlparse.ActionDelete:
				counts.HasDelete = true
				n, err := execAffected(ctx, host, tenant, fmt.Sprintf(
					"DELETE FROM %s WHERE %s", stmt.Target, exists))
				if err != nil {
					return nil, err
				}
				counts.Deleted += n
			case sqlparse.ActionUpdate:
				counts.HasUpdate = true
				set := stripSetQualifiers(stmt.Target, w.UpdateSet)
				set = rewriteUpdateSet(set, cand, sourceAlias, stmt.On+" AND "+opFilter)
				n, err := execAffected(ctx, host, tenant, fmt.Sprintf(
					"UPDATE %s SET %s WHERE %s", stmt.Target, set, exists))
				if err != nil {
					return nil, err
				}
				counts.Updated += n
			}
			continue
		}

		// NOT MATCHED clauses only ever INSERT (spec.md §4.4's WHEN clause
		// shape); target rows are never touched. The host reports no
		// affected-row count for INSERT...SELECT, so the claimed candidate
		// rows are counted directly.
		counts.HasInsert = true
		n, err := queryCount(ctx, host, tenant, fmt.Sprintf(
			"SELECT COUNT(*) AS n FROM %s %s WHERE %s", cand, sourceAlias, opFilter))
		if err != nil {
			return nil, err
		}
		cols := ""
		if len(w.InsertCols) > 0 {
			cols = " (" + strings.Join(w.InsertCols, ", ") + ")"
		}
		sql := fmt.Sprintf("INSERT INTO %s%s SELECT %s FROM %s %s WHERE %s",
			stmt.Target, cols, valuesToSelectList(w.InsertVals), cand, sourceAlias, opFilter)
		if _, err := execAffected(ctx, host, tenant, sql); err != nil {
			return nil, err
		}
		counts.Inserted += n
	}
	return counts, nil
}

// candidatesSQL builds the CREATE TABLE AS for the merge candidates:
// every source row plus MERGE_OP, the index of the first WHEN clause whose
// predicate holds for that row (NULL when none does). CASE gives the
// exactly-once, in-listed-order evaluation spec.md §4.4 requires;
// matched-ness is an EXISTS over the target on the ON predicate, so the
// whole column is computed against the pre-statement state.
func candidatesSQL(stmt *sqlparse.MergeStmt, cand, sourceAlias string) string {
	var cases []string
	for i, w := range stmt.Whens {
		cases = append(cases, fmt.Sprintf("WHEN %s THEN %d", clausePredicate(stmt, w), i))
	}
	return fmt.Sprintf("CREATE TABLE %s AS SELECT %s.*, CASE %s ELSE NULL END AS MERGE_OP FROM %s %s",
		cand, sourceAlias, strings.Join(cases, " "), stmt.Source, sourceAlias)
}

// clausePredicate is one WHEN clause's boolean test over a candidate
// (source) row: matched-ness via EXISTS on the join predicate, plus the
// clause's own AND condition if any.
func clausePredicate(stmt *sqlparse.MergeStmt, w sqlparse.WhenClause) string {
	if w.Matched {
		pred := stmt.On
		if w.ExtraPred != "" {
			pred += " AND (" + w.ExtraPred + ")"
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", stmt.Target, pred)
	}
	pred := fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s WHERE %s)", stmt.Target, stmt.On)
	if w.ExtraPred != "" {
		pred += " AND (" + w.ExtraPred + ")"
	}
	return pred
}

// sourceAliasFor resolves the alias candidate rows are referenced through:
// the statement's own source alias when given, the bare source name for a
// plain table, or a reserved name for an unaliased subquery source.
func sourceAliasFor(stmt *sqlparse.MergeStmt) string {
	if stmt.SourceAlias != "" {
		return stmt.SourceAlias
	}
	if strings.HasPrefix(stmt.Source, "(") {
		return "_fs_source"
	}
	return stmt.Source
}

// normalizeTargetAlias rewrites references through the MERGE statement's
// target alias into bare table-name qualification, since the emulated
// UPDATE/DELETE statements run directly against the target table where the
// alias is never in scope.
func normalizeTargetAlias(stmt *sqlparse.MergeStmt) {
	if stmt.TargetAlias == "" || strings.EqualFold(stmt.TargetAlias, stmt.Target) {
		return
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(stmt.TargetAlias) + `\.`)
	repl := stmt.Target + "."
	stmt.On = re.ReplaceAllString(stmt.On, repl)
	for i := range stmt.Whens {
		stmt.Whens[i].ExtraPred = re.ReplaceAllString(stmt.Whens[i].ExtraPred, repl)
		stmt.Whens[i].UpdateSet = re.ReplaceAllString(stmt.Whens[i].UpdateSet, repl)
		stmt.Whens[i].InsertVals = re.ReplaceAllString(stmt.Whens[i].InsertVals, repl)
	}
}

// stripSetQualifiers removes target-table qualification from the left-hand
// side of each SET assignment; the host does not accept qualified targets
// there (spec.md §4.4's tie-break note).
func stripSetQualifiers(target, set string) string {
	re := regexp.MustCompile(`(?i)(^|,)(\s*)` + regexp.QuoteMeta(target) + `\.`)
	return re.ReplaceAllString(set, "$1$2")
}

// rewriteUpdateSet lowers each assignment whose right-hand side references
// the source into a scalar subquery over the candidates table, correlated
// by the join predicate and the clause's MERGE_OP filter: the emulated
// UPDATE has no join to bring the matched source row into scope, so the
// value is fetched per target row instead.
func rewriteUpdateSet(set, cand, sourceAlias, cond string) string {
	parts := splitAssignments(set)
	for i, a := range parts {
		eq := strings.Index(a, "=")
		if eq < 0 {
			continue
		}
		lhs := strings.TrimSpace(a[:eq])
		rhs := strings.TrimSpace(a[eq+1:])
		if strings.Contains(strings.ToLower(rhs), strings.ToLower(sourceAlias)+".") {
			rhs = fmt.Sprintf("(SELECT %s FROM %s %s WHERE %s)", rhs, cand, sourceAlias, cond)
		}
		parts[i] = lhs + " = " + rhs
	}
	return strings.Join(parts, ", ")
}

// splitAssignments splits a SET clause on commas outside parens/quotes, so
// a function call or quoted default in one assignment's value is not
// mistaken for the next assignment.
func splitAssignments(s string) []string {
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
	return append(out, s[start:])
}

func queryCount(ctx context.Context, host *engine.Host, tenant, sql string) (int64, error) {
	res, err := host.Exec(ctx, tenant, sql)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	for _, v := range res.Rows[0] {
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		}
	}
	return 0, nil
}

// valuesToSelectList turns a MERGE INSERT clause's "VALUES (...)" tuple
// text into a SELECT list, since the emulated INSERT...SELECT needs
// expressions rather than a VALUES row.
func valuesToSelectList(values string) string {
	inner := strings.TrimSpace(values)
	inner = strings.TrimPrefix(inner, "(")
	inner = strings.TrimSuffix(inner, ")")
	return inner
}

func execAffected(ctx context.Context, host *engine.Host, tenant, sql string) (int64, error) {
	res, err := host.Exec(ctx, tenant, sql)
	if err != nil {
		return 0, err
	}
	return res.RowCount, nil
}
