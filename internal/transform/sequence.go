package transform

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// nextvalRe matches "<seq>.NEXTVAL", the target dialect's sequence-advance
// reference, spec.md §4.3's sequences family.
var nextvalRe = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_$]*(?:\.[A-Za-z_][A-Za-z0-9_$]*)*)\.NEXTVAL\b`)

// rewriteNextval turns "seq_name.nextval" into "NEXTVAL('seq_name') AS
// NEXTVAL", the function-call form the host engine's sequence support
// (spec.md §4.3) expects, and the column alias a SELECT expects to carry.
func rewriteNextval(sql string) string {
	return nextvalRe.ReplaceAllString(sql, `NEXTVAL('$1') AS NEXTVAL`)
}

// createTableNameRe recovers the target table name from a CREATE TABLE
// statement so a generated sequence name can be derived from it.
var createTableNameRe = regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9_."]+)`)

// autoincrementColRe matches one "<col> <type> AUTOINCREMENT[(start,inc)]"
// column definition, capturing the column name, its declared type, and an
// optional explicit (start, increment) pair.
var autoincrementColRe = regexp.MustCompile(
	`(?i)([A-Za-z_][A-Za-z0-9_]*)\s+([A-Za-z_][A-Za-z0-9_]*(?:\(\s*\d+(?:\s*,\s*\d+)?\s*\))?)\s+AUTOINCREMENT(?:\s*\(\s*(\d+)\s*,\s*(\d+)\s*\))?`)

// splitAutoincrement expands a CREATE TABLE that declares one or more
// AUTOINCREMENT columns into a CREATE SEQUENCE per such column (a
// random-suffixed name, since two tables may each declare their own "id"
// sequence) plus the CREATE TABLE with each AUTOINCREMENT column rewritten
// to DEFAULT NEXTVAL('<seq>') — spec.md §4.3's AUTOINCREMENT/IDENTITY
// family. Returns ok=false when sql declares no AUTOINCREMENT column, in
// which case the caller should keep using sql unchanged.
func splitAutoincrement(ctx context.Context, tctx *Context, sql string) (stmts []string, ok bool, err error) {
	if !autoincrementColRe.MatchString(sql) {
		return nil, false, nil
	}
	table := "t"
	if m := createTableNameRe.FindStringSubmatch(sql); len(m) > 1 {
		table = unquoteIdent(m[1])
	}

	var seqStmts []string
	var catalogErr error
	rewritten := autoincrementColRe.ReplaceAllStringFunc(sql, func(m string) string {
		sub := autoincrementColRe.FindStringSubmatch(m)
		col, colType := sub[1], sub[2]
		start, increment := "1", "1"
		if sub[3] != "" {
			start = sub[3]
		}
		if sub[4] != "" {
			increment = sub[4]
		}
		suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		seqName := fmt.Sprintf("_fs_seq_%s_%s_%s", table, col, suffix)
		seqStmts = append(seqStmts, fmt.Sprintf("CREATE SEQUENCE %s START WITH %s INCREMENT BY %s", seqName, start, increment))
		if tctx != nil && tctx.Catalog != nil && catalogErr == nil {
			startN, _ := strconv.Atoi(start)
			incN, _ := strconv.Atoi(increment)
			catalogErr = tctx.Catalog.CreateSequence(ctx, tctx.Database, tctx.Schema, seqName, startN, incN)
		}
		return fmt.Sprintf("%s %s DEFAULT NEXTVAL('%s')", col, colType, seqName)
	})
	if catalogErr != nil {
		return nil, false, catalogErr
	}
	return append(seqStmts, rewritten), true, nil
}

// unquoteIdent strips one pair of surrounding double quotes from a target
// dialect identifier, if present; bare identifiers pass through unchanged.
func unquoteIdent(ident string) string {
	if len(ident) >= 2 && ident[0] == '"' && ident[len(ident)-1] == '"' {
		return ident[1 : len(ident)-1]
	}
	return ident
}
