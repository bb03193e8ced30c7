// Semi-structured rewrites, spec.md §4.3 "Semi-structured": OBJECT_CONSTRUCT
// lowers to a JSON-object builder, bracket indexing lowers to JSON-path
// extraction, and FLATTEN lowers to a call of the reserved name
// _fs_flatten, which nothing in the host engine defines (see rewriteFlatten).
// These are text-level rewrites in the same regex-pre-pass idiom as
// transform.go's function shims, rather than a full AST rewrite, since the
// target-dialect grammar for bracket indexing and FLATTEN's LATERAL form
// falls outside what the tidb adapter (internal/sqlparse/ddl.go) parses.
package transform

import "regexp"

// objectConstructRe matches OBJECT_CONSTRUCT(...) and its KEEP_NULL
// variant; both take a flat list of alternating key/value expressions.
var objectConstructRe = regexp.MustCompile(`(?i)\bOBJECT_CONSTRUCT(_KEEP_NULL)?\s*\(`)

// rewriteObjectConstruct replaces OBJECT_CONSTRUCT(...)/
// OBJECT_CONSTRUCT_KEEP_NULL(...) with a call to the host's JSON_OBJECT
// builder. OBJECT_CONSTRUCT elides null-valued pairs at runtime in the
// real warehouse; tinySQL's JSON_OBJECT has no null-eliding mode, so the
// KEEP_NULL distinction collapses at rewrite time: both forms become the
// same JSON_OBJECT call, and no later pass removes null-valued pairs.
func rewriteObjectConstruct(sql string) string {
	return objectConstructRe.ReplaceAllString(sql, "JSON_OBJECT(")
}

// bracketIndexRe matches a bare identifier or a function call (whose
// arguments nest at most one further call) followed by a target-dialect
// bracket index, e.g. v['fruit'], v[0] or JSON_EXTRACT(v, '$.a')['b']. The
// host engine has no bracket-index operator on a JSON column, so this
// lowers to its JSON_EXTRACT(expr, path) function form.
var bracketIndexRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*(?:\((?:[^()]|\([^()]*\))*\))?)\s*\[\s*('[^']*'|\d+)\s*\]`)

// rewriteBracketIndex lowers v['key']/v[idx] bracket indexing to
// JSON_EXTRACT(v, '$.key')/JSON_EXTRACT(v, '$[idx]') calls, the
// "bracket indexing lowered to JSON-path extraction" family spec.md §4.3
// names. Chained indices (v['a']['b']) are handled by running the regex
// to a fixed point: each pass rewrites the first index of a chain into a
// JSON_EXTRACT call, which the next pass then matches as the call the
// following index applies to.
func rewriteBracketIndex(sql string) string {
	for {
		next := bracketIndexRe.ReplaceAllStringFunc(sql, func(m string) string {
			sub := bracketIndexRe.FindStringSubmatch(m)
			expr, key := sub[1], sub[2]
			if len(key) > 0 && key[0] == '\'' {
				field := key[1 : len(key)-1]
				return "JSON_EXTRACT(" + expr + ", '$." + field + "')"
			}
			return "JSON_EXTRACT(" + expr + ", '$[" + key + "]')"
		})
		if next == sql {
			return sql
		}
		sql = next
	}
}

// jsonExtractCastVarcharRe matches a JSON_EXTRACT(...) call immediately
// cast to VARCHAR/TEXT/STRING, the shape indices_to_json_extract produces
// when the original expression was `v['fruit']::VARCHAR`.
var jsonExtractCastVarcharRe = regexp.MustCompile(`(?i)CAST\s*\(\s*(JSON_EXTRACT\((?:[^()]|\([^()]*\))*\))\s+AS\s+(?:VARCHAR|TEXT|STRING)(?:\s*\(\s*\d+\s*\))?\s*\)`)

// rewriteJSONExtractCastAsVarchar switches a cast of a JSON-extracted value
// to VARCHAR from JSON_EXTRACT's quoted-string surface form to
// JSON_EXTRACT_STRING's raw-string form, so `PARSE_JSON('{"fruit":
// "banana"}'):fruit::VARCHAR` yields `banana` rather than `"banana"` —
// spec.md §4.3's "casts of JSON-extracted values to VARCHAR switched to
// the extract raw string form". Precedence: this must run after
// rewriteBracketIndex/trim_cast_varchar produce the JSON_EXTRACT(...)
// shape it matches (SPEC_FULL.md §4.3 precedence rule 1/2), which
// Rewrite's call order in transform.go enforces.
func rewriteJSONExtractCastAsVarchar(sql string) string {
	return jsonExtractCastVarcharRe.ReplaceAllStringFunc(sql, func(m string) string {
		sub := jsonExtractCastVarcharRe.FindStringSubmatch(m)
		inner := sub[1]
		return "JSON_EXTRACT_STRING(" + inner[len("JSON_EXTRACT("):]
	})
}

// flattenRe matches a FLATTEN(INPUT => expr) table-function call, lateral
// or standalone.
var flattenRe = regexp.MustCompile(`(?i)\bFLATTEN\s*\(\s*(?:INPUT\s*=>\s*)?([^)]+)\)`)

// rewriteFlatten lowers a FLATTEN(...) call to a call of the reserved
// name _fs_flatten. No real table-macro facility exists in the host engine
// (tinySQL has no CREATE MACRO/TABLE FUNCTION statement, SPEC_FULL.md
// §10's macros.py note), and nothing defines _fs_flatten, so a FLATTEN
// statement fails at execution and no SEQ/KEY/PATH/INDEX/VALUE/THIS
// columns are produced. The six-column shape is listed in DESIGN.md's
// Open Questions.
func rewriteFlatten(sql string) string {
	return flattenRe.ReplaceAllStringFunc(sql, func(m string) string {
		sub := flattenRe.FindStringSubmatch(m)
		arg := sub[1]
		return "_fs_flatten(" + arg + ")"
	})
}

// rewriteColonPaths lowers the target dialect's single-colon path operator
// (v:fruit, parse_json(x):a:b) to JSON_EXTRACT calls, the same lowering
// rewriteBracketIndex applies to v['fruit']. The left-hand side may be a
// bare (possibly qualified) identifier or a parenthesized/function-call
// expression, so this is a quote-aware scan rather than a regex: a colon
// inside a string literal (JSON text, time literals) must not match, and a
// '::' cast must be left for rewriteDoubleColonCasts. Chained paths
// converge by re-scanning until no colon rewrites remain.
func rewriteColonPaths(sql string) string {
	for {
		next, changed := rewriteOneColonPath(sql)
		if !changed {
			return next
		}
		sql = next
	}
}

func rewriteOneColonPath(sql string) (string, bool) {
	inStr := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c == '\'' {
			inStr = !inStr
			continue
		}
		if inStr || c != ':' {
			continue
		}
		if i+1 < len(sql) && sql[i+1] == ':' {
			i++ // '::' cast, not a path
			continue
		}
		if i > 0 && sql[i-1] == ':' {
			continue
		}
		if i+1 >= len(sql) || !isIdentByte(sql[i+1]) {
			continue
		}
		lhsStart, ok := precedingExprStart(sql, i)
		if !ok {
			continue
		}
		end := i + 1
		for end < len(sql) && isIdentByte(sql[end]) {
			end++
		}
		field := sql[i+1 : end]
		lhs := sql[lhsStart:i]
		return sql[:lhsStart] + "JSON_EXTRACT(" + lhs + ", '$." + field + "')" + sql[end:], true
	}
	return sql, false
}

// rewriteDoubleColonCasts lowers the target dialect's postfix '::TYPE' cast
// to the host's CAST(expr AS TYPE) form, running after rewriteColonPaths so
// a `v:fruit::VARCHAR` chain casts the extracted value, not the raw column.
func rewriteDoubleColonCasts(sql string) string {
	for {
		next, changed := rewriteOneDoubleColonCast(sql)
		if !changed {
			return next
		}
		sql = next
	}
}

func rewriteOneDoubleColonCast(sql string) (string, bool) {
	inStr := false
	for i := 0; i+1 < len(sql); i++ {
		c := sql[i]
		if c == '\'' {
			inStr = !inStr
			continue
		}
		if inStr || c != ':' || sql[i+1] != ':' {
			continue
		}
		t := i + 2
		for t < len(sql) && sql[t] == ' ' {
			t++
		}
		typeStart := t
		for t < len(sql) && isIdentByte(sql[t]) {
			t++
		}
		if t == typeStart {
			continue
		}
		end := t
		if end < len(sql) && sql[end] == '(' {
			depth := 0
			for ; end < len(sql); end++ {
				if sql[end] == '(' {
					depth++
				}
				if sql[end] == ')' {
					depth--
					if depth == 0 {
						end++
						break
					}
				}
			}
		}
		lhsStart, ok := precedingExprStart(sql, i)
		if !ok {
			continue
		}
		lhs := sql[lhsStart:i]
		typ := sql[typeStart:end]
		return sql[:lhsStart] + "CAST(" + lhs + " AS " + typ + ")" + sql[end:], true
	}
	return sql, false
}

// precedingExprStart walks backwards from pos (exclusive) over the
// expression a postfix operator binds to: a string literal, a balanced
// call/paren group plus any function name, or a dotted identifier.
func precedingExprStart(sql string, pos int) (int, bool) {
	j := pos - 1
	if j < 0 {
		return 0, false
	}
	switch {
	case sql[j] == '\'':
		j--
		for j >= 0 && sql[j] != '\'' {
			j--
		}
		if j < 0 {
			return 0, false
		}
		return j, true
	case sql[j] == ')':
		depth := 0
		for ; j >= 0; j-- {
			switch sql[j] {
			case '\'':
				j--
				for j >= 0 && sql[j] != '\'' {
					j--
				}
				if j < 0 {
					return 0, false
				}
			case ')':
				depth++
			case '(':
				depth--
			}
			if j >= 0 && depth == 0 && sql[j] == '(' {
				break
			}
		}
		if j < 0 {
			return 0, false
		}
		for j > 0 && (isIdentByte(sql[j-1]) || sql[j-1] == '.') {
			j--
		}
		return j, true
	case isIdentByte(sql[j]):
		for j > 0 && (isIdentByte(sql[j-1]) || sql[j-1] == '.') {
			j--
		}
		return j, true
	}
	return 0, false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// tryParseJSONRe marks the head of a TRY_PARSE_JSON(...) call; the closing
// paren is found by a balanced forward scan since the argument may itself
// contain calls.
var tryParseJSONRe = regexp.MustCompile(`(?i)\bTRY_PARSE_JSON\s*\(`)

// rewriteTryParseJSON lowers TRY_PARSE_JSON(x) to TRY_CAST(x AS JSON),
// spec.md §4.3's function-shim family: a malformed document yields NULL
// rather than an error in both forms.
func rewriteTryParseJSON(sql string) string {
	for {
		loc := tryParseJSONRe.FindStringIndex(sql)
		if loc == nil {
			return sql
		}
		open := loc[1] - 1
		closing := matchingParen(sql, open)
		if closing < 0 {
			return sql
		}
		arg := sql[open+1 : closing]
		sql = sql[:loc[0]] + "TRY_CAST(" + arg + " AS JSON)" + sql[closing+1:]
	}
}

// matchingParen returns the index of the ')' balancing the '(' at open,
// skipping string literals, or -1 when unbalanced.
func matchingParen(sql string, open int) int {
	depth := 0
	inStr := false
	for i := open; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			inStr = !inStr
		case '(':
			if !inStr {
				depth++
			}
		case ')':
			if !inStr {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// trimCastVarcharRe matches TRIM(expr) without an explicit cast, the shape
// the target dialect accepts on non-VARCHAR expressions by implicit
// casting. Precedence: this must run before
// rewriteJSONExtractCastAsVarchar (SPEC_FULL.md §4.3 precedence rule 1),
// since a TRIM around a JSON-extracted value needs the VARCHAR cast
// inserted before the outer cast-to-VARCHAR rewrite looks for it.
var trimCastVarcharRe = regexp.MustCompile(`(?i)\bTRIM\s*\(\s*(JSON_EXTRACT\((?:[^()]|\([^()]*\))*\))\s*\)`)

// rewriteTrimCastVarchar inserts the explicit CAST(... AS VARCHAR) TRIM
// implicitly applies in the target dialect, spec.md §4.3's "TRIM implicit
// VARCHAR cast" transform, scoped to the JSON-extraction case that would
// otherwise hand TRIM a JSON value instead of text.
func rewriteTrimCastVarchar(sql string) string {
	return trimCastVarcharRe.ReplaceAllStringFunc(sql, func(m string) string {
		sub := trimCastVarcharRe.FindStringSubmatch(m)
		return "TRIM(CAST(" + sub[1] + " AS VARCHAR))"
	})
}
