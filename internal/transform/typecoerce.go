package transform

import "regexp"

// Type coercions, spec.md §4.3: the host engine's type system is a strict
// subset of the target dialect's, so every declared column type in a
// CREATE/ALTER statement is narrowed to the nearest host-native type
// before the statement reaches the host engine. Precedence rule #3 runs
// these ahead of the precision-sensitive function shims (TO_DECIMAL,
// TO_NUMBER) later in the pipeline.
var (
	floatTypeRe     = regexp.MustCompile(`(?i)\bFLOAT\b`)
	decimal38_0Re   = regexp.MustCompile(`(?i)\bDECIMAL\s*\(\s*38\s*,\s*0\s*\)`)
	intAliasRe      = regexp.MustCompile(`(?i)\b(INT|SMALLINT|TINYINT)\b`)
	semistructTyRe  = regexp.MustCompile(`(?i)\b(OBJECT|ARRAY|VARIANT)\b`)
	timestampNtzRe  = regexp.MustCompile(`(?i)\bTIMESTAMP_NTZ\b`)
)

func rewriteTypeCoercions(sql string) string {
	sql = floatTypeRe.ReplaceAllString(sql, "DOUBLE")
	sql = decimal38_0Re.ReplaceAllString(sql, "BIGINT")
	sql = intAliasRe.ReplaceAllString(sql, "BIGINT")
	sql = semistructTyRe.ReplaceAllString(sql, "JSON")
	sql = timestampNtzRe.ReplaceAllString(sql, "TIMESTAMP")
	return sql
}
