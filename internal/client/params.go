package client

import (
	"fmt"
	"strconv"
	"strings"
)

// splitStatements splits text on top-level (outside quotes) semicolons,
// the statement-boundary rule spec.md §6.1's ExecuteString names.
func splitStatements(text string) []string {
	var out []string
	var buf strings.Builder
	var quote rune
	for _, r := range text {
		switch {
		case quote != 0:
			buf.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			buf.WriteRune(r)
		case r == ';':
			out = append(out, buf.String())
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	if strings.TrimSpace(buf.String()) != "" {
		out = append(out, buf.String())
	}
	var trimmed []string
	for _, s := range out {
		if t := strings.TrimSpace(s); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return trimmed
}

// isPureComment reports whether stmt, once leading/trailing whitespace is
// stripped, consists only of "--" line comments and "/* ... */" block
// comments, the fragment ExecuteString is told to ignore.
func isPureComment(stmt string) bool {
	t := strings.TrimSpace(stmt)
	for t != "" {
		var end int
		switch {
		case strings.HasPrefix(t, "--"):
			if end = strings.IndexByte(t, '\n'); end < 0 {
				return true
			}
		case strings.HasPrefix(t, "/*"):
			if end = strings.Index(t, "*/"); end < 0 {
				return false
			}
			end += 2
		default:
			return false
		}
		t = strings.TrimSpace(t[end:])
	}
	return true
}

// bindParams client-side substitutes each "%s" placeholder in sql with an
// escaped-and-quoted literal for params[i], spec.md §4.7's "pyformat"/
// "format" paramstyle behaviour. Under "qmark" no substitution happens and
// the params are not forwarded either: the host engine receives the SQL
// text with its '?' placeholders alone.
func bindParams(sql string, params []any) string {
	var out strings.Builder
	i := 0
	for j := 0; j < len(sql); j++ {
		if sql[j] == '%' && j+1 < len(sql) && sql[j+1] == 's' && i < len(params) {
			out.WriteString(literalSQL(params[i]))
			i++
			j++
			continue
		}
		out.WriteByte(sql[j])
	}
	return out.String()
}

func literalSQL(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case bool:
		return strconv.FormatBool(t)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", t)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", t), "'", "''") + "'"
	}
}
