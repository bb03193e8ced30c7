package sqlparse

import "strings"

// Kind tags which shape of statement a Statement holds, the "polymorphic
// statement variant" design note from spec.md §9 applied to parsing.
type Kind int

const (
	KindGeneric Kind = iota // routed through the host dialect mostly as-is (SELECT/INSERT/UPDATE/DELETE/DDL)
	KindMerge
	KindCopyInto
	KindCreateStage
	KindPut
	KindGet
	KindList
	KindRemove
	KindCreateSequence
	KindCreateUser
	KindShow
	KindDescribe
	KindSet
	KindUnset
	KindUse
	KindCommit
	KindRollback
	KindBegin
)

// Statement is the common envelope the transform pipeline and cursor loop
// operate on, regardless of which sub-parser produced it.
type Statement struct {
	Kind Kind
	Raw  string // original (variable-inlined) SQL text

	// Generic carries the statement text for KindGeneric. The transform
	// pipeline reads it and returns the rewritten host SQL in a Plan,
	// leaving Generic as parsed; ddl.go's tidb adapter only extracts tags
	// from it.
	Generic string

	Merge       *MergeStmt
	CopyInto    *CopyIntoStmt
	Stage       *StageStmt
	Sequence    *SequenceStmt
	User        *CreateUserStmt
	Show        *ShowStmt
	Describe    *DescribeStmt
	SetVar      *SetStmt
	UnsetVar    string
	UseTarget   *UseStmt

	// Tags are side-channel annotations the transform pipeline extracts and
	// applies to the catalog while planning, before execution (comment
	// text, varchar lengths, created/dropped tables, created databases),
	// per spec.md §4.3's "Comments and text
	// lengths" and "Session statements" transform families.
	Tags StatementTags
}

// StatementTags carries catalog-affecting side annotations extracted by
// the transform pipeline, independent of which Kind produced them.
type StatementTags struct {
	NewDatabase     string
	NewSchema       string
	TableComment    *TableCommentTag
	ColumnLengths   []ColumnLengthTag
	CreatedDatabase string // set by CREATE DATABASE, so the catalog can materialise it
	CreatedTable    *TableTag  // set by CREATE TABLE/VIEW, for catalog registration
	DroppedTables   []TableTag // set by DROP TABLE/VIEW, for catalog deregistration
}

// TableTag names a table or view a DDL statement created or dropped.
type TableTag struct {
	Name string
	Kind string // "TABLE" or "VIEW"
}

// TableCommentTag records a COMMENT = '...' extracted from CREATE/ALTER.
type TableCommentTag struct {
	Catalog, Schema, Table, Comment string
}

// ColumnLengthTag records a VARCHAR(n) extracted from CREATE/ALTER.
type ColumnLengthTag struct {
	Catalog, Schema, Table, Column string
	Length                         int
}

// SetStmt is the parsed form of "SET name = expr".
type SetStmt struct {
	Name  string
	Value string // raw literal SQL text, as it appeared after the '='
}

// UseStmt is the parsed form of "USE DATABASE d" / "USE SCHEMA [d.]s".
type UseStmt struct {
	IsSchema bool
	Database string // empty unless schema form qualifies it
	Schema   string
}

// Sniff classifies raw target-dialect SQL text by its leading keyword(s)
// without fully parsing it, the same triage nethalo-dbsafe's parser
// package performs before handing a statement to vitess or a regex
// fallback.
func Sniff(raw string) Kind {
	toks := Tokenize(raw)
	words := leadingKeywords(toks, 3)
	switch {
	case matches(words, "MERGE"):
		return KindMerge
	case matches(words, "COPY", "INTO"):
		return KindCopyInto
	case matches(words, "CREATE", "STAGE"), matches(words, "CREATE", "OR", "REPLACE") && hasWord(toks, "STAGE"),
		matches(words, "ALTER", "STAGE"), matches(words, "DROP", "STAGE"):
		return KindCreateStage
	case matches(words, "PUT"):
		return KindPut
	case matches(words, "GET"):
		return KindGet
	case matches(words, "LIST"), matches(words, "LS"):
		return KindList
	case matches(words, "REMOVE"), matches(words, "RM"):
		return KindRemove
	case matches(words, "CREATE", "SEQUENCE"):
		return KindCreateSequence
	case matches(words, "CREATE", "USER"):
		return KindCreateUser
	case matches(words, "SHOW"):
		return KindShow
	case matches(words, "DESCRIBE"), matches(words, "DESC"):
		return KindDescribe
	case matches(words, "SET"):
		return KindSet
	case matches(words, "UNSET"):
		return KindUnset
	case matches(words, "USE"):
		return KindUse
	case matches(words, "COMMIT"):
		return KindCommit
	case matches(words, "ROLLBACK"):
		return KindRollback
	case matches(words, "BEGIN"), matches(words, "START", "TRANSACTION"):
		return KindBegin
	default:
		return KindGeneric
	}
}

func leadingKeywords(toks []Token, n int) []string {
	var out []string
	for _, t := range toks {
		if len(out) >= n {
			break
		}
		if t.Kind != Ident {
			break
		}
		out = append(out, strings.ToUpper(t.Text))
	}
	return out
}

func matches(words []string, want ...string) bool {
	if len(words) < len(want) {
		return false
	}
	for i, w := range want {
		if words[i] != w {
			return false
		}
	}
	return true
}

func hasWord(toks []Token, word string) bool {
	for _, t := range toks {
		if t.Kind == Ident && strings.EqualFold(t.Text, word) {
			return true
		}
	}
	return false
}
