package sqlparse

import (
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"

	"fsnow/internal/fserr"
)

// ddlParser wraps a tidb SQL parser. CREATE/ALTER TABLE's column and table
// option grammar is close enough to MySQL's that tidb parses target-dialect
// DDL directly; this is the same adapter shape as the teacher's
// internal/parser/mysql.Parser, scoped down to tag extraction rather than a
// full schema model, since the host engine owns the actual table shape.
type ddlParser struct{ p *parser.Parser }

func newDDLParser() *ddlParser { return &ddlParser{p: parser.New()} }

// ExtractDDLTags parses sql (expected to be a single CREATE/ALTER TABLE or
// CREATE DATABASE statement already rewritten by the text-level transform
// stages) and returns the catalog side-annotations spec.md §4.3's "Comments
// and text lengths" and "Database lifecycle" transform families need. A
// parse failure here is not fatal to execution: it means the statement
// shape falls outside tidb's grammar, and the caller should fall back to
// routing the Generic text through unannotated (returns zero StatementTags).
func ExtractDDLTags(sql string) (StatementTags, error) {
	dp := newDDLParser()
	stmtNodes, _, err := dp.p.Parse(sql, "", "")
	if err != nil || len(stmtNodes) == 0 {
		return StatementTags{}, nil
	}

	var tags StatementTags
	for _, stmt := range stmtNodes {
		switch n := stmt.(type) {
		case *ast.CreateDatabaseStmt:
			tags.CreatedDatabase = n.Name.O
		case *ast.CreateTableStmt:
			extractCreateTableTags(n, &tags)
		case *ast.CreateViewStmt:
			tags.CreatedTable = &TableTag{Name: n.ViewName.Name.O, Kind: "VIEW"}
		case *ast.AlterTableStmt:
			extractAlterTableTags(n, &tags)
		case *ast.DropTableStmt:
			kind := "TABLE"
			if n.IsView {
				kind = "VIEW"
			}
			for _, tbl := range n.Tables {
				tags.DroppedTables = append(tags.DroppedTables, TableTag{Name: tbl.Name.O, Kind: kind})
			}
		}
	}
	return tags, nil
}

func extractCreateTableTags(stmt *ast.CreateTableStmt, tags *StatementTags) {
	table := stmt.Table.Name.O
	tags.CreatedTable = &TableTag{Name: table, Kind: "TABLE"}
	for _, opt := range stmt.Options {
		if opt.Tp == ast.TableOptionComment {
			tags.TableComment = &TableCommentTag{Table: table, Comment: opt.StrValue}
		}
	}
	for _, col := range stmt.Cols {
		if n := varcharLen(col); n > 0 {
			tags.ColumnLengths = append(tags.ColumnLengths, ColumnLengthTag{
				Table: table, Column: col.Name.Name.O, Length: n,
			})
		}
	}
}

func extractAlterTableTags(stmt *ast.AlterTableStmt, tags *StatementTags) {
	table := stmt.Table.Name.O
	for _, spec := range stmt.Specs {
		switch spec.Tp {
		case ast.AlterTableOption:
			for _, opt := range spec.Options {
				if opt.Tp == ast.TableOptionComment {
					tags.TableComment = &TableCommentTag{Table: table, Comment: opt.StrValue}
				}
			}
		case ast.AlterTableAddColumns, ast.AlterTableModifyColumn, ast.AlterTableChangeColumn:
			for _, col := range spec.NewColumns {
				if n := varcharLen(col); n > 0 {
					tags.ColumnLengths = append(tags.ColumnLengths, ColumnLengthTag{
						Table: table, Column: col.Name.Name.O, Length: n,
					})
				}
			}
		}
	}
}

func varcharLen(col *ast.ColumnDef) int {
	if col.Tp == nil {
		return 0
	}
	switch strings.ToUpper(strings.SplitN(col.Tp.String(), "(", 2)[0]) {
	case "VARCHAR", "CHAR", "VARBINARY":
		return col.Tp.GetFlen()
	}
	return 0
}

// ParseGenericDDLError wraps a tidb parser error in the taxonomy used for
// statements that reach the host engine directly (SELECT/INSERT/UPDATE/
// DELETE and any DDL tidb's grammar rejects outright fall through to the
// host's own parser instead of this adapter).
func ParseGenericDDLError(err error) error {
	return fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
}
