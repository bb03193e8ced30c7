package sqlparse

import "strings"

// ShowTarget enumerates the SHOW family's target, spec.md §4.3.
type ShowTarget string

const (
	ShowSchemas     ShowTarget = "SCHEMAS"
	ShowObjects     ShowTarget = "OBJECTS"
	ShowTables      ShowTarget = "TABLES"
	ShowViews       ShowTarget = "VIEWS"
	ShowDatabases   ShowTarget = "DATABASES"
	ShowColumns     ShowTarget = "COLUMNS"
	ShowPrimaryKeys ShowTarget = "PRIMARY KEYS"
	ShowUniqueKeys  ShowTarget = "UNIQUE KEYS"
	ShowImportedKeys ShowTarget = "IMPORTED KEYS"
	ShowUsers       ShowTarget = "USERS"
	ShowStages      ShowTarget = "STAGES"
	ShowFunctions   ShowTarget = "FUNCTIONS"
	ShowProcedures  ShowTarget = "PROCEDURES"
	ShowWarehouses  ShowTarget = "WAREHOUSES"
)

// ShowStmt is the parsed form of SHOW <target> [LIKE '...'] [IN <scope>].
type ShowStmt struct {
	Target ShowTarget
	Like   string
	In     string // scope qualifier text, e.g. "DATABASE mydb" or "SCHEMA mydb.public"
}

var showTwoWord = map[string]ShowTarget{
	"PRIMARY KEYS":  ShowPrimaryKeys,
	"UNIQUE KEYS":   ShowUniqueKeys,
	"IMPORTED KEYS": ShowImportedKeys,
}

// ParseShow parses a SHOW statement.
func ParseShow(raw string) (*ShowStmt, error) {
	s := newScanner(raw)
	if !s.eatKeyword("SHOW") {
		return nil, errf("show: expected SHOW")
	}
	first, ok := s.identText()
	if !ok {
		return nil, errf("show: expected target")
	}
	target := strings.ToUpper(first)
	if second, ok2 := s.identText2IfKeys(target); ok2 {
		target = target + " " + second
	}
	show := &ShowStmt{Target: ShowTarget(target)}
	if s.eatKeyword("LIKE") {
		if t := s.peek(); t.Kind == String {
			s.i++
			show.Like = strings.Trim(t.Text, "'")
		}
	}
	if s.eatKeyword("IN") {
		show.In = s.rest()
	}
	return show, nil
}

// identText2IfKeys peeks a second identifier if first is one half of a
// two-word SHOW target (PRIMARY/UNIQUE/IMPORTED KEYS).
func (s *scanner) identText2IfKeys(first string) (string, bool) {
	switch first {
	case "PRIMARY", "UNIQUE", "IMPORTED":
	default:
		return "", false
	}
	if s.isKeyword("KEYS") {
		s.i++
		return "KEYS", true
	}
	return "", false
}

// DescribeStmt is the parsed form of DESCRIBE TABLE|VIEW <name>.
type DescribeStmt struct {
	IsView bool
	Name   string
}

// ParseDescribe parses DESCRIBE/DESC TABLE|VIEW <name>.
func ParseDescribe(raw string) (*DescribeStmt, error) {
	s := newScanner(raw)
	if !s.eatKeyword("DESCRIBE") && !s.eatKeyword("DESC") {
		return nil, errf("describe: expected DESCRIBE")
	}
	d := &DescribeStmt{}
	if s.eatKeyword("VIEW") {
		d.IsView = true
	} else {
		s.eatKeyword("TABLE")
	}
	name, ok := s.qualifiedName()
	if !ok {
		return nil, errf("describe: expected name")
	}
	d.Name = name
	return d, nil
}
