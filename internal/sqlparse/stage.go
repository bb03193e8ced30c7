package sqlparse

import "strings"

// StageOp identifies which stage operation a StageStmt represents.
type StageOp int

const (
	StageCreate StageOp = iota
	StagePut
	StageGet
	StageList
	StageRemove
	StageDrop
)

// StageStmt is the parsed form of CREATE STAGE / PUT / GET / LIST / REMOVE.
type StageStmt struct {
	Op          StageOp
	Name        string // qualified stage name, without leading '@'
	URL         string // CREATE STAGE's URL = '...' option, empty => internal
	Temporary   bool
	LocalPath   string // PUT/GET's file:// path operand
	Recursive   bool
}

// ParseStage parses a stage-family statement. raw has already been
// classified by Sniff as one of KindCreateStage/Put/Get/List/Remove.
func ParseStage(raw string, kind Kind) (*StageStmt, error) {
	s := newScanner(raw)
	st := &StageStmt{}
	switch kind {
	case KindCreateStage:
		st.Op = StageCreate
		s.eatKeyword("CREATE")
		if s.eatKeyword("OR") {
			s.eatKeyword("REPLACE")
		}
		if s.eatKeyword("TEMPORARY") || s.eatKeyword("TEMP") {
			st.Temporary = true
		}
		if !s.eatKeyword("STAGE") {
			return nil, errf("stage: expected STAGE")
		}
		s.eatKeyword("IF")
		s.eatKeyword("NOT")
		s.eatKeyword("EXISTS")
		name, ok := s.qualifiedName()
		if !ok {
			return nil, errf("stage: expected name")
		}
		st.Name = name
		for !s.eof() {
			switch {
			case s.eatKeyword("URL"):
				s.eatPunct("=")
				if t := s.peek(); t.Kind == String {
					s.i++
					st.URL = strings.Trim(t.Text, "'")
				}
			default:
				s.next()
			}
		}
	case KindPut:
		st.Op = StagePut
		s.eatKeyword("PUT")
		if t := s.peek(); t.Kind == String {
			s.i++
			st.LocalPath = stripFileScheme(strings.Trim(t.Text, "'"))
		}
		s.eatPunct("@")
		name, _ := s.qualifiedName()
		st.Name = name
	case KindGet:
		st.Op = StageGet
		s.eatKeyword("GET")
		s.eatPunct("@")
		name, _ := s.qualifiedName()
		st.Name = name
		if t := s.peek(); t.Kind == String {
			s.i++
			st.LocalPath = stripFileScheme(strings.Trim(t.Text, "'"))
		}
	case KindList:
		st.Op = StageList
		s.eatKeyword("LIST")
		s.eatKeyword("LS")
		s.eatPunct("@")
		name, _ := s.qualifiedName()
		st.Name = name
	case KindRemove:
		st.Op = StageRemove
		s.eatKeyword("REMOVE")
		s.eatKeyword("RM")
		s.eatPunct("@")
		name, _ := s.qualifiedName()
		st.Name = name
		if s.eatKeyword("PATTERN") {
			s.eatPunct("=")
		}
	}
	return st, nil
}

// stripFileScheme removes a leading "file://" from a PUT/GET local path
// operand, the target dialect's required (but filesystem-meaningless)
// scheme prefix.
func stripFileScheme(path string) string {
	return strings.TrimPrefix(path, "file://")
}

// SequenceStmt describes a CREATE SEQUENCE (name, start, increment).
// Nothing in this package fills it, and the AUTOINCREMENT transform emits
// its CREATE SEQUENCE as SQL text rather than as a SequenceStmt.
type SequenceStmt struct {
	Name      string
	StartWith int64
	Increment int64
}

// CreateUserStmt is the parsed form of CREATE USER.
type CreateUserStmt struct {
	Name string
}

// ParseCreateUser parses CREATE USER [IF NOT EXISTS] name ... (remaining
// options are dialect noise the catalog does not need to enforce, per
// spec.md's Non-goal on privilege enforcement).
func ParseCreateUser(raw string) (*CreateUserStmt, error) {
	s := newScanner(raw)
	if !s.eatKeyword("CREATE") || !s.eatKeyword("USER") {
		return nil, errf("create user: expected CREATE USER")
	}
	s.eatKeyword("IF")
	s.eatKeyword("NOT")
	s.eatKeyword("EXISTS")
	name, ok := s.qualifiedName()
	if !ok {
		return nil, errf("create user: expected name")
	}
	return &CreateUserStmt{Name: name}, nil
}
