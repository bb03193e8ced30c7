package sqlparse

import (
	"strings"

	"fsnow/internal/fserr"
)

// Parse classifies and parses one already variable-inlined target-dialect
// statement into a Statement. It never touches the host connection; it is
// a pure function from text to AST, matching spec.md §2's description of
// the parser adapter as a library-shaped dependency.
func Parse(raw string) (*Statement, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ";"))
	if trimmed == "" {
		return &Statement{Kind: KindGeneric, Raw: raw, Generic: trimmed}, nil
	}
	kind := Sniff(trimmed)
	stmt := &Statement{Kind: kind, Raw: raw}

	switch kind {
	case KindMerge:
		m, err := ParseMerge(trimmed)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.Merge = m
	case KindCopyInto:
		c, err := ParseCopyInto(trimmed)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.CopyInto = c
	case KindCreateStage, KindPut, KindGet, KindList, KindRemove:
		st, err := ParseStage(trimmed, kind)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.Stage = st
	case KindCreateUser:
		u, err := ParseCreateUser(trimmed)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.User = u
	case KindShow:
		sh, err := ParseShow(trimmed)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.Show = sh
	case KindDescribe:
		d, err := ParseDescribe(trimmed)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.Describe = d
	case KindSet:
		set, err := parseSet(trimmed)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.SetVar = set
	case KindUnset:
		name, err := parseUnset(trimmed)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.UnsetVar = name
	case KindUse:
		u, err := parseUse(trimmed)
		if err != nil {
			return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
		}
		stmt.UseTarget = u
	default:
		stmt.Generic = trimmed
	}
	return stmt, nil
}

func parseSet(raw string) (*SetStmt, error) {
	s := newScanner(raw)
	if !s.eatKeyword("SET") {
		return nil, errf("set: expected SET")
	}
	name, ok := s.identText()
	if !ok {
		return nil, errf("set: expected variable name")
	}
	if !s.eatPunct("=") {
		return nil, errf("set: expected '='")
	}
	return &SetStmt{Name: name, Value: s.rest()}, nil
}

func parseUnset(raw string) (string, error) {
	s := newScanner(raw)
	if !s.eatKeyword("UNSET") {
		return "", errf("unset: expected UNSET")
	}
	name, ok := s.identText()
	if !ok {
		return "", errf("unset: expected variable name")
	}
	return name, nil
}

func parseUse(raw string) (*UseStmt, error) {
	s := newScanner(raw)
	if !s.eatKeyword("USE") {
		return nil, errf("use: expected USE")
	}
	u := &UseStmt{}
	if s.eatKeyword("SCHEMA") {
		u.IsSchema = true
		name, ok := s.qualifiedName()
		if !ok {
			return nil, errf("use schema: expected name")
		}
		parts := strings.SplitN(name, ".", 2)
		if len(parts) == 2 {
			u.Database, u.Schema = parts[0], parts[1]
		} else {
			u.Schema = parts[0]
		}
		return u, nil
	}
	s.eatKeyword("DATABASE")
	name, ok := s.qualifiedName()
	if !ok {
		return nil, errf("use database: expected name")
	}
	u.Database = name
	return u, nil
}
