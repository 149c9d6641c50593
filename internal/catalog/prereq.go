package catalog

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Prerequisite expressions arrive as free text like
// "CSCI 1200 and (MATH 1010 or MATH 2010)". The check is best effort:
// text the parser cannot make sense of means "no check", never a
// rejection.

type prereqTokenType int

const (
	tokCourse prereqTokenType = iota
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokEnd
)

type prereqToken struct {
	typ   prereqTokenType
	value string
}

// prereqExpr is a node of the parsed expression tree.
type prereqExpr struct {
	course string       // set for leaves, normalized "SUBJ-1200"
	op     string       // "and" / "or" for interior nodes
	kids   []prereqExpr
}

func (e prereqExpr) eval(completed map[string]bool) bool {
	if e.course != "" {
		return completed[e.course]
	}
	switch e.op {
	case "and":
		for _, k := range e.kids {
			if !k.eval(completed) {
				return false
			}
		}
		return true
	case "or":
		for _, k := range e.kids {
			if k.eval(completed) {
				return true
			}
		}
		return false
	}
	return false
}

// Satisfied evaluates the prerequisite text against the set of completed
// course ids ("SUBJ-1200" form). checked=false means the text was empty
// or unparseable and no judgement could be made.
func Satisfied(text string, completed []string) (met bool, checked bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return true, false
	}
	tokens, err := tokenizePrereq(text)
	if err != nil {
		return true, false
	}
	expr, err := parsePrereq(&tokens)
	if err != nil {
		return true, false
	}

	set := make(map[string]bool, len(completed))
	for _, id := range completed {
		set[normalizeCourseRef(id)] = true
	}
	return expr.eval(set), true
}

func normalizeCourseRef(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	return s
}

func tokenizePrereq(text string) ([]prereqToken, error) {
	var tokens []prereqToken
	words := splitPrereqWords(text)

	i := 0
	for i < len(words) {
		w := words[i]
		switch strings.ToLower(w) {
		case "(":
			tokens = append(tokens, prereqToken{typ: tokLParen})
			i++
		case ")":
			tokens = append(tokens, prereqToken{typ: tokRParen})
			i++
		case "and", "&&", "&":
			tokens = append(tokens, prereqToken{typ: tokAnd})
			i++
		case "or", "||", "|":
			tokens = append(tokens, prereqToken{typ: tokOr})
			i++
		default:
			// A course reference is SUBJECT followed by a number word.
			if isSubjectWord(w) && i+1 < len(words) && isNumberWord(words[i+1]) {
				tokens = append(tokens, prereqToken{
					typ:   tokCourse,
					value: normalizeCourseRef(w + " " + words[i+1]),
				})
				i += 2
				continue
			}
			return nil, fmt.Errorf("prereq: unexpected word %q", w)
		}
	}
	tokens = append(tokens, prereqToken{typ: tokEnd})
	return tokens, nil
}

func splitPrereqWords(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == '(' || r == ')':
			flush()
			words = append(words, string(r))
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

func isSubjectWord(w string) bool {
	if len(w) < 2 || len(w) > 4 {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isNumberWord(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func eatPrereq(tokens *[]prereqToken, typ prereqTokenType) (prereqToken, error) {
	if len(*tokens) == 0 {
		return prereqToken{}, errors.New("prereq: no token to eat")
	}
	if (*tokens)[0].typ != typ {
		return prereqToken{}, errors.New("prereq: unexpected token")
	}
	tok := (*tokens)[0]
	*tokens = (*tokens)[1:]
	return tok, nil
}

// parsePrereq parses expr := term { "or" term }.
func parsePrereq(tokens *[]prereqToken) (prereqExpr, error) {
	expr, err := parseTerm(tokens)
	if err != nil {
		return prereqExpr{}, err
	}
	kids := []prereqExpr{expr}
	for len(*tokens) > 0 && (*tokens)[0].typ == tokOr {
		if _, err := eatPrereq(tokens, tokOr); err != nil {
			return prereqExpr{}, err
		}
		next, err := parseTerm(tokens)
		if err != nil {
			return prereqExpr{}, err
		}
		kids = append(kids, next)
	}
	if len(*tokens) > 0 && (*tokens)[0].typ != tokEnd && (*tokens)[0].typ != tokRParen {
		return prereqExpr{}, errors.New("prereq: trailing tokens")
	}
	if len(kids) == 1 {
		return kids[0], nil
	}
	return prereqExpr{op: "or", kids: kids}, nil
}

// parseTerm parses term := factor { "and" factor }.
func parseTerm(tokens *[]prereqToken) (prereqExpr, error) {
	expr, err := parseFactor(tokens)
	if err != nil {
		return prereqExpr{}, err
	}
	kids := []prereqExpr{expr}
	for len(*tokens) > 0 && (*tokens)[0].typ == tokAnd {
		if _, err := eatPrereq(tokens, tokAnd); err != nil {
			return prereqExpr{}, err
		}
		next, err := parseFactor(tokens)
		if err != nil {
			return prereqExpr{}, err
		}
		kids = append(kids, next)
	}
	if len(kids) == 1 {
		return kids[0], nil
	}
	return prereqExpr{op: "and", kids: kids}, nil
}

// parseFactor parses factor := "(" expr ")" | course.
func parseFactor(tokens *[]prereqToken) (prereqExpr, error) {
	if len(*tokens) == 0 {
		return prereqExpr{}, errors.New("prereq: unexpected end of expression")
	}
	if (*tokens)[0].typ == tokLParen {
		if _, err := eatPrereq(tokens, tokLParen); err != nil {
			return prereqExpr{}, err
		}
		expr, err := parsePrereq(tokens)
		if err != nil {
			return prereqExpr{}, err
		}
		if _, err := eatPrereq(tokens, tokRParen); err != nil {
			return prereqExpr{}, err
		}
		return expr, nil
	}
	tok, err := eatPrereq(tokens, tokCourse)
	if err != nil {
		return prereqExpr{}, err
	}
	return prereqExpr{course: tok.value}, nil
}
