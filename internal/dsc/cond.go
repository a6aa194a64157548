package dsc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupported marks descriptor syntax this parser refuses to interpret.
var ErrUnsupported = errors.New("unsupported descriptor syntax")

// frame is one !if level. active is whether the current branch is taken;
// taken records that some branch of this level already ran.
type frame struct {
	active bool
	taken  bool
	parent bool // enclosing levels were all active when this level opened
}

type condStack []frame

func (s condStack) active() bool {
	if len(s) == 0 {
		return true
	}
	top := s[len(s)-1]
	return top.parent && top.active
}

func (s *condStack) push(v bool) {
	parent := s.active()
	*s = append(*s, frame{active: v, taken: v, parent: parent})
}

func (s *condStack) elseIf(eval func() (bool, error)) error {
	if len(*s) == 0 {
		return errors.New("!elseif without !if")
	}
	top := &(*s)[len(*s)-1]
	if top.taken || !top.parent {
		top.active = false
		return nil
	}
	v, err := eval()
	if err != nil {
		return err
	}
	top.active, top.taken = v, v
	return nil
}

func (s *condStack) flip() error {
	if len(*s) == 0 {
		return errors.New("!else without !if")
	}
	top := &(*s)[len(*s)-1]
	top.active = !top.taken
	top.taken = true
	return nil
}

func (s *condStack) pop() error {
	if len(*s) == 0 {
		return errors.New("!endif without !if")
	}
	*s = (*s)[:len(*s)-1]
	return nil
}

// evalExpr evaluates the operands of an !if or !elseif that have already had
// their variables substituted. Accepted shapes are a single boolean operand
// (optionally negated with a leading '!') or "A OP B".
func evalExpr(tokens []string) (bool, error) {
	switch len(tokens) {
	case 1:
		return evalBool(tokens[0])
	case 3:
		return compare(unquote(tokens[0]), tokens[1], unquote(tokens[2]))
	}
	return false, fmt.Errorf("%w: conditional %q", ErrUnsupported, strings.Join(tokens, " "))
}

func evalBool(tok string) (bool, error) {
	neg := false
	for strings.HasPrefix(tok, "!") {
		neg = !neg
		tok = tok[1:]
	}
	v := strings.ToUpper(unquote(tok))
	var b bool
	switch v {
	case "TRUE":
		b = true
	case "FALSE", "":
		b = false
	default:
		n, err := toInt(v)
		if err != nil {
			return false, fmt.Errorf("%w: boolean operand %q", ErrUnsupported, tok)
		}
		b = n != 0
	}
	return b != neg, nil
}

func compare(a, op, b string) (bool, error) {
	switch op {
	case "==":
		return strings.EqualFold(a, b), nil
	case "!=":
		return !strings.EqualFold(a, b), nil
	case "<", "<=", ">", ">=":
	default:
		return false, fmt.Errorf("%w: operator %q", ErrUnsupported, op)
	}
	x, err := toInt(a)
	if err != nil {
		return false, fmt.Errorf("%w: numeric operand %q", ErrUnsupported, a)
	}
	y, err := toInt(b)
	if err != nil {
		return false, fmt.Errorf("%w: numeric operand %q", ErrUnsupported, b)
	}
	switch op {
	case "<":
		return x < y, nil
	case "<=":
		return x <= y, nil
	case ">":
		return x > y, nil
	}
	return x >= y, nil
}

// toInt parses decimal or 0x-prefixed hexadecimal.
func toInt(s string) (int64, error) {
	if strings.HasPrefix(strings.ToUpper(s), "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
