// Package dsc enumerates the INF modules referenced by an EDK II platform
// description (DSC) and its flash description (FDF).
//
// Only the parts needed for that are understood: [Defines] and DEFINE
// statements, $(VAR) substitution, !include, the !if family of conditionals,
// library class bindings, component entries (with their nested override
// blocks) and FDF "INF" statements. Anything more exotic is refused with
// ErrUnsupported rather than guessed at.
package dsc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"override-validator/internal/edk2path"
	"override-validator/internal/sortutil"
)

const maxIncludeDepth = 32

// Parser accumulates INF references across a DSC, its includes and its FDF.
// A Parser is single use: create one per enumeration.
type Parser struct {
	resolver  *edk2path.Resolver
	inputVars map[string]string
	localVars map[string]string
	logger    *log.Logger

	cond     condStack
	section  string
	braces   int
	depth    int
	infs     []string
	fileKind fileKind
}

type fileKind int

const (
	kindDSC fileKind = iota
	kindFDF
)

// Option configures a Parser.
type Option func(*Parser)

// WithLogger routes parser debug output to l.
func WithLogger(l *log.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser returns a parser resolving includes through r and substituting
// variables from inputVars. inputVars is copied, never modified.
func NewParser(r *edk2path.Resolver, inputVars map[string]string, opts ...Option) *Parser {
	p := &Parser{
		resolver:  r,
		inputVars: make(map[string]string, len(inputVars)),
		localVars: make(map[string]string),
		logger:    log.New(io.Discard),
	}
	for k, v := range inputVars {
		p.inputVars[k] = v
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ParseDSC parses a platform description file.
func (p *Parser) ParseDSC(path string) error {
	p.fileKind = kindDSC
	return p.parseTop(path)
}

// ParseFDF parses a flash description file with the same variable state.
func (p *Parser) ParseFDF(path string) error {
	p.fileKind = kindFDF
	return p.parseTop(path)
}

func (p *Parser) parseTop(path string) error {
	p.cond = nil
	p.section = ""
	p.braces = 0
	if err := p.parseFile(path); err != nil {
		return err
	}
	if len(p.cond) != 0 {
		return fmt.Errorf("%s: unterminated !if block", path)
	}
	return nil
}

// INFs returns the referenced INF paths, workspace-relative with forward
// slashes, de-duplicated case-insensitively in first-seen order.
func (p *Parser) INFs() []string {
	return sortutil.DedupeFold(p.infs)
}

// Define looks a variable up in the parsed defines, then the input variables.
func (p *Parser) Define(name string) (string, bool) {
	if v, ok := p.localVars[name]; ok {
		return v, true
	}
	v, ok := p.inputVars[name]
	return v, ok
}

func (p *Parser) parseFile(path string) error {
	if p.depth >= maxIncludeDepth {
		return fmt.Errorf("%s: include nesting deeper than %d", path, maxIncludeDepth)
	}
	p.depth++
	defer func() { p.depth-- }()

	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p.logger.Debug("parsing descriptor", "file", path)
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := p.parseLine(path, sc.Text()); err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	return sc.Err()
}

func (p *Parser) parseLine(path, raw string) error {
	l := stripComment(raw)
	if l == "" {
		return nil
	}
	if l[0] == '!' {
		return p.directive(path, l)
	}
	if !p.cond.active() {
		return nil
	}
	l = p.substitute(l)

	if l[0] == '[' {
		p.enterSection(l)
		return nil
	}
	if name, value, ok := defineStatement(l); ok {
		p.localVars[name] = value
		return nil
	}

	switch {
	case p.section == "DEFINES":
		if name, value, ok := strings.Cut(l, "="); ok {
			p.localVars[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	case p.fileKind == kindFDF:
		p.fdfLine(l)
	case strings.HasPrefix(p.section, "LIBRARYCLASSES"):
		if inf := libraryINF(l); isINF(inf) {
			p.add(inf, "library class")
		}
	case strings.HasPrefix(p.section, "COMPONENTS"):
		p.componentLine(l)
	}
	return nil
}

func (p *Parser) directive(path, l string) error {
	tokens := strings.Fields(l)
	name := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch name {
	case "!ifdef", "!ifndef":
		if len(args) != 1 {
			return fmt.Errorf("%w: %s", ErrUnsupported, l)
		}
		if !p.cond.active() {
			p.cond.push(false)
			return nil
		}
		_, defined := p.Define(varName(args[0]))
		p.cond.push(defined == (name == "!ifdef"))
		return nil
	case "!if":
		if !p.cond.active() {
			p.cond.push(false)
			return nil
		}
		v, err := evalExpr(p.substituteAll(args))
		if err != nil {
			return err
		}
		p.cond.push(v)
		return nil
	case "!elseif":
		return p.cond.elseIf(func() (bool, error) { return evalExpr(p.substituteAll(args)) })
	case "!else":
		return p.cond.flip()
	case "!endif":
		return p.cond.pop()
	}

	if !p.cond.active() {
		return nil
	}
	switch name {
	case "!include":
		if len(args) == 0 {
			return errors.New("!include without a file")
		}
		inc := p.substitute(strings.Join(args, " "))
		full := p.findInclude(path, inc)
		if full == "" {
			return fmt.Errorf("include %q not found", inc)
		}
		// Includes keep the current section; braces do not span files.
		braces := p.braces
		err := p.parseFile(full)
		p.braces = braces
		return err
	case "!error":
		return fmt.Errorf("!error: %s", p.substitute(strings.Join(args, " ")))
	}
	return fmt.Errorf("%w: directive %s", ErrUnsupported, tokens[0])
}

func (p *Parser) enterSection(l string) {
	header := strings.TrimSpace(strings.Trim(l, "[]"))
	first, _, _ := strings.Cut(header, ",")
	kind, _, _ := strings.Cut(strings.TrimSpace(first), ".")
	p.section = strings.ToUpper(strings.TrimSpace(kind))
	p.braces = 0
	p.logger.Debug("new section", "section", p.section, "header", header)
}

func (p *Parser) componentLine(l string) {
	if p.braces > 0 {
		if inf := libraryINF(l); isINF(inf) {
			p.add(inf, "component override library")
		}
	} else if mod := strings.TrimRight(strings.Fields(l)[0], "{"); isINF(mod) {
		p.add(mod, "component")
	}
	p.braces += strings.Count(l, "{") - strings.Count(l, "}")
	if p.braces < 0 {
		p.braces = 0
	}
}

func (p *Parser) fdfLine(l string) {
	fields := strings.Fields(l)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "INF") {
		return
	}
	for i := len(fields) - 1; i > 0; i-- {
		if isINF(fields[i]) {
			p.add(fields[i], "flash")
			return
		}
	}
}

func (p *Parser) add(path, what string) {
	rel := edk2path.Canonical(path)
	if rel == "" {
		return
	}
	p.logger.Debug("found module", "kind", what, "inf", rel)
	p.infs = append(p.infs, rel)
}

// findInclude resolves an include against the workspace, the including
// file's directory, then the package paths.
func (p *Parser) findInclude(from, inc string) string {
	if filepath.IsAbs(inc) && fileExists(inc) {
		return inc
	}
	native := filepath.FromSlash(edk2path.Canonical(inc))
	for _, cand := range []string{
		filepath.Join(p.resolver.Workspace(), native),
		filepath.Join(filepath.Dir(from), native),
	} {
		if fileExists(cand) {
			return cand
		}
	}
	return p.resolver.ToAbsolute(inc)
}

// substitute replaces every $(NAME) with its value; unknown names become "".
// TRUE/FALSE values are upper-cased so comparisons are stable.
func (p *Parser) substitute(l string) string {
	var b strings.Builder
	for {
		start := strings.Index(l, "$(")
		if start < 0 {
			b.WriteString(l)
			return b.String()
		}
		end := strings.IndexByte(l[start:], ')')
		if end < 0 {
			b.WriteString(l)
			return b.String()
		}
		end += start
		b.WriteString(l[:start])
		name := l[start+2 : end]
		v, ok := p.Define(name)
		if !ok {
			p.logger.Debug("unknown variable", "name", name)
		}
		if u := strings.ToUpper(v); u == "TRUE" || u == "FALSE" {
			v = u
		}
		b.WriteString(v)
		l = l[end+1:]
	}
}

func (p *Parser) substituteAll(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = p.substitute(t)
	}
	return out
}

func stripComment(l string) string {
	if i := strings.IndexByte(l, '#'); i >= 0 {
		l = l[:i]
	}
	return strings.TrimSpace(l)
}

// defineStatement matches "DEFINE NAME = value", valid in any section.
func defineStatement(l string) (name, value string, ok bool) {
	fields := strings.Fields(l)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "DEFINE") {
		return "", "", false
	}
	rest := strings.TrimSpace(l[len(fields[0]):])
	name, value, ok = strings.Cut(rest, "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(name), strings.TrimSpace(value), true
}

// libraryINF extracts the INF from "Class|Path.inf" or a bare "Path.inf".
func libraryINF(l string) string {
	if _, inst, ok := strings.Cut(l, "|"); ok {
		inst, _, _ = strings.Cut(inst, "|")
		return strings.TrimSpace(inst)
	}
	return strings.Fields(l)[0]
}

func isINF(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".inf")
}

func varName(tok string) string {
	if strings.HasPrefix(tok, "$(") && strings.HasSuffix(tok, ")") {
		return tok[2 : len(tok)-1]
	}
	return tok
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// Enumerate returns the INFs referenced by the platform dscRel and its flash
// description. fdfRel, when set, names the FDF explicitly and must exist;
// otherwise FLASH_DEFINITION from the DSC defines is used and a missing file
// only logs a warning.
func Enumerate(r *edk2path.Resolver, vars map[string]string, dscRel, fdfRel string, opts ...Option) ([]string, error) {
	p := NewParser(r, vars, opts...)
	dscPath := r.ToAbsolute(dscRel)
	if dscPath == "" {
		return nil, fmt.Errorf("platform %s: %w", dscRel, os.ErrNotExist)
	}
	if err := p.ParseDSC(dscPath); err != nil {
		return nil, err
	}

	explicit := fdfRel != ""
	if !explicit {
		fdfRel, _ = p.Define("FLASH_DEFINITION")
	}
	if fdfRel != "" {
		fdfPath := r.ToAbsolute(fdfRel)
		switch {
		case fdfPath != "":
			if err := p.ParseFDF(fdfPath); err != nil {
				return nil, err
			}
		case explicit:
			return nil, fmt.Errorf("flash definition %s: %w", fdfRel, os.ErrNotExist)
		default:
			p.logger.Warn("flash definition not found", "fdf", fdfRel)
		}
	}
	infs := p.INFs()
	p.logger.Info("enumerated platform modules", "dsc", dscRel, "fdf", fdfRel, "count", len(infs))
	return infs, nil
}
