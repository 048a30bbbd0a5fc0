// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lpmodel

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// WriteLP writes the model in the conventional CPLEX LP text dialect: the
// objective row under its sense keyword, named constraint rows under
// "Subject To", a "Bounds" section for non-default bounds, a "General"
// section listing integer variables, and "End". It is a pure format
// transform with no solving side effect and may be called in any state.
func (mb *Builder) WriteLP(w io.Writer) error {
	var sb strings.Builder

	if mb.sense == Maximize {
		sb.WriteString("Maximize\n")
	} else {
		sb.WriteString("Minimize\n")
	}
	sb.WriteString(" obj:")
	writeTerms(&sb, mb, mb.obj, mb.objOffset)
	sb.WriteString("\nSubject To\n")

	for _, cd := range mb.constrs {
		sb.WriteString(" ")
		sb.WriteString(cd.name)
		sb.WriteString(":")
		writeTerms(&sb, mb, cd.coeffs, 0)
		fmt.Fprintf(&sb, " %v %s\n", cd.op, num(cd.rhs))
	}

	var bounds []string
	for _, vd := range mb.vars {
		if line := boundLine(vd); line != "" {
			bounds = append(bounds, line)
		}
	}
	if len(bounds) > 0 {
		sb.WriteString("Bounds\n")
		for _, line := range bounds {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	var generals []string
	for _, vd := range mb.vars {
		if vd.domain == Integer {
			generals = append(generals, vd.name)
		}
	}
	if len(generals) > 0 {
		sb.WriteString("General\n")
		for _, name := range generals {
			sb.WriteString(" ")
			sb.WriteString(name)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("End\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// ExportLP writes the model in LP format to a new file at path.
func (mb *Builder) ExportLP(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mb.WriteLP(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// writeTerms appends " c1 v1 + c2 v2 ... + offset" in variable insertion
// order, with the sign folded into the separator.
func writeTerms(sb *strings.Builder, mb *Builder, coeffs map[VarIndex]float64, offset float64) {
	first := true
	emit := func(v float64, name string) {
		switch {
		case first && v < 0:
			sb.WriteString(" -")
			first = false
		case first:
			sb.WriteString(" ")
			first = false
		case v < 0:
			sb.WriteString(" - ")
		default:
			sb.WriteString(" + ")
		}
		sb.WriteString(num(math.Abs(v)))
		if name != "" {
			sb.WriteString(" ")
			sb.WriteString(name)
		}
	}
	for j := range mb.vars {
		if c, ok := coeffs[VarIndex(j)]; ok {
			emit(c, mb.vars[j].name)
		}
	}
	if offset != 0 {
		emit(offset, "")
	}
}

func boundLine(vd varData) string {
	negInf, posInf := math.IsInf(vd.lb, -1), math.IsInf(vd.ub, 1)
	switch {
	case vd.lb == 0 && posInf:
		return "" // the LP-format default bound
	case negInf && posInf:
		return " " + vd.name + " free"
	case vd.lb == vd.ub:
		return " " + vd.name + " = " + num(vd.lb)
	case posInf:
		return " " + vd.name + " >= " + num(vd.lb)
	case negInf:
		return " -infinity <= " + vd.name + " <= " + num(vd.ub)
	case vd.lb == 0:
		return " " + vd.name + " <= " + num(vd.ub)
	default:
		return " " + num(vd.lb) + " <= " + vd.name + " <= " + num(vd.ub)
	}
}

// ReadLP parses a model from the CPLEX LP text dialect written by WriteLP.
// It is tolerant of token spacing, operator spellings (`<`, `<=`, `=<` and
// their mirrors), `\`-comments, and case-insensitive section keywords.
// Variables first seen in an expression get the format's default bounds
// [0, +infinity); Bounds, General, and Binary sections then adjust them.
func ReadLP(r io.Reader) (*Builder, error) {
	toks, err := lexLP(r)
	if err != nil {
		return nil, err
	}
	p := &lpParser{
		toks: toks,
		mb:   NewBuilder(),
		vars: make(map[string]Variable),
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.mb, nil
}

// ReadLPFile parses a model from the LP-format file at path.
func ReadLPFile(path string) (*Builder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLP(f)
}

type tokKind int

const (
	tokNum tokKind = iota
	tokIdent
	tokRel
	tokPlus
	tokMinus
	tokColon
)

type lpToken struct {
	kind tokKind
	text string
	numv float64
	op   Op
	bol  bool // first token of its source line
	line int
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || r == '.' || r == '#' || (r >= '0' && r <= '9')
}

func lexLP(r io.Reader) ([]lpToken, error) {
	var toks []lpToken
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '\\'); i >= 0 {
			line = line[:i]
		}
		runes := []rune(line)
		bol := true
		add := func(t lpToken) {
			t.bol, t.line = bol, lineNo
			bol = false
			toks = append(toks, t)
		}
		for i := 0; i < len(runes); {
			c := runes[i]
			switch {
			case c == ' ' || c == '\t' || c == '\r':
				i++
			case c == '*':
				i++ // explicit multiplication sign, insignificant
			case c == '+':
				add(lpToken{kind: tokPlus})
				i++
			case c == '-':
				add(lpToken{kind: tokMinus})
				i++
			case c == ':':
				add(lpToken{kind: tokColon})
				i++
			case c == '<' || c == '>' || c == '=':
				op := Equal
				j := i + 1
				switch {
				case c == '<':
					op = LessOrEqual
				case c == '>':
					op = GreaterOrEqual
				case j < len(runes) && runes[j] == '<':
					op = LessOrEqual
				case j < len(runes) && runes[j] == '>':
					op = GreaterOrEqual
				}
				if j < len(runes) && (runes[j] == '=' || runes[j] == '<' || runes[j] == '>') {
					j++
				}
				add(lpToken{kind: tokRel, op: op})
				i = j
			case c >= '0' && c <= '9' || c == '.':
				j := i
				for j < len(runes) && (runes[j] >= '0' && runes[j] <= '9' || runes[j] == '.') {
					j++
				}
				if j < len(runes) && (runes[j] == 'e' || runes[j] == 'E') {
					k := j + 1
					if k < len(runes) && (runes[k] == '+' || runes[k] == '-') {
						k++
					}
					if k < len(runes) && runes[k] >= '0' && runes[k] <= '9' {
						for k < len(runes) && runes[k] >= '0' && runes[k] <= '9' {
							k++
						}
						j = k
					}
				}
				text := string(runes[i:j])
				v, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: bad number %q", lineNo, text)
				}
				add(lpToken{kind: tokNum, numv: v, text: text})
				i = j
			case isIdentStart(c):
				j := i
				for j < len(runes) && isIdentChar(runes[j]) {
					j++
				}
				add(lpToken{kind: tokIdent, text: string(runes[i:j])})
				i = j
			default:
				return nil, fmt.Errorf("line %d: unexpected character %q", lineNo, string(c))
			}
		}
	}
	return toks, sc.Err()
}

type lpParser struct {
	toks []lpToken
	pos  int
	mb   *Builder
	vars map[string]Variable
}

func (p *lpParser) done() bool { return p.pos >= len(p.toks) }

func (p *lpParser) peek() lpToken { return p.toks[p.pos] }

func (p *lpParser) next() lpToken {
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *lpParser) errf(format string, args ...any) error {
	line := 0
	if !p.done() {
		line = p.peek().line
	} else if len(p.toks) > 0 {
		line = p.toks[len(p.toks)-1].line
	}
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

// section returns the canonical name of the section keyword starting at the
// current position, or "". Section keywords are only recognized at the
// beginning of a line, so variables may reuse their spellings elsewhere.
func (p *lpParser) section() string {
	if p.done() {
		return ""
	}
	t := p.peek()
	if t.kind != tokIdent || !t.bol {
		return ""
	}
	switch strings.ToLower(t.text) {
	case "maximize", "maximise", "max":
		return "maximize"
	case "minimize", "minimise", "min":
		return "minimize"
	case "subject", "such":
		if p.pos+1 < len(p.toks) {
			n := p.toks[p.pos+1]
			if n.kind == tokIdent {
				w := strings.ToLower(n.text)
				if w == "to" || w == "that" {
					return "subjectto"
				}
			}
		}
		return ""
	case "st", "s.t.":
		return "subjectto"
	case "bounds", "bound":
		return "bounds"
	case "general", "generals", "gen":
		return "general"
	case "binary", "binaries", "bin":
		return "binary"
	case "end":
		return "end"
	}
	return ""
}

func (p *lpParser) skipSection(name string) {
	p.pos++
	if name == "subjectto" && !p.done() && p.toks[p.pos].kind == tokIdent {
		w := strings.ToLower(p.toks[p.pos].text)
		if w == "to" || w == "that" {
			p.pos++
		}
	}
}

func (p *lpParser) varOf(name string) (Variable, error) {
	if v, ok := p.vars[name]; ok {
		return v, nil
	}
	v, err := p.mb.NewVar(name, 0, math.Inf(1))
	if err != nil {
		return Variable{}, err
	}
	p.vars[name] = v
	return v, nil
}

func (p *lpParser) parse() error {
	sec := p.section()
	switch sec {
	case "maximize", "minimize":
		p.skipSection(sec)
	default:
		return p.errf("model must start with Maximize or Minimize")
	}

	p.skipLabel()
	obj, err := p.parseExpr()
	if err != nil {
		return err
	}
	if sec == "maximize" {
		err = p.mb.Maximize(obj)
	} else {
		err = p.mb.Minimize(obj)
	}
	if err != nil {
		return err
	}

	if p.section() != "subjectto" {
		return p.errf("expected Subject To section")
	}
	p.skipSection("subjectto")
	for {
		if s := p.section(); s != "" || p.done() {
			break
		}
		if err := p.parseConstraint(); err != nil {
			return err
		}
	}

	for {
		sec := p.section()
		switch sec {
		case "bounds":
			p.skipSection(sec)
			if err := p.parseBounds(); err != nil {
				return err
			}
		case "general", "binary":
			p.skipSection(sec)
			if err := p.parseDomainList(sec == "binary"); err != nil {
				return err
			}
		case "end":
			p.skipSection(sec)
			if !p.done() {
				return p.errf("unexpected content after End")
			}
			return nil
		case "":
			if p.done() {
				return nil
			}
			return p.errf("unexpected token %q", p.peek().text)
		default:
			return p.errf("unexpected section %q", sec)
		}
	}
}

// skipLabel consumes a leading "name :" if present and returns the name.
func (p *lpParser) skipLabel() string {
	if p.pos+1 < len(p.toks) && p.toks[p.pos].kind == tokIdent && p.toks[p.pos+1].kind == tokColon {
		name := p.toks[p.pos].text
		p.pos += 2
		return name
	}
	return ""
}

// parseExpr consumes a linear expression, stopping at a relational operator,
// a section keyword at the beginning of a line, or the end of input.
func (p *lpParser) parseExpr() (*LinearExpr, error) {
	expr := NewLinearExpr()
	sign := 1.0
	pending := false // a sign has been consumed but no term yet
	for !p.done() {
		if p.section() != "" {
			break
		}
		t := p.peek()
		switch t.kind {
		case tokPlus:
			p.next()
			pending = true
		case tokMinus:
			p.next()
			sign = -sign
			pending = true
		case tokNum:
			p.next()
			coeff := sign * t.numv
			if !p.done() && p.peek().kind == tokIdent && p.section() == "" {
				v, err := p.varOf(p.next().text)
				if err != nil {
					return nil, err
				}
				expr.AddTerm(v, coeff)
			} else {
				expr.AddConstant(coeff)
			}
			sign, pending = 1, false
		case tokIdent:
			p.next()
			v, err := p.varOf(t.text)
			if err != nil {
				return nil, err
			}
			expr.AddTerm(v, sign)
			sign, pending = 1, false
		default:
			if pending {
				return nil, p.errf("dangling sign in expression")
			}
			return expr, nil
		}
	}
	if pending {
		return nil, p.errf("dangling sign in expression")
	}
	return expr, nil
}

func (p *lpParser) parseConstraint() error {
	name := p.skipLabel()
	expr, err := p.parseExpr()
	if err != nil {
		return err
	}
	if p.done() || p.peek().kind != tokRel {
		return p.errf("constraint %q is missing its relational operator", name)
	}
	op := p.next().op
	rhs, err := p.parseNumber()
	if err != nil {
		return err
	}
	_, err = p.mb.AddConstraint(name, expr, op, rhs)
	return err
}

// parseNumber consumes an optionally signed number; "infinity" and "inf"
// spell the infinities.
func (p *lpParser) parseNumber() (float64, error) {
	sign := 1.0
	for !p.done() && (p.peek().kind == tokPlus || p.peek().kind == tokMinus) {
		if p.next().kind == tokMinus {
			sign = -sign
		}
	}
	if p.done() {
		return 0, p.errf("expected a number")
	}
	t := p.next()
	switch {
	case t.kind == tokNum:
		return sign * t.numv, nil
	case t.kind == tokIdent && isInfWord(t.text):
		return sign * math.Inf(1), nil
	}
	return 0, p.errf("expected a number, got %q", t.text)
}

// mirrorOp flips an operator to read its bound from the other side:
// "2 <= x" means "x >= 2".
func mirrorOp(op Op) Op {
	switch op {
	case LessOrEqual:
		return GreaterOrEqual
	case GreaterOrEqual:
		return LessOrEqual
	}
	return op
}

func isInfWord(s string) bool {
	switch strings.ToLower(s) {
	case "inf", "infinity":
		return true
	}
	return false
}

func (p *lpParser) startsNumber() bool {
	if p.done() {
		return false
	}
	t := p.peek()
	return t.kind == tokNum || t.kind == tokPlus || t.kind == tokMinus ||
		(t.kind == tokIdent && isInfWord(t.text))
}

// parseBounds consumes bound lines until the next section: "v free",
// "v <= num", "num <= v <= num", "v = num", and the mirrored >= forms.
func (p *lpParser) parseBounds() error {
	for !p.done() && p.section() == "" {
		if p.startsNumber() {
			// num rel v [rel num]
			lo, err := p.parseNumber()
			if err != nil {
				return err
			}
			if p.done() || p.peek().kind != tokRel {
				return p.errf("expected operator in bound")
			}
			op := p.next().op
			if p.done() || p.peek().kind != tokIdent {
				return p.errf("expected variable name in bound")
			}
			v, err := p.varOf(p.next().text)
			if err != nil {
				return err
			}
			if err := p.applyBound(v, mirrorOp(op), lo); err != nil {
				return err
			}
			if !p.done() && p.peek().kind == tokRel {
				op := p.next().op
				hi, err := p.parseNumber()
				if err != nil {
					return err
				}
				if err := p.applyBound(v, op, hi); err != nil {
					return err
				}
			}
			continue
		}
		if p.peek().kind != tokIdent {
			return p.errf("unexpected token in Bounds section")
		}
		v, err := p.varOf(p.next().text)
		if err != nil {
			return err
		}
		if !p.done() && p.peek().kind == tokIdent && strings.EqualFold(p.peek().text, "free") {
			p.next()
			p.setBounds(v, math.Inf(-1), math.Inf(1))
			continue
		}
		if p.done() || p.peek().kind != tokRel {
			return p.errf("expected operator in bound for %q", v.Name())
		}
		op := p.next().op
		val, err := p.parseNumber()
		if err != nil {
			return err
		}
		if err := p.applyBound(v, op, val); err != nil {
			return err
		}
	}
	return nil
}

// applyBound interprets "v op val": <= sets the upper bound, >= the lower,
// and = fixes the variable.
func (p *lpParser) applyBound(v Variable, op Op, val float64) error {
	vd := &p.mb.vars[v.ind]
	switch op {
	case LessOrEqual:
		vd.ub = val
	case GreaterOrEqual:
		vd.lb = val
	case Equal:
		vd.lb, vd.ub = val, val
	}
	if vd.lb > vd.ub {
		return fmt.Errorf("variable %q bounds [%v,%v]: %w", vd.name, vd.lb, vd.ub, ErrInvalidBounds)
	}
	return nil
}

func (p *lpParser) setBounds(v Variable, lb, ub float64) {
	vd := &p.mb.vars[v.ind]
	vd.lb, vd.ub = lb, ub
}

func (p *lpParser) parseDomainList(binary bool) error {
	for !p.done() && p.section() == "" {
		if p.peek().kind != tokIdent {
			return p.errf("expected variable name in domain section")
		}
		v, err := p.varOf(p.next().text)
		if err != nil {
			return err
		}
		vd := &p.mb.vars[v.ind]
		vd.domain = Integer
		if binary {
			vd.lb, vd.ub = 0, 1
		}
	}
	return nil
}
