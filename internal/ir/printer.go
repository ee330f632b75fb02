package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Print renders a module as textual IR using a strings.Builder: one
// function per paragraph, one instruction per line, with attribute
// annotations appended after the signature.
func Print(m *Module) string {
	var b strings.Builder
	for i, fn := range m.Functions {
		if i > 0 {
			b.WriteByte('\n')
		}
		PrintFunction(&b, fn)
	}
	return b.String()
}

// PrintFunction renders a single function.
func PrintFunction(b *strings.Builder, fn *Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		ann := attrAnnotations(fn.ArgAttrs[i])
		if ann != "" {
			ann = " " + ann
		}
		params[i] = fmt.Sprintf("%s %s%s", p.Ty.String(), p.Name, ann)
	}
	kw := "define"
	if fn.External {
		kw = "declare"
	}
	retAnn := attrAnnotations(fn.RetAttrs)
	if retAnn != "" {
		retAnn = " " + retAnn
	}
	fnAnn := attrAnnotations(fn.Attrs)
	if fnAnn != "" {
		fnAnn = " " + fnAnn
	}
	fmt.Fprintf(b, "%s %s @%s(%s)%s%s", kw, fn.ReturnType.String(), fn.Name, strings.Join(params, ", "), retAnn, fnAnn)
	if fn.External {
		b.WriteByte('\n')
		return
	}
	b.WriteString(" {\n")
	for _, blk := range fn.Blocks {
		fmt.Fprintf(b, "%s:\n", blk.Label)
		for _, inst := range blk.Instructions {
			fmt.Fprintf(b, "  %s\n", inst.String())
		}
		if blk.Term != nil {
			fmt.Fprintf(b, "  %s\n", blk.Term.String())
		}
	}
	b.WriteString("}\n")
}

// attrAnnotations renders an attribute set in a stable, sorted order so
// printer output (and therefore idempotence tests, spec §8) is deterministic.
func attrAnnotations(s *AttrSet) string {
	if s == nil || len(s.vals) == 0 {
		return ""
	}
	kinds := make([]AttrKind, 0, len(s.vals))
	for k := range s.vals {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		v := s.vals[k]
		switch k {
		case AttrDereferenceable, AttrDereferenceableOrNull, AttrAlign:
			parts[i] = fmt.Sprintf("%s(%d)", k.String(), v)
		default:
			parts[i] = k.String()
		}
	}
	return strings.Join(parts, " ")
}
