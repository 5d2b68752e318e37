package dwarf

import (
	"errors"
	"fmt"
)

// scopeClass is how the scope walker classifies a DIE (spec §4.9).
type scopeClass int

const (
	classIgnore scopeClass = iota
	classMatch
	classMatchInline
	classWalk
	classImported
)

func classify(tag Tag, hasAbstractOrigin bool) scopeClass {
	switch tag {
	case TagCompileUnit, TagModule, TagLexicalBlock, TagWithStmt,
		TagCatchBlock, TagTryBlock, TagEntryPoint:
		return classMatch
	case TagSubprogram:
		if hasAbstractOrigin {
			return classMatchInline
		}
		return classMatch
	case TagInlinedSubroutine:
		return classMatchInline
	case TagNamespace, TagClassType, TagStructureType:
		return classWalk
	case TagImportedUnit:
		return classImported
	default:
		return classIgnore
	}
}

// ScopesCovering returns the chain of scopes enclosing pc within cu,
// innermost first, transparently descending through DW_TAG_imported_unit
// (spec §4.9, §8 scenario 6: imported_unit itself never appears in the
// returned chain).
func (r *Reader) ScopesCovering(cu *CompilationUnit, pc uint64) ([]DieCursor, error) {
	defer r.checkSingleThreaded()()
	root := r.CuDie(cu)
	chain, err := r.walkForPC(root, pc, nil)
	return chain, r.fail(err)
}

// walkForPC recurses depth-first, appending every classMatch/classMatchInline
// ancestor of the PC-containing leaf to chain (built innermost-first by
// prepending each matching DIE before descending into its children).
func (r *Reader) walkForPC(die DieCursor, pc uint64, chain []DieCursor) ([]DieCursor, error) {
	tag, err := r.Tag(die)
	if err != nil {
		return nil, err
	}

	_, hasOrigin := func() (Attribute, bool) {
		a, err := r.attrNoLock(die, AttrAbstractOrigin)
		return a, err == nil
	}()

	class := classify(tag, hasOrigin)

	if class == classImported {
		imported, err := r.resolveImport(die)
		if err != nil {
			if isNotPresent(err) {
				return nil, nil
			}
			return nil, err
		}
		return r.walkForPC(imported, pc, chain)
	}

	contains := true
	if class == classMatch || class == classMatchInline {
		ok, err := r.HasPC(die, pc)
		if err != nil && !isNotPresent(err) {
			return nil, err
		}
		contains = err == nil && ok
		if !contains {
			return nil, nil
		}
	}

	var mine []DieCursor
	if class == classMatch || class == classMatchInline {
		mine = append([]DieCursor{die}, chain...)
	} else {
		mine = chain
	}

	child, ok, err := r.Child(die)
	if err != nil {
		return nil, err
	}
	for ok {
		sub, err := r.walkForPC(child, pc, mine)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			return sub, nil
		}

		child, ok, err = r.Sibling(child)
		if err != nil {
			return nil, err
		}
	}

	if (class == classMatch || class == classMatchInline) && contains {
		return mine, nil
	}

	return nil, nil
}

func isNotPresent(err error) bool {
	return errors.Is(err, ErrNotPresent)
}

// resolveImport follows a DW_TAG_imported_unit's DW_AT_import attribute to
// the DieCursor it references, which may live in a different CU
// (DW_FORM_ref_addr) than the imported_unit DIE itself.
func (r *Reader) resolveImport(die DieCursor) (DieCursor, error) {
	a, err := r.attrNoLock(die, AttrImport)
	if err != nil {
		return DieCursor{}, err
	}
	off, ok := a.Value.(uint64)
	if !ok {
		return DieCursor{}, fmt.Errorf("%w: DW_AT_import has non-reference form", ErrInvalidFormat)
	}

	targetCU := die.cu
	if a.Form == FormRefAddr {
		tc, err := r.units.find(off)
		if err != nil {
			return DieCursor{}, err
		}
		targetCU = tc
	}

	return DieCursor{cu: targetCU, offset: off}, nil
}

// FindDie locates the chain of enclosing scopes for a known DIE, following
// DW_TAG_imported_unit references transparently (spec §4.9's find_die).
func (r *Reader) FindDie(root DieCursor, target DieCursor) ([]DieCursor, error) {
	defer r.checkSingleThreaded()()
	chain, found, err := r.findDieRec(root, target, nil)
	if err != nil {
		return nil, r.fail(err)
	}
	if !found {
		return nil, r.fail(fmt.Errorf("%w: target DIE not reachable from root", ErrNotPresent))
	}
	return chain, nil
}

func (r *Reader) findDieRec(die DieCursor, target DieCursor, chain []DieCursor) ([]DieCursor, bool, error) {
	tag, err := r.Tag(die)
	if err != nil {
		return nil, false, err
	}
	_, hasOrigin := func() (Attribute, bool) {
		a, err := r.attrNoLock(die, AttrAbstractOrigin)
		return a, err == nil
	}()
	class := classify(tag, hasOrigin)

	if class == classImported {
		if die.Equal(target) {
			return reverseDies(chain), true, nil
		}
		imported, err := r.resolveImport(die)
		if err != nil {
			if isNotPresent(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return r.findDieRec(imported, target, chain)
	}

	var mine []DieCursor
	if class == classMatch || class == classMatchInline {
		mine = append(chain, die)
	} else {
		mine = chain
	}

	if die.Equal(target) {
		return reverseDies(mine), true, nil
	}

	child, ok, err := r.Child(die)
	if err != nil {
		return nil, false, err
	}
	for ok {
		if sub, found, err := r.findDieRec(child, target, mine); err != nil {
			return nil, false, err
		} else if found {
			return sub, true, nil
		}
		child, ok, err = r.Sibling(child)
		if err != nil {
			return nil, false, err
		}
	}

	return nil, false, nil
}

func reverseDies(in []DieCursor) []DieCursor {
	out := make([]DieCursor, len(in))
	for i, d := range in {
		out[len(in)-1-i] = d
	}
	return out
}

// GetFuncs visits every defining subprogram DIE in cu, calling f for each.
// For C-language CUs, DIEs whose tag is not subprogram, lexical_block or
// inlined_subroutine are pruned eagerly without descending (spec §6).
func (r *Reader) GetFuncs(cu *CompilationUnit, f func(DieCursor) error) error {
	defer r.checkSingleThreaded()()

	isC := false
	if a, err := r.attrNoLock(r.CuDie(cu), AttrLanguage); err == nil {
		if v, ok := a.Value.(uint64); ok {
			switch v {
			case LangC89, LangC, LangC99:
				isC = true
			}
		}
	}

	return r.fail(r.getFuncsRec(r.CuDie(cu), isC, f))
}

func (r *Reader) getFuncsRec(die DieCursor, isC bool, f func(DieCursor) error) error {
	tag, err := r.Tag(die)
	if err != nil {
		return err
	}

	if isC {
		switch tag {
		case TagSubprogram, TagLexicalBlock, TagInlinedSubroutine, TagCompileUnit:
		default:
			return nil
		}
	}

	if tag == TagSubprogram {
		if _, err := r.attrNoLock(die, AttrAbstractOrigin); err != nil {
			if _, declErr := r.attrNoLock(die, AttrDeclaration); declErr != nil {
				if err := f(die); err != nil {
					return err
				}
			}
		}
	}

	child, ok, err := r.Child(die)
	if err != nil {
		return err
	}
	for ok {
		if err := r.getFuncsRec(child, isC, f); err != nil {
			return err
		}
		child, ok, err = r.Sibling(child)
		if err != nil {
			return err
		}
	}

	return nil
}
