package dwarf

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dwex-project/dwex/test"
)

func TestClassifyMatchingTags(t *testing.T) {
	cases := []struct {
		tag  Tag
		want scopeClass
	}{
		{TagCompileUnit, classMatch},
		{TagLexicalBlock, classMatch},
		{TagWithStmt, classMatch},
		{TagCatchBlock, classMatch},
		{TagTryBlock, classMatch},
		{TagEntryPoint, classMatch},
		{TagModule, classMatch},
		{TagInlinedSubroutine, classMatchInline},
		{TagNamespace, classWalk},
		{TagClassType, classWalk},
		{TagStructureType, classWalk},
		{TagImportedUnit, classImported},
		{TagVariable, classIgnore},
		{TagBaseType, classIgnore},
	}

	for _, c := range cases {
		got := classify(c.tag, false)
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("classify(%v, false) mismatch (-want +got):\n%s", c.tag, diff)
		}
	}
}

func TestClassifySubprogramWithAbstractOrigin(t *testing.T) {
	test.ExpectEquality(t, classify(TagSubprogram, false), classMatch)
	test.ExpectEquality(t, classify(TagSubprogram, true), classMatchInline)
}
