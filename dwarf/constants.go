package dwarf

// Tag identifies the kind of a DIE (DW_TAG_*).
type Tag uint16

// Attr identifies a DIE attribute (DW_AT_*).
type Attr uint16

// Form identifies how an attribute's value is encoded (DW_FORM_*).
type Form uint16

// Op identifies a DWARF expression opcode (DW_OP_*).
type Op uint8

// A subset of DW_TAG_* values relevant to the scope walker and function
// iteration (spec §4.9, §6 getfuncs). Values per the DWARF4 standard,
// Appendix A.
const (
	TagArrayType          Tag = 0x01
	TagClassType          Tag = 0x02
	TagEntryPoint         Tag = 0x03
	TagEnumerationType    Tag = 0x04
	TagFormalParameter    Tag = 0x05
	TagImportedDeclaration Tag = 0x08
	TagLabel              Tag = 0x0a
	TagLexicalBlock       Tag = 0x0b
	TagMember             Tag = 0x0d
	TagPointerType        Tag = 0x0f
	TagReferenceType      Tag = 0x10
	TagCompileUnit        Tag = 0x11
	TagStructureType      Tag = 0x13
	TagSubroutineType     Tag = 0x15
	TagTypedef            Tag = 0x16
	TagUnionType          Tag = 0x17
	TagUnspecifiedParameters Tag = 0x18
	TagVariant            Tag = 0x19
	TagCommonBlock        Tag = 0x1a
	TagCommonInclusion    Tag = 0x1b
	TagInheritance        Tag = 0x1c
	TagInlinedSubroutine  Tag = 0x1d
	TagModule             Tag = 0x1e
	TagPtrToMemberType    Tag = 0x1f
	TagSetType            Tag = 0x20
	TagSubrangeType       Tag = 0x21
	TagWithStmt           Tag = 0x22
	TagAccessDeclaration  Tag = 0x23
	TagBaseType           Tag = 0x24
	TagCatchBlock         Tag = 0x25
	TagConstType          Tag = 0x26
	TagConstant           Tag = 0x27
	TagEnumerator         Tag = 0x28
	TagFileType           Tag = 0x29
	TagFriend             Tag = 0x2a
	TagNamelist           Tag = 0x2b
	TagNamelistItem       Tag = 0x2c
	TagPackedType         Tag = 0x2d
	TagSubprogram         Tag = 0x2e
	TagTemplateTypeParameter  Tag = 0x2f
	TagTemplateValueParameter Tag = 0x30
	TagThrownType         Tag = 0x31
	TagTryBlock           Tag = 0x32
	TagVariantPart        Tag = 0x33
	TagVariable           Tag = 0x34
	TagVolatileType       Tag = 0x35
	TagDwarfProcedure     Tag = 0x36
	TagRestrictType       Tag = 0x37
	TagInterfaceType      Tag = 0x38
	TagNamespace          Tag = 0x39
	TagImportedModule     Tag = 0x3a
	TagUnspecifiedType    Tag = 0x3b
	TagPartialUnit        Tag = 0x3c
	TagImportedUnit       Tag = 0x3d
	TagCondition          Tag = 0x3f
	TagSharedType         Tag = 0x40
	TagTypeUnit           Tag = 0x41
	TagRvalueReferenceType Tag = 0x42
	TagTemplateAlias      Tag = 0x43
)

// A subset of DW_AT_* values used by the attribute decoder, line program
// linkage, ranges, and scope classification.
const (
	AttrSibling       Attr = 0x01
	AttrLocation      Attr = 0x02
	AttrName          Attr = 0x03
	AttrByteSize      Attr = 0x0b
	AttrBitSize       Attr = 0x0d
	AttrStmtList      Attr = 0x10
	AttrLowpc         Attr = 0x11
	AttrHighpc        Attr = 0x12
	AttrLanguage      Attr = 0x13
	AttrCompDir       Attr = 0x1b
	AttrConstValue    Attr = 0x1c
	AttrUpperBound    Attr = 0x2f
	AttrAbstractOrigin Attr = 0x31
	AttrCount         Attr = 0x37
	AttrDataMemberLocation Attr = 0x38
	AttrDeclFile      Attr = 0x3a
	AttrDeclLine      Attr = 0x3b
	AttrDeclaration   Attr = 0x3c
	AttrEncoding      Attr = 0x3e
	AttrExternal      Attr = 0x3f
	AttrFrameBase     Attr = 0x40
	AttrMacroInfo     Attr = 0x43
	AttrRanges        Attr = 0x55
	AttrSpecification Attr = 0x47
	AttrLowerBound    Attr = 0x22
	AttrProducer      Attr = 0x25
	AttrPrototyped    Attr = 0x27
	AttrReturnAddr    Attr = 0x2a
	AttrType          Attr = 0x49
	AttrUseLocation   Attr = 0x4a
	AttrEntryPc       Attr = 0x52
	AttrByteStride    Attr = 0x51
	AttrBitStride     Attr = 0x2e
	AttrLinkageName   Attr = 0x6e
	AttrCallFile      Attr = 0x58
	AttrCallLine      Attr = 0x59
	AttrImport        Attr = 0x18
)

// DW_FORM_* values, per the DWARF4 standard §7.5.4.
const (
	FormAddr        Form = 0x01
	FormBlock2      Form = 0x03
	FormBlock4      Form = 0x04
	FormData2       Form = 0x05
	FormData4       Form = 0x06
	FormData8       Form = 0x07
	FormString      Form = 0x08
	FormBlock       Form = 0x09
	FormBlock1      Form = 0x0a
	FormData1       Form = 0x0b
	FormFlag        Form = 0x0c
	FormSdata       Form = 0x0d
	FormStrp        Form = 0x0e
	FormUdata       Form = 0x0f
	FormRefAddr     Form = 0x10
	FormRef1        Form = 0x11
	FormRef2        Form = 0x12
	FormRef4        Form = 0x13
	FormRef8        Form = 0x14
	FormRefUdata    Form = 0x15
	FormIndirect    Form = 0x16
	FormSecOffset   Form = 0x17
	FormExprloc     Form = 0x18
	FormFlagPresent Form = 0x19
	FormRefSig8     Form = 0x20

	// not part of DWARF4 proper, but a handful of producers emit it under
	// a vendor extension number; decoded as a courtesy where encountered.
	FormImplicitConst Form = 0x21
)

// Language codes relevant to AggregateSize's default lower-bound rule
// (spec §6).
const (
	LangC89      = 0x0001
	LangC        = 0x0002
	LangCPlusPlus = 0x0004
	LangFortran77 = 0x0007
	LangFortran90 = 0x0008
	LangPascal83  = 0x0009
	LangModula2   = 0x000a
	LangC99       = 0x000c
	LangAda95     = 0x000d
	LangCobol74   = 0x0005
	LangCobol85   = 0x0006
	LangFortran95 = 0x000e
	LangPLI       = 0x000f
)
