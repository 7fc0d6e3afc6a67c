package wire

// ValueType tags an option's storage type (spec §3.1).
type ValueType int32

const (
	TypeBool ValueType = iota
	TypeInt
	TypeFixed
	TypeString
	TypeButton
	TypeGroup
)

// Unit tags the physical unit an option's value is expressed in (spec §3.1).
type Unit int32

const (
	UnitNone Unit = iota
	UnitPixel
	UnitBit
	UnitMM
	UnitDPI
	UnitPercent
	UnitMicrosecond
)

// Capability bits, combined in OptionDescriptor.Cap (spec §3.1).
const (
	CapSoftSelect = 1 << iota
	CapHardSelect
	CapSoftDetect
	CapEmulated
	CapAutomatic
	CapInactive
	CapAdvanced
)

// ConstraintType tags which field of Constraint is populated.
type ConstraintType int32

const (
	ConstraintNone ConstraintType = iota
	ConstraintRange
	ConstraintWordList
	ConstraintStringList
)

// Action selects the operation CONTROL_OPTION performs (spec §4.2).
type Action int32

const (
	ActionGet Action = iota
	ActionSet
	ActionSetAuto
)

// Info bits returned by CONTROL_OPTION (spec §4.2, §6.3).
const (
	InfoInexact = 1 << iota
	InfoReloadOptions
	InfoReloadParams
)

// Frame identifies a scan's color-plane layout (spec §3.4).
type Frame int32

const (
	FrameGray Frame = iota
	FrameRGB
	FrameRed
	FrameGreen
	FrameBlue
)

// Range is an integer-range constraint (spec §3.1).
type Range struct {
	Min, Max, Quant int32
}

func RangeCodec(wr *Wire, v *Range) error {
	if err := wr.Word(&v.Min); err != nil {
		return err
	}
	if err := wr.Word(&v.Max); err != nil {
		return err
	}
	return wr.Word(&v.Quant)
}

// Constraint is the option descriptor's value-space restriction (spec §3.1).
type Constraint struct {
	Type       ConstraintType
	Range      *Range
	WordList   []int32
	StringList []string
}

func ConstraintCodec(wr *Wire, v *Constraint) error {
	t := int32(v.Type)
	if err := wr.Word(&t); err != nil {
		return err
	}
	if wr.dir == DirDecode {
		v.Type = ConstraintType(t)
	}
	switch v.Type {
	case ConstraintRange:
		return Ptr(wr, &v.Range, RangeCodec)
	case ConstraintWordList:
		return Array(wr, &v.WordList, wordElem)
	case ConstraintStringList:
		return Array(wr, &v.StringList, stringElem)
	default:
		return nil
	}
}

func wordElem(wr *Wire, v *int32) error { return wr.Word(v) }

func stringElem(wr *Wire, v *string) error { return wr.PlainString(v) }

// OptionDescriptor describes one configurable knob a backend exposes
// (spec §3.1). Name is optional (some options, e.g. groups, carry none).
type OptionDescriptor struct {
	Name        NullableString
	Title       string
	Description string
	Type        ValueType
	Unit        Unit
	Size        int32
	Cap         int32
	Constraint  Constraint
}

func OptionDescriptorCodec(wr *Wire, v *OptionDescriptor) error {
	if err := wr.NullableString(&v.Name); err != nil {
		return err
	}
	if err := wr.PlainString(&v.Title); err != nil {
		return err
	}
	if err := wr.PlainString(&v.Description); err != nil {
		return err
	}
	t := int32(v.Type)
	if err := wr.Word(&t); err != nil {
		return err
	}
	if wr.dir == DirDecode {
		v.Type = ValueType(t)
	}
	u := int32(v.Unit)
	if err := wr.Word(&u); err != nil {
		return err
	}
	if wr.dir == DirDecode {
		v.Unit = Unit(u)
	}
	if err := wr.Word(&v.Size); err != nil {
		return err
	}
	if err := wr.Word(&v.Cap); err != nil {
		return err
	}
	return ConstraintCodec(wr, &v.Constraint)
}

// OptionDescriptorPtrCodec is OptionDescriptorCodec generalized to a pointer, to
// match the option_descriptor_array reply's array<ptr<descriptor>> shape:
// each slot may itself be null (spec §4.2 "returns null for out-of-range").
func OptionDescriptorPtrCodec(wr *Wire, v **OptionDescriptor) error {
	return Ptr(wr, v, OptionDescriptorCodec)
}

// Device is one enumerable scanner (spec §3.3).
type Device struct {
	Name   string
	Vendor string
	Model  string
	Type   string
}

func DeviceCodec(wr *Wire, v *Device) error {
	if err := wr.PlainString(&v.Name); err != nil {
		return err
	}
	if err := wr.PlainString(&v.Vendor); err != nil {
		return err
	}
	if err := wr.PlainString(&v.Model); err != nil {
		return err
	}
	return wr.PlainString(&v.Type)
}

func DevicePtrCodec(wr *Wire, v **Device) error {
	return Ptr(wr, v, DeviceCodec)
}

// Parameters describes an in-progress or predicted scan (spec §3.4).
type Parameters struct {
	Format        Frame
	LastFrame     bool
	BytesPerLine  int32
	PixelsPerLine int32
	Lines         int32 // -1 if unknown
	Depth         int32
}

func ParametersCodec(wr *Wire, v *Parameters) error {
	f := int32(v.Format)
	if err := wr.Word(&f); err != nil {
		return err
	}
	if wr.dir == DirDecode {
		v.Format = Frame(f)
	}
	if err := wr.Bool(&v.LastFrame); err != nil {
		return err
	}
	if err := wr.Word(&v.BytesPerLine); err != nil {
		return err
	}
	if err := wr.Word(&v.PixelsPerLine); err != nil {
		return err
	}
	if err := wr.Word(&v.Lines); err != nil {
		return err
	}
	return wr.Word(&v.Depth)
}

// OptionValue is a tagged value whose Type must match the corresponding
// descriptor's Type (spec §3.2). Word carries both int and fixed (Q16.16)
// values, since both are 4-byte signed words on the wire; Str carries
// string values. Button and group options carry no value. Size is the
// value_size word CONTROL_OPTION's wire shape carries alongside type and
// value (spec §6.3); it is derived from Type on encode and populated from
// the wire on decode.
type OptionValue struct {
	Type ValueType
	Size int32
	Word int32
	Str  string
}

func OptionValueCodec(wr *Wire, v *OptionValue) error {
	t := int32(v.Type)
	if err := wr.Word(&t); err != nil {
		return err
	}
	if wr.dir == DirDecode {
		v.Type = ValueType(t)
	}
	if wr.dir == DirEncode {
		switch v.Type {
		case TypeBool, TypeInt, TypeFixed:
			v.Size = 4
		case TypeString:
			v.Size = int32(len(v.Str) + 1)
		default:
			v.Size = 0
		}
	}
	if err := wr.Word(&v.Size); err != nil {
		return err
	}
	switch v.Type {
	case TypeBool, TypeInt, TypeFixed:
		return wr.Word(&v.Word)
	case TypeString:
		return wr.PlainString(&v.Str)
	default:
		return nil
	}
}
