package wire

import (
	"io"
)

// Byte encodes/decodes a single byte.
func (wr *Wire) Byte(v *byte) error {
	if wr.err != nil {
		return wr.err
	}
	switch wr.dir {
	case DirEncode:
		wr.out.WriteByte(*v)
	case DirDecode:
		var buf [1]byte
		if _, err := io.ReadFull(wr.r, buf[:]); err != nil {
			return wr.fail(ioErr(err))
		}
		*v = buf[0]
	case DirFree:
		*v = 0
	}
	return nil
}

// Word encodes/decodes a 4-byte word (int32), in the wire's configured byte
// order. Bool and tagged enums are words with a restricted value set; see
// Bool and the per-type codecs in types.go.
func (wr *Wire) Word(v *int32) error {
	if wr.err != nil {
		return wr.err
	}
	switch wr.dir {
	case DirEncode:
		var buf [4]byte
		wr.order.PutUint32(buf[:], uint32(*v))
		wr.out.Write(buf[:])
	case DirDecode:
		var buf [4]byte
		if _, err := io.ReadFull(wr.r, buf[:]); err != nil {
			return wr.fail(ioErr(err))
		}
		*v = int32(wr.order.Uint32(buf[:]))
	case DirFree:
		*v = 0
	}
	return nil
}

// UWord is Word for callers that prefer an unsigned view (lengths, tags,
// procedure numbers, handles). It shares Word's wire representation.
func (wr *Wire) UWord(v *uint32) error {
	var s int32
	if wr.dir != DirDecode {
		s = int32(*v)
	}
	if err := wr.Word(&s); err != nil {
		return err
	}
	if wr.dir == DirDecode {
		*v = uint32(s)
	}
	return nil
}

// Bool encodes/decodes a boolean as a word, {0,1} per spec §4.1.
func (wr *Wire) Bool(v *bool) error {
	var w int32
	if wr.dir != DirDecode {
		if *v {
			w = 1
		}
	}
	if err := wr.Word(&w); err != nil {
		return err
	}
	if wr.dir == DirDecode {
		*v = w != 0
	}
	return nil
}

// String encodes/decodes a length-prefixed string. A word length L=0 means
// the string is null (distinct from empty, which is L=1 with zero payload
// bytes... in this implementation a SANE empty-but-non-null string is
// encoded with L=1 and a single NUL byte, matching sanei_w_string, so the
// only length that maps to "null" is 0.
//
// Value holds the string; IsNull reports which case decode produced. Callers that
// never need to distinguish null from empty can ignore IsNull and treat both
// as "".
type NullableString struct {
	Value  string
	IsNull bool
}

func (wr *Wire) NullableString(v *NullableString) error {
	if wr.err != nil {
		return wr.err
	}
	switch wr.dir {
	case DirEncode:
		if v.IsNull {
			var zero int32
			return wr.Word(&zero)
		}
		l := int32(len(v.Value) + 1) // length includes the terminator
		if err := wr.Word(&l); err != nil {
			return err
		}
		wr.out.WriteString(v.Value)
		wr.out.WriteByte(0)
		return nil
	case DirDecode:
		var l int32
		if err := wr.Word(&l); err != nil {
			return err
		}
		if l == 0 {
			v.IsNull = true
			v.Value = ""
			return nil
		}
		if l < 0 {
			return wr.fail(ErrIO)
		}
		if err := wr.arenaFor().Reserve(int(l)); err != nil {
			return wr.fail(err)
		}
		buf := make([]byte, l)
		if _, err := io.ReadFull(wr.r, buf); err != nil {
			return wr.fail(ioErr(err))
		}
		// Strip the trailing NUL the length included.
		if buf[l-1] == 0 {
			buf = buf[:l-1]
		}
		v.IsNull = false
		v.Value = string(buf)
		return nil
	case DirFree:
		v.Value = ""
		v.IsNull = false
		return nil
	}
	return nil
}

// PlainString is a convenience wrapper over NullableString for callers that
// treat a null string the same as empty (most request/reply fields do; only
// resource_to_authorize and a handful of optional descriptor fields need the
// distinction and use NullableString directly).
func (wr *Wire) PlainString(v *string) error {
	ns := NullableString{Value: *v}
	if wr.dir != DirDecode {
		ns.IsNull = false
	}
	if err := wr.NullableString(&ns); err != nil {
		return err
	}
	if wr.dir == DirDecode {
		*v = ns.Value
	}
	return nil
}

func ioErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}
	return err
}
