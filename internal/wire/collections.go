package wire

// Elem is implemented by any value with its own wire codec function, so
// Array and Ptr can stay generic over element type rather than repeat
// length/null-flag bookkeeping for every nested record the protocol defines
// (ranges, devices, option descriptors, parameters).
type Elem[T any] func(wr *Wire, v *T) error

// Array encodes/decodes a word length N followed by N encoded T values
// (spec §4.1 "array<T>"). On decode, *v is replaced with a freshly allocated
// slice charged against the wire's arena.
func Array[T any](wr *Wire, v *[]T, codec Elem[T]) error {
	if wr.err != nil {
		return wr.err
	}
	switch wr.dir {
	case DirEncode:
		n := int32(len(*v))
		if err := wr.Word(&n); err != nil {
			return err
		}
		for i := range *v {
			if err := codec(wr, &(*v)[i]); err != nil {
				return err
			}
		}
		return nil
	case DirDecode:
		var n int32
		if err := wr.Word(&n); err != nil {
			return err
		}
		if n < 0 {
			return wr.fail(ErrIO)
		}
		var zero T
		elemCost := estimateSize(zero)
		if err := wr.arenaFor().Reserve(int(n) * elemCost); err != nil {
			return wr.fail(err)
		}
		out := make([]T, n)
		for i := range out {
			if err := codec(wr, &out[i]); err != nil {
				return err
			}
		}
		*v = out
		return nil
	case DirFree:
		for i := range *v {
			_ = codec(wr, &(*v)[i])
		}
		*v = nil
		return nil
	}
	return nil
}

// Ptr encodes/decodes a nullable pointer: a word flag (0 => nil, 1 =>
// encoded value) followed by the value when non-null (spec §4.1 "ptr<T>").
func Ptr[T any](wr *Wire, v **T, codec Elem[T]) error {
	if wr.err != nil {
		return wr.err
	}
	switch wr.dir {
	case DirEncode:
		present := *v != nil
		if err := wr.Bool(&present); err != nil {
			return err
		}
		if present {
			return codec(wr, *v)
		}
		return nil
	case DirDecode:
		var present bool
		if err := wr.Bool(&present); err != nil {
			return err
		}
		if !present {
			*v = nil
			return nil
		}
		if err := wr.arenaFor().Reserve(estimateSize(*new(T))); err != nil {
			return wr.fail(err)
		}
		val := new(T)
		if err := codec(wr, val); err != nil {
			return err
		}
		*v = val
		return nil
	case DirFree:
		if *v != nil {
			_ = codec(wr, *v)
		}
		*v = nil
		return nil
	}
	return nil
}

// estimateSize is a coarse per-element arena charge. Exact struct sizes
// aren't knowable generically without reflection, and reflection cost isn't
// worth it for a 1 MiB budget check: a conservative constant keeps large
// adversarial N*size claims bounded without penalizing normal replies.
func estimateSize[T any](_ T) int {
	return 64
}
