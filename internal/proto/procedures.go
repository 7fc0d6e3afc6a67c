// Package proto defines the SANE net RPC: procedure numbers, request/reply
// message shapes, and their wire codecs, built on top of the generic
// direction-polymorphic primitives in internal/wire. This is the
// protocol-specific layer analogous to internal/protocol/nfs in the teacher
// repository (which sits on top of the generic internal/protocol/xdr).
package proto

// Procedure numbers (spec §4.4 "RPC table").
const (
	ProcInit = iota
	ProcGetDevices
	ProcOpen
	ProcClose
	ProcGetOptionDescriptors
	ProcControlOption
	ProcGetParameters
	ProcStart
	ProcCancel
	ProcAuthorize
	ProcExit
)

// ProcedureName returns a human-readable name for logging.
func ProcedureName(proc uint32) string {
	switch proc {
	case ProcInit:
		return "INIT"
	case ProcGetDevices:
		return "GET_DEVICES"
	case ProcOpen:
		return "OPEN"
	case ProcClose:
		return "CLOSE"
	case ProcGetOptionDescriptors:
		return "GET_OPTION_DESCRIPTORS"
	case ProcControlOption:
		return "CONTROL_OPTION"
	case ProcGetParameters:
		return "GET_PARAMETERS"
	case ProcStart:
		return "START"
	case ProcCancel:
		return "CANCEL"
	case ProcAuthorize:
		return "AUTHORIZE"
	case ProcExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// VersionCode packs (major, minor, build) the way INIT negotiates protocol
// version: (major<<24)|(minor<<16)|build, where build carries the protocol
// revision (2 or 3) per spec §4.4, §6.2.
func VersionCode(major, minor, build byte) int32 {
	return int32(uint32(major)<<24 | uint32(minor)<<16 | uint32(build))
}

func SplitVersionCode(v int32) (major, minor byte, build uint16) {
	u := uint32(v)
	return byte(u >> 24), byte(u >> 16 & 0xff), uint16(u & 0xffff)
}

// LittleEndianMarker is the magic value START_REPLY.ByteOrder carries to
// mean "server is little-endian" (spec §6.2). Any other value means big.
const LittleEndianMarker = 0x1234
