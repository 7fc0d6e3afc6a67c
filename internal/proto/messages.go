package proto

import "github.com/saneproj/sane-net/internal/wire"

// InitRequest is the first request on every connection (spec §4.4, §6.3).
type InitRequest struct {
	VersionCode int32
	Username    string
}

func (v *InitRequest) Codec(wr *wire.Wire) error {
	if err := wr.Word(&v.VersionCode); err != nil {
		return err
	}
	return wr.PlainString(&v.Username)
}

type InitReply struct {
	Status      int32
	VersionCode int32
}

func (v *InitReply) Codec(wr *wire.Wire) error {
	if err := wr.Word(&v.Status); err != nil {
		return err
	}
	return wr.Word(&v.VersionCode)
}

// GetDevicesRequest carries no fields.
type GetDevicesRequest struct{}

func (v *GetDevicesRequest) Codec(wr *wire.Wire) error { return nil }

type GetDevicesReply struct {
	Status  int32
	Devices []*wire.Device
}

func (v *GetDevicesReply) Codec(wr *wire.Wire) error {
	if err := wr.Word(&v.Status); err != nil {
		return err
	}
	return wire.Array(wr, &v.Devices, wire.DevicePtrCodec)
}

type OpenRequest struct {
	Name string
}

func (v *OpenRequest) Codec(wr *wire.Wire) error { return wr.PlainString(&v.Name) }

type OpenReply struct {
	Status               int32
	Handle               int32
	ResourceToAuthorize  wire.NullableString
}

func (v *OpenReply) Codec(wr *wire.Wire) error {
	if err := wr.Word(&v.Status); err != nil {
		return err
	}
	if err := wr.Word(&v.Handle); err != nil {
		return err
	}
	return wr.NullableString(&v.ResourceToAuthorize)
}

type CloseRequest struct {
	Handle int32
}

func (v *CloseRequest) Codec(wr *wire.Wire) error { return wr.Word(&v.Handle) }

// Ack is the dummy word reply shared by CLOSE, CANCEL and AUTHORIZE.
type Ack struct {
	Value int32
}

func (v *Ack) Codec(wr *wire.Wire) error { return wr.Word(&v.Value) }

type GetOptionDescriptorsRequest struct {
	Handle int32
}

func (v *GetOptionDescriptorsRequest) Codec(wr *wire.Wire) error { return wr.Word(&v.Handle) }

type GetOptionDescriptorsReply struct {
	Descriptors []*wire.OptionDescriptor
}

func (v *GetOptionDescriptorsReply) Codec(wr *wire.Wire) error {
	return wire.Array(wr, &v.Descriptors, wire.OptionDescriptorPtrCodec)
}

type ControlOptionRequest struct {
	Handle int32
	Option int32
	Action wire.Action
	Value  wire.OptionValue
}

func (v *ControlOptionRequest) Codec(wr *wire.Wire) error {
	if err := wr.Word(&v.Handle); err != nil {
		return err
	}
	if err := wr.Word(&v.Option); err != nil {
		return err
	}
	a := int32(v.Action)
	if err := wr.Word(&a); err != nil {
		return err
	}
	if wr.Dir() == wire.DirDecode {
		v.Action = wire.Action(a)
	}
	return wire.OptionValueCodec(wr, &v.Value)
}

type ControlOptionReply struct {
	Status              int32
	Info                int32
	Value               wire.OptionValue
	ResourceToAuthorize wire.NullableString
}

func (v *ControlOptionReply) Codec(wr *wire.Wire) error {
	if err := wr.Word(&v.Status); err != nil {
		return err
	}
	if err := wr.Word(&v.Info); err != nil {
		return err
	}
	if err := wire.OptionValueCodec(wr, &v.Value); err != nil {
		return err
	}
	return wr.NullableString(&v.ResourceToAuthorize)
}

type GetParametersRequest struct {
	Handle int32
}

func (v *GetParametersRequest) Codec(wr *wire.Wire) error { return wr.Word(&v.Handle) }

type GetParametersReply struct {
	Status int32
	Params wire.Parameters
}

func (v *GetParametersReply) Codec(wr *wire.Wire) error {
	if err := wr.Word(&v.Status); err != nil {
		return err
	}
	return wire.ParametersCodec(wr, &v.Params)
}

type StartRequest struct {
	Handle int32
}

func (v *StartRequest) Codec(wr *wire.Wire) error { return wr.Word(&v.Handle) }

type StartReply struct {
	Status              int32
	Port                int32
	ByteOrder           int32
	ResourceToAuthorize wire.NullableString
}

func (v *StartReply) Codec(wr *wire.Wire) error {
	if err := wr.Word(&v.Status); err != nil {
		return err
	}
	if err := wr.Word(&v.Port); err != nil {
		return err
	}
	if err := wr.Word(&v.ByteOrder); err != nil {
		return err
	}
	return wr.NullableString(&v.ResourceToAuthorize)
}

// IsServerLittleEndian interprets StartReply.ByteOrder per spec §6.2.
func (v *StartReply) IsServerLittleEndian() bool {
	return v.ByteOrder == LittleEndianMarker
}

type CancelRequest struct {
	Handle int32
}

func (v *CancelRequest) Codec(wr *wire.Wire) error { return wr.Word(&v.Handle) }

type AuthorizeRequest struct {
	Resource string
	Username string
	Password string
}

func (v *AuthorizeRequest) Codec(wr *wire.Wire) error {
	if err := wr.PlainString(&v.Resource); err != nil {
		return err
	}
	if err := wr.PlainString(&v.Username); err != nil {
		return err
	}
	return wr.PlainString(&v.Password)
}

type ExitRequest struct{}

func (v *ExitRequest) Codec(wr *wire.Wire) error { return nil }
