package saned

import (
	"context"
	"fmt"

	"github.com/saneproj/sane-net/internal/logger"
	"github.com/saneproj/sane-net/internal/proto"
	"github.com/saneproj/sane-net/internal/sanerr"
)

// authorize runs the AUTHORIZE relay for resource when the credentials
// file guards it (spec §4.5 "Authorization relay"). It is the session,
// not the driver, that owns this exchange: only the session holds the
// wire connection a partial reply and the subsequent AUTHORIZE RPC travel
// over, so the reentrant-callback description in §4.5 is implemented here
// instead of inside backend.Backend.Open/ControlOption/Start.
//
// A nil error with status != Good means the caller should write its own
// final reply carrying that status; a non-nil error means the connection
// is unrecoverable (write or decode failure) and must be closed.
//
// buildPartial constructs the reply this RPC's own reply type
// (OpenReply/ControlOptionReply/StartReply all carry ResourceToAuthorize,
// but at different field offsets) with the challenge string installed, so
// the client decodes a reply of the shape it expects before re-reading
// the final one.
func (s *session) authorize(ctx context.Context, resource string, buildPartial func(challenge string) proto.Message) (sanerr.Status, error) {
	if !s.srv.authz.RequiresAuth(resource) {
		return sanerr.Good, nil
	}

	challenge := s.srv.authz.NewChallenge(resource)
	if err := proto.WriteReply(s.wr, buildPartial(challenge)); err != nil {
		return sanerr.IOError, err
	}

	proc, err := proto.ReadProcedure(s.wr)
	if err != nil {
		return sanerr.IOError, err
	}
	if proc != proto.ProcAuthorize {
		return sanerr.Inval, fmt.Errorf("%w: expected AUTHORIZE, got %s", errProtocol, proto.ProcedureName(uint32(proc)))
	}
	req := &proto.AuthorizeRequest{}
	if err := proto.ReadRequest(s.wr, req); err != nil {
		return sanerr.IOError, err
	}
	if err := proto.WriteReply(s.wr, &proto.Ack{Value: 1}); err != nil {
		return sanerr.IOError, err
	}

	status := s.srv.authz.Authorize(ctx, resource, challenge, req.Username, req.Password)
	if !status.Ok() {
		logger.WarnCtx(ctx, "authorization denied", logger.Resource(resource), logger.Username(req.Username))
		s.srv.metrics.RecordAuthDenied()
	} else {
		logger.InfoCtx(ctx, "authorization granted", logger.Resource(resource), logger.Username(req.Username))
	}
	return status, nil
}
