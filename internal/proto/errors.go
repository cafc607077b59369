package proto

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/drive"
	"github.com/dmitrijs2005/saveme/internal/export"
	"github.com/dmitrijs2005/saveme/internal/services"
	"github.com/dmitrijs2005/saveme/internal/session"
	"github.com/dmitrijs2005/saveme/internal/sharing"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// knownErrors maps sentinel errors to status codes. The status message is
// the full error text, so the client can recover the sentinel. More general
// messages go last.
var knownErrors = []struct {
	code codes.Code
	err  error
}{
	{codes.NotFound, sharing.ErrNotFound},
	{codes.NotFound, drive.ErrNotFound},
	{codes.FailedPrecondition, sharing.ErrReshareBlocked},
	{codes.FailedPrecondition, sharing.ErrExpired},
	{codes.FailedPrecondition, sharing.ErrViewLimitReached},
	{codes.FailedPrecondition, services.ErrUploadDisabled},
	{codes.FailedPrecondition, export.ErrPassphraseRequired},
	{codes.InvalidArgument, sharing.ErrNoRecipients},
	{codes.InvalidArgument, sharing.ErrUnknownRecipient},
	{codes.InvalidArgument, drive.ErrUnsupportedType},
	{codes.InvalidArgument, export.ErrWeakPassphrase},
	{codes.InvalidArgument, export.ErrBadPassphrase},
	{codes.InvalidArgument, common.ErrorValidation},
	{codes.Unauthenticated, session.ErrNotRegistered},
	{codes.Unauthenticated, session.ErrLocked},
	{codes.Unauthenticated, common.ErrorUnauthorized},
	{codes.AlreadyExists, common.ErrorAlreadyExists},
	{codes.NotFound, common.ErrorNotFound},
}

// StatusFromError converts a service error into a gRPC status error.
// Unknown errors become Internal without their text.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, k := range knownErrors {
		if errors.Is(err, k.err) {
			return status.Error(k.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "internal error")
}

// remoteError keeps the server's message while unwrapping to the sentinel.
type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.err }

// ErrorFromStatus is the client side of StatusFromError.
func ErrorFromStatus(err error) error {
	st, ok := status.FromError(err)
	if err == nil || !ok {
		return err
	}
	for _, k := range knownErrors {
		if st.Code() == k.code && strings.Contains(st.Message(), k.err.Error()) {
			if st.Message() == k.err.Error() {
				return k.err
			}
			return &remoteError{msg: st.Message(), err: k.err}
		}
	}
	if st.Code() == codes.Unauthenticated {
		return &remoteError{msg: st.Message(), err: common.ErrorUnauthorized}
	}
	return err
}
