package kmsdk

import "github.com/kmchat/kmchat/internal/common/apperrors"

var (
	// ErrBackend is the base of every failure reported through a callback. Derived errors
	// carry the backend's message verbatim.
	ErrBackend apperrors.Error = apperrors.New("backend reported failure")

	// ErrTimeout reports a call whose callback did not arrive within the call timeout.
	ErrTimeout apperrors.Error = apperrors.New("sdk call timed out").SetExitCode(apperrors.ExitTimeout)

	// ErrCanceled reports a call abandoned because its context was canceled.
	ErrCanceled apperrors.Error = apperrors.New("sdk call canceled")

	// ErrInvalidPayload reports a request the Client refused to hand to the Boundary.
	ErrInvalidPayload apperrors.Error = apperrors.New("invalid sdk payload").SetExitCode(apperrors.ExitValidation)
)

func backendError(payload, fallback string) error {
	if payload == "" {
		payload = fallback
	}
	return ErrBackend.Msg(payload)
}
