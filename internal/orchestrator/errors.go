package orchestrator

import (
	"errors"

	"github.com/kmchat/kmchat/internal/common/apperrors"
	"github.com/kmchat/kmchat/internal/kmsdk"
)

// User-facing messages shown for local failures.
const (
	msgMissingCredentials = "Please enter both User ID and Password."
	msgLogoutConflict     = "Failed to log out the user."
	msgLogoutFailed       = "Logout Failed."
	msgNotAuthenticated   = "Log in before working with conversations."
)

var (
	// ErrValidation reports a local precondition failure. The SDK is never contacted.
	ErrValidation apperrors.Error = apperrors.New("validation failed").SetExitCode(apperrors.ExitValidation)

	// ErrNotAuthenticated reports a conversation operation attempted without a session.
	ErrNotAuthenticated apperrors.Error = apperrors.New(msgNotAuthenticated).SetExitCode(apperrors.ExitValidation)

	// ErrSessionCheck reports that the pre-flight login status query failed.
	ErrSessionCheck apperrors.Error = apperrors.New("could not determine login status")

	// ErrLogoutConflict reports that the logout required before a fresh login failed.
	// Login is not attempted.
	ErrLogoutConflict apperrors.Error = apperrors.New(msgLogoutConflict)

	ErrLogin  apperrors.Error = apperrors.New("login failed")
	ErrLogout apperrors.Error = apperrors.New(msgLogoutFailed)
	ErrBuild  apperrors.Error = apperrors.New("conversation creation failed")
	ErrSend   apperrors.Error = apperrors.New("message could not be sent")
	ErrOpen   apperrors.Error = apperrors.New("conversation could not be opened")
)

// stepError derives a kind error whose message is the cause's message, so backend text
// reaches the user verbatim.
func stepError(kind apperrors.Error, cause error) apperrors.Error {
	return withTimeoutCode(kind.MsgErr(cause.Error(), cause), cause)
}

// kindError keeps the kind's own message and attaches the cause.
func kindError(kind apperrors.Error, cause error) apperrors.Error {
	return withTimeoutCode(kind.Err(cause), cause)
}

func withTimeoutCode(err apperrors.Error, cause error) apperrors.Error {
	if errors.Is(cause, kmsdk.ErrTimeout) {
		return err.SetExitCode(apperrors.ExitTimeout)
	}
	return err
}
