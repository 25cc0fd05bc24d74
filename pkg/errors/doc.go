// Package errors provides structured error codes for simple-idp.
//
// Every failure the second-factor flows can produce maps to one code:
//
//   - ErrCodePreconditionFailed: no pending 2FA session, no signed-in user
//   - ErrCodeValidationFailed: malformed phone number, missing code (Details: field -> message)
//   - ErrCodeGatewayFailed: the SMS gateway or mail relay refused the message
//   - ErrCode2FAInvalid: code mismatch, always the generic "Invalid code."
//   - ErrCodeUserLocked: lockout signalled by the sign-in manager
//   - ErrCodePersistenceFailed: the user store rejected an update
//
// Handlers turn an error into a response with MapErrorCodeToHTTPStatus and
// PublicMessage:
//
//	if err != nil {
//		status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//		render.Status(r, status)
//		render.JSON(w, r, map[string]any{"error": errors.PublicMessage(err)})
//	}
package errors
