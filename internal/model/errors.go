package model

import "errors"

var (
	// Token related errors
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenKindMismatch = errors.New("token kind mismatch")
	ErrTokenRevoked      = errors.New("token revoked")

	// Captcha related errors
	ErrCaptchaInvalid = errors.New("captcha invalid")
	ErrCaptchaMissing = errors.New("captcha missing or expired")

	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserDisabled       = errors.New("user disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Permission tree write path
	ErrPermissionNotFound   = errors.New("permission not found")
	ErrPermissionCodeExists = errors.New("permission code already exists")
	ErrParentNotFound       = errors.New("parent permission not found")
	ErrPermissionCycle      = errors.New("permission parent would create a cycle")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
