package domain

import "errors"

// Sentinel errors. Wrap them with fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrInvalidProfile  = errors.New("invalid profile directory")
	ErrAutoProfile     = errors.New("profile directory must be set explicitly")
	ErrBrowserNotFound = errors.New("browser executable not found")
	ErrMalformedPrefs  = errors.New("malformed preferences")
	ErrEmptyPrefsFile  = errors.New("preference file is empty or missing")
	ErrPhaseReserved   = errors.New("hook phase is reserved")
	ErrScheduleFailed  = errors.New("failed to schedule restart")
)
