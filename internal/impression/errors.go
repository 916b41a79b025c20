package impression

import "errors"

var (
	ErrUserNotFound = errors.New("user record not found")

	ErrBirthdayFormat = errors.New("birthday must be YYYY-MM-DD")
	ErrBirthdayYear   = errors.New("year out of range")
	ErrBirthdayMonth  = errors.New("month out of range")
	ErrBirthdayDay    = errors.New("day out of range")
)
