package validation

import (
	"strings"

	"quic-chat-system/internal/errors"
)

const (
	maxUsernameLength = 64
	maxContentLength  = 4000
	maxPageSize       = 500
)

// ValidateUsername rejects usernames that are empty after trimming or
// overlong. Usernames are case-sensitive; no normalization is applied.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return errors.Newf(errors.KindRequestInvalid, "username is required")
	}
	if len(username) > maxUsernameLength {
		return errors.Newf(errors.KindRequestInvalid, "username exceeds %d characters", maxUsernameLength)
	}
	return nil
}

// ValidatePassword rejects empty or all-whitespace passwords.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return errors.Newf(errors.KindRequestInvalid, "password is required")
	}
	return nil
}

// ValidateMessageContent rejects empty and overlong message bodies.
func ValidateMessageContent(content string) error {
	if content == "" {
		return errors.Newf(errors.KindRequestInvalid, "message content is required")
	}
	if len(content) > maxContentLength {
		return errors.Newf(errors.KindRequestInvalid, "message exceeds %d characters", maxContentLength)
	}
	return nil
}

// ValidatePageSize rejects zero and unreasonably large page sizes.
func ValidatePageSize(pageSize uint64) error {
	if pageSize == 0 {
		return errors.Newf(errors.KindRequestInvalid, "page_size must be positive")
	}
	if pageSize > maxPageSize {
		return errors.Newf(errors.KindRequestInvalid, "page_size exceeds %d", maxPageSize)
	}
	return nil
}
