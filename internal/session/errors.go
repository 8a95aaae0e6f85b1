package session

import "errors"

var (
	ErrEmptyDraft       = errors.New("message must have text or an attachment")
	ErrAttachmentUpload = errors.New("attachment upload failed")
	ErrPersistence      = errors.New("failed to persist change")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNotAuthor        = errors.New("only the author can modify the message")
	ErrSessionClosed    = errors.New("session is closed")
)
