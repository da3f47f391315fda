package types

import "errors"

var (
	errReplyMissingDetails = errors.New("types: reply dispatch missing reply-to details")
	errSignalHasReply      = errors.New("types: signal dispatch must not carry reply details")
	errSignalHasValue      = errors.New("types: signal dispatch must not carry value")
)
