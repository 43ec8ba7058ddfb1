package buffer

import "errors"

var (
	ErrInvalidTermLength = errors.New("buffer: term length must be a power of two in [64KiB, 1GiB]")
	ErrBackPressured     = errors.New("buffer: publisher limit reached")
	ErrAdminAction       = errors.New("buffer: claim crossed a term boundary, retry")
	ErrClosed            = errors.New("buffer: log buffer closed")
	ErrMaxMessageSize    = errors.New("buffer: message exceeds max message length")
)
