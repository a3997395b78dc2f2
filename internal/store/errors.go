package store

import "errors"

// These sentinel errors carry their own wire-visible text: handlers
// turn them into a SimpleError reply verbatim, mirroring
// faizanhussain2310-GoRedis/internal/storage/errors.go's convention
// of storing the RESP error message directly in the sentinel.
var (
	ErrWrongType       = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrInvalidIDFormat = errors.New("ERR wrong id format for 'xadd' command")
	ErrIDTooSmall      = errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")
	ErrIDZero          = errors.New("ERR The ID specified in XADD must be greater than 0-0")
)
