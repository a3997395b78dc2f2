package store

import (
	"strconv"
	"strings"
	"time"
)

// allocateStreamID implements spec.md §4.3's three id forms against
// the current top entry (last, nil if the stream is empty or new).
func allocateStreamID(rawID string, last *StreamID) (StreamID, error) {
	if rawID == "*" {
		return StreamID{Ms: uint64(time.Now().UnixMilli()), Seq: 0}, nil
	}

	msPart, seqPart, hasDash := strings.Cut(rawID, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return StreamID{}, ErrInvalidIDFormat
	}

	if hasDash && seqPart == "*" {
		var seq uint64
		switch {
		case last != nil && last.Ms == ms:
			seq = last.Seq + 1
		case ms > 0:
			seq = 0
		default:
			seq = 1
		}
		return StreamID{Ms: ms, Seq: seq}, nil
	}

	if !hasDash {
		return StreamID{}, ErrInvalidIDFormat
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return StreamID{}, ErrInvalidIDFormat
	}
	return StreamID{Ms: ms, Seq: seq}, nil
}
