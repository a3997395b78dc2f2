// Package snapshot implements the minimal, load-only RDB reader
// spec.md §6 describes: it seeks the database selector, reads the
// table-size header, and materializes only string entries (with
// their expiries) into a Keyspace.
package snapshot

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"goredis/internal/store"
)

const (
	opExpireSeconds = 0xFD
	opExpireMillis  = 0xFC
	opSelectDB      = 0xFE
	opResizeDB      = 0xFB

	valueTypeString = 0
)

// Load reads path and populates ks with every string entry found,
// per spec.md §6. A missing file is not an error: it logs and leaves
// ks untouched, matching spec.md §7's "Snapshot file missing /
// unreadable: log, continue with empty keyspace."
func Load(path string, ks *store.Keyspace, log *zap.SugaredLogger) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Infow("snapshot file not found, starting with empty keyspace", "path", path)
			return nil
		}
		log.Warnw("snapshot file unreadable, starting with empty keyspace", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	r := &reader{f: f}
	if err := r.load(ks, log); err != nil {
		log.Warnw("snapshot load failed, continuing with what was loaded so far", "path", path, "error", err)
	}
	return nil
}

type reader struct {
	f io.Reader
}

func (r *reader) readByte() (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r.f, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *reader) load(ks *store.Keyspace, log *zap.SugaredLogger) error {
	header, err := r.readN(9)
	if err != nil {
		return errors.Wrap(err, "read header")
	}
	if string(header[:5]) != "REDIS" {
		return errors.New("bad magic: not a REDIS snapshot")
	}

	if err := r.seekSelector(); err != nil {
		return errors.Wrap(err, "seek database selector")
	}

	tableSize, special, err := r.readLength()
	if err != nil {
		return errors.Wrap(err, "read table size")
	}
	if special {
		return errors.New("table size uses a special length encoding, refusing to guess")
	}
	if _, _, err := r.readLength(); err != nil { // expiry table size, unused beyond the header contract
		return errors.Wrap(err, "read expiry table size")
	}

	for i := uint32(0); i < tableSize; i++ {
		cont, err := r.loadEntry(ks, log)
		if err != nil {
			return errors.Wrapf(err, "entry %d", i)
		}
		if !cont {
			log.Warnw("stopping snapshot load early: unsupported value type", "entries_loaded", i)
			return nil
		}
	}
	return nil
}

// seekSelector scans forward byte by byte until it finds the 0xFE
// 0x00 0xFB database-selector sequence spec.md §6 names, consuming
// through it.
func (r *reader) seekSelector() error {
	var window [3]byte
	filled := 0
	for {
		b, err := r.readByte()
		if err != nil {
			return err
		}
		window[0], window[1], window[2] = window[1], window[2], b
		filled++
		if filled >= 3 && window[0] == opSelectDB && window[1] == 0x00 && window[2] == opResizeDB {
			return nil
		}
	}
}

// loadEntry reads one key/value table entry. It returns cont=false
// when it encounters a value type it doesn't know how to skip safely
// (every non-string type, and stream explicitly per spec.md §9),
// at which point the caller stops rather than guess a byte layout.
func (r *reader) loadEntry(ks *store.Keyspace, log *zap.SugaredLogger) (cont bool, err error) {
	var expiresAt *time.Time

	typeByte, err := r.readByte()
	if err != nil {
		return false, err
	}
	switch typeByte {
	case opExpireSeconds:
		raw, err := r.readN(4)
		if err != nil {
			return false, err
		}
		t := time.Unix(int64(binary.LittleEndian.Uint32(raw)), 0)
		expiresAt = &t
		typeByte, err = r.readByte()
		if err != nil {
			return false, err
		}
	case opExpireMillis:
		raw, err := r.readN(8)
		if err != nil {
			return false, err
		}
		ms := binary.LittleEndian.Uint64(raw)
		t := time.UnixMilli(int64(ms))
		expiresAt = &t
		typeByte, err = r.readByte()
		if err != nil {
			return false, err
		}
	}

	key, err := r.readString()
	if err != nil {
		return false, errors.Wrap(err, "read key")
	}

	if typeByte != valueTypeString {
		log.Warnw("skipping non-string snapshot value, TODO: stream/other RDB types unsupported", "key", key, "type", typeByte)
		return false, nil
	}

	val, err := r.readString()
	if err != nil {
		return false, errors.Wrap(err, "read value")
	}

	var ttl *time.Duration
	if expiresAt != nil {
		d := time.Until(*expiresAt)
		ttl = &d
	}
	ks.Set(key, store.StringBody(val), ttl)
	return true, nil
}

func (r *reader) readString() (string, error) {
	n, special, err := r.readLength()
	if err != nil {
		return "", err
	}
	if special {
		return "", errors.New("string uses a special length encoding, refusing to guess")
	}
	data, err := r.readN(int(n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readLength implements the two-high-bit scheme: 6-bit inline,
// 14-bit two-byte, 32-bit four-byte follow-on (first byte exactly
// 0x80), and a "special" fourth branch (0xC0+) that spec.md §9 says
// the reference implements two diverging ways — this loader treats it
// conservatively and never materializes it. Any other 0x80-0xBF first
// byte, including the 0x81 64-bit form, is reported as special too.
func (r *reader) readLength() (n uint32, special bool, err error) {
	first, err := r.readByte()
	if err != nil {
		return 0, false, err
	}
	switch (first & 0xC0) >> 6 {
	case 0:
		return uint32(first & 0x3F), false, nil
	case 1:
		second, err := r.readByte()
		if err != nil {
			return 0, false, err
		}
		return uint32(first&0x3F)<<8 | uint32(second), false, nil
	case 2:
		if first != 0x80 {
			return 0, true, nil
		}
		raw, err := r.readN(4)
		if err != nil {
			return 0, false, err
		}
		return binary.BigEndian.Uint32(raw), false, nil
	default:
		return 0, true, nil
	}
}
