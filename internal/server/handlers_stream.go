package server

import (
	"strconv"
	"strings"
	"time"

	"goredis/internal/resp"
	"goredis/internal/store"
)

// handleXAdd implements spec.md §4.3: key id [field value]...
func handleXAdd(p *Params) Result {
	if len(p.Args) < 5 || len(p.Args)%2 != 1 {
		return wrongArity(p, "xadd")
	}
	key, rawID := p.Args[1], p.Args[2]
	fields := make(map[string]string, (len(p.Args)-3)/2)
	for i := 3; i+1 < len(p.Args); i += 2 {
		fields[p.Args[i]] = p.Args[i+1]
	}

	id, err := p.Keyspace.XAdd(key, rawID, fields)
	if err != nil {
		return writeErrorIfReply(p, err.Error())
	}

	propagateIfMaster(p)
	if p.ShouldReply {
		writeValue(p.Writer, resp.BulkString(formatStreamID(id)))
	}
	return Result{Outcome: OutcomeOK}
}

func formatStreamID(id store.StreamID) string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// parseRangeToken parses an XRANGE boundary token: "-" -> (0,0), "+"
// -> (max,max), "ms" -> (ms,0), "ms-seq" -> (ms,seq). original_source
// reuses the wrong-arity message for a malformed token rather than a
// distinct parse error (SPEC_FULL.md §10); this mirrors that.
func parseRangeToken(tok string, isStart bool) (store.StreamID, bool) {
	if isStart && tok == "-" {
		return store.StreamID{}, true
	}
	if !isStart && tok == "+" {
		return store.StreamID{Ms: ^uint64(0), Seq: ^uint64(0)}, true
	}
	msPart, seqPart, hasDash := strings.Cut(tok, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return store.StreamID{}, false
	}
	if !hasDash {
		return store.StreamID{Ms: ms, Seq: 0}, true
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return store.StreamID{}, false
	}
	return store.StreamID{Ms: ms, Seq: seq}, true
}

func handleXRange(p *Params) Result {
	if len(p.Args) != 4 {
		return wrongArity(p, "xrange")
	}
	start, ok := parseRangeToken(p.Args[2], true)
	if !ok {
		return wrongArity(p, "xrange")
	}
	end, ok := parseRangeToken(p.Args[3], false)
	if !ok {
		return wrongArity(p, "xrange")
	}

	entries, found, err := p.Keyspace.XRange(p.Args[1], start, end)
	if !p.ShouldReply {
		if err != nil {
			return Result{Outcome: OutcomeError}
		}
		return Result{Outcome: OutcomeOK}
	}
	if err != nil {
		writeError(p.Writer, err.Error())
		return Result{Outcome: OutcomeError}
	}
	if !found {
		writeValue(p.Writer, resp.NullArray())
		return Result{Outcome: OutcomeOK}
	}
	writeValue(p.Writer, encodeStreamEntries(entries))
	return Result{Outcome: OutcomeOK}
}

func encodeStreamEntries(entries []store.StreamEntry) resp.Value {
	elems := make([]resp.Value, len(entries))
	for i, e := range entries {
		fieldElems := make([]resp.Value, 0, len(e.Fields)*2)
		for k, v := range e.Fields {
			fieldElems = append(fieldElems, resp.BulkString(k), resp.BulkString(v))
		}
		elems[i] = resp.Array([]resp.Value{
			resp.BulkString(formatStreamID(e.ID)),
			resp.Array(fieldElems),
		})
	}
	return resp.Array(elems)
}

// handleXRead implements XREAD [COUNT n] [BLOCK ms] STREAMS key... id...
// The design-notes-mandated polling strategy (§9): a short sleep
// between probes, with the keyspace lock held only for the probe
// itself, never across the sleep.
func handleXRead(p *Params) Result {
	args := p.Args[1:]
	count := 0
	blockMs := -1 // -1: no BLOCK clause
	for len(args) > 0 {
		switch strings.ToUpper(args[0]) {
		case "COUNT":
			if len(args) < 2 {
				return wrongArity(p, "xread")
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return writeErrorIfReply(p, "ERR invalid count")
			}
			count = n
			args = args[2:]
		case "BLOCK":
			if len(args) < 2 {
				return wrongArity(p, "xread")
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return writeErrorIfReply(p, "ERR invalid block")
			}
			blockMs = n
			args = args[2:]
		case "STREAMS":
			args = args[1:]
			goto streams
		default:
			return wrongArity(p, "xread")
		}
	}
streams:
	if len(args) == 0 || len(args)%2 != 0 {
		return wrongArity(p, "xread")
	}
	n := len(args) / 2
	keys := args[:n]
	idToks := args[n:]

	queries := make([]store.XReadQuery, n)
	for i := range keys {
		after, ok := resolveXReadID(p, keys[i], idToks[i])
		if !ok {
			return writeErrorIfReply(p, "ERR Invalid stream ID specified as stream command argument")
		}
		queries[i] = store.XReadQuery{Key: keys[i], After: after}
	}

	result, found := p.Keyspace.XRead(queries, count)
	if blockMs >= 0 && !found {
		found = pollBlocking(p, queries, count, blockMs, &result)
	}

	if !p.ShouldReply {
		return Result{Outcome: OutcomeOK}
	}
	if !found {
		writeValue(p.Writer, resp.NullArray())
		return Result{Outcome: OutcomeOK}
	}
	elems := make([]resp.Value, 0, len(keys))
	for _, k := range keys {
		entries, ok := result[k]
		if !ok {
			continue
		}
		elems = append(elems, resp.Array([]resp.Value{resp.BulkString(k), encodeStreamEntries(entries)}))
	}
	writeValue(p.Writer, resp.Array(elems))
	return Result{Outcome: OutcomeOK}
}

// resolveXReadID turns an XREAD id token into an exclusive lower
// bound: "$" captures the stream's current top id (only entries from
// now on), anything else parses as a literal id.
func resolveXReadID(p *Params, key, tok string) (store.StreamID, bool) {
	if tok == "$" {
		if last, ok := p.Keyspace.LastStreamID(key); ok {
			return last, true
		}
		return store.StreamID{}, true
	}
	return parseRangeToken(tok, false)
}

// pollBlocking polls XRead with the lock held only for the duration of
// each probe, per spec.md §9. blockMs == 0 waits indefinitely.
func pollBlocking(p *Params, queries []store.XReadQuery, count, blockMs int, result *map[string][]store.StreamEntry) bool {
	var deadline time.Time
	hasDeadline := blockMs > 0
	if hasDeadline {
		deadline = time.Now().Add(time.Duration(blockMs) * time.Millisecond)
	}
	for {
		if hasDeadline && time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
		r, found := p.Keyspace.XRead(queries, count)
		if found {
			*result = r
			return true
		}
	}
}
