package server

import (
	"strconv"
	"strings"

	"goredis/internal/resp"
)

// canned RDB payload sent as the "empty dataset" marker on full
// resync. spec.md §1 names this an external collaborator (only its
// length/framing contract is specified); 88 bytes matches the
// concrete scenario size used in spec.md's own worked examples.
var cannedRDB = make([]byte, 88)

// handleReplConf implements REPLCONF listening-port <port>, REPLCONF
// capa psync2, and REPLCONF ACK <n> / GETACK * per spec.md §4.5/§4.6.
func handleReplConf(p *Params) Result {
	if len(p.Args) < 2 {
		return wrongArity(p, "replconf")
	}
	switch strings.ToUpper(p.Args[1]) {
	case "LISTENING-PORT":
		if len(p.Args) != 3 {
			return wrongArity(p, "replconf")
		}
		port, err := strconv.Atoi(p.Args[2])
		if err != nil {
			return writeErrorIfReply(p, "ERR invalid listening-port")
		}
		if p.ShouldReply {
			writeValue(p.Writer, resp.SimpleString("OK"))
		}
		return Result{Outcome: OutcomeHandshakeStarted, Port: port}
	case "CAPA":
		if p.ShouldReply {
			writeValue(p.Writer, resp.SimpleString("OK"))
		}
		return Result{Outcome: OutcomeHandshakeCapaReceived}
	case "GETACK":
		// Even in no-reply (replica-upstream) mode, GETACK is
		// answered, per spec.md §4.6. The reported offset is the
		// value captured *before* this command's own bytes are
		// added (spec.md's scenario 6), which AdvanceSlaveReadOffset
		// for this frame happens right after, in the connection loop.
		writeValue(p.Writer, resp.StringArray("REPLCONF", "ACK", strconv.FormatUint(p.Repl.SlaveReadOffset(), 10)))
		return Result{Outcome: OutcomeOK}
	case "ACK":
		// Only ever sent by a replica to its master outside of a
		// WAIT round (e.g. unsolicited heartbeats); WAIT reads ACKs
		// directly off the replica socket rather than through
		// dispatch, so there is nothing further to do here.
		return Result{Outcome: OutcomeOK}
	default:
		if p.ShouldReply {
			writeValue(p.Writer, resp.SimpleString("OK"))
		}
		return Result{Outcome: OutcomeOK}
	}
}

// handlePSync replies with the FULLRESYNC marker and the canned RDB
// bytes, then signals HandshakeCompleted so the connection supervisor
// promotes this socket into the replica roster (spec.md §4.5/§4.8).
func handlePSync(p *Params) Result {
	reply := resp.SimpleString("FULLRESYNC " + p.Repl.ReplID() + " " + strconv.FormatUint(p.Repl.MasterOffset(), 10))
	writeValue(p.Writer, reply)
	writeValue(p.Writer, resp.Bytes(cannedRDB))
	return Result{Outcome: OutcomeHandshakeCompleted}
}

// handleWait implements spec.md §4.6's WAIT target timeout-ms.
func handleWait(p *Params) Result {
	if len(p.Args) != 3 {
		return wrongArity(p, "wait")
	}
	target, err := strconv.Atoi(p.Args[1])
	if err != nil {
		return writeErrorIfReply(p, "ERR invalid target")
	}
	timeoutMs, err := strconv.Atoi(p.Args[2])
	if err != nil {
		return writeErrorIfReply(p, "ERR invalid timeout")
	}

	synced := p.Repl.Wait(target, timeoutMs)
	if p.ShouldReply {
		writeValue(p.Writer, resp.Integer(int64(synced)))
	}
	return Result{Outcome: OutcomeOK}
}
