package server

import (
	"io"

	"goredis/internal/resp"
)

func writeValue(w io.Writer, v resp.Value) {
	_, _ = w.Write(v.Encode())
}

func writeError(w io.Writer, msg string) {
	writeValue(w, resp.SimpleError(msg))
}

func writeErrorIfReply(p *Params, msg string) Result {
	if p.ShouldReply {
		writeError(p.Writer, msg)
	}
	return Result{Outcome: OutcomeError}
}

func wrongArity(p *Params, cmd string) Result {
	return writeErrorIfReply(p, "ERR wrong number of arguments for '"+cmd+"' command")
}
