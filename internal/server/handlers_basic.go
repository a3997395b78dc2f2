package server

import (
	"strconv"
	"strings"
	"time"

	"goredis/internal/replication"
	"goredis/internal/resp"
	"goredis/internal/store"
)

func handlePing(p *Params) Result {
	if p.ShouldReply {
		writeValue(p.Writer, resp.SimpleString("PONG"))
	}
	return Result{Outcome: OutcomeOK}
}

func handleEcho(p *Params) Result {
	if len(p.Args) != 2 {
		return wrongArity(p, "echo")
	}
	if p.ShouldReply {
		writeValue(p.Writer, resp.SimpleString(p.Args[1]))
	}
	return Result{Outcome: OutcomeOK}
}

func handleGet(p *Params) Result {
	if len(p.Args) != 2 {
		return wrongArity(p, "get")
	}
	v, ok := p.Keyspace.Get(p.Args[1])
	if !p.ShouldReply {
		return Result{Outcome: OutcomeOK}
	}
	if !ok {
		writeValue(p.Writer, resp.NullBulkString())
		return Result{Outcome: OutcomeOK}
	}
	if v.Body.Kind != store.BodyString {
		writeError(p.Writer, store.ErrWrongType.Error())
		return Result{Outcome: OutcomeError}
	}
	writeValue(p.Writer, resp.BulkString(v.Body.Str))
	return Result{Outcome: OutcomeOK}
}

// handleSet implements SET key value [PX ms], case-insensitively for
// the option name (supplemented from original_source's SET parsing,
// per SPEC_FULL.md §10).
func handleSet(p *Params) Result {
	if len(p.Args) < 3 {
		return wrongArity(p, "set")
	}
	key, value := p.Args[1], p.Args[2]

	var ttl *time.Duration
	rest := p.Args[3:]
	for len(rest) > 0 {
		if len(rest) < 2 {
			return writeErrorIfReply(p, "ERR syntax error")
		}
		switch strings.ToUpper(rest[0]) {
		case "PX":
			ms, err := strconv.ParseInt(rest[1], 10, 64)
			if err != nil {
				return writeErrorIfReply(p, "ERR invalid px")
			}
			d := time.Duration(ms) * time.Millisecond
			ttl = &d
		default:
			return writeErrorIfReply(p, "ERR syntax error")
		}
		rest = rest[2:]
	}

	p.Keyspace.Set(key, store.StringBody(value), ttl)
	propagateIfMaster(p)
	if p.ShouldReply {
		writeValue(p.Writer, resp.SimpleString("OK"))
	}
	return Result{Outcome: OutcomeOK}
}

func handleDel(p *Params) Result {
	if len(p.Args) < 2 {
		return wrongArity(p, "del")
	}
	count := 0
	for _, k := range p.Args[1:] {
		if p.Keyspace.Delete(k) {
			count++
		}
	}
	propagateIfMaster(p)
	if p.ShouldReply {
		writeValue(p.Writer, resp.Integer(int64(count)))
	}
	return Result{Outcome: OutcomeOK}
}

func handleType(p *Params) Result {
	if len(p.Args) != 2 {
		return wrongArity(p, "type")
	}
	if p.ShouldReply {
		writeValue(p.Writer, resp.SimpleString(p.Keyspace.Type(p.Args[1])))
	}
	return Result{Outcome: OutcomeOK}
}

// handleKeys ignores any pattern argument: spec.md §4.4 explicitly
// does not require pattern matching for the core.
func handleKeys(p *Params) Result {
	if p.ShouldReply {
		keys := p.Keyspace.Keys()
		elems := make([]resp.Value, len(keys))
		for i, k := range keys {
			elems[i] = resp.BulkString(k)
		}
		writeValue(p.Writer, resp.Array(elems))
	}
	return Result{Outcome: OutcomeOK}
}

// handleConfig implements CONFIG GET key | CONFIG GET *.
func handleConfig(p *Params) Result {
	if len(p.Args) < 2 || !strings.EqualFold(p.Args[1], "GET") || len(p.Args) != 3 {
		return wrongArity(p, "config|get")
	}
	if !p.ShouldReply {
		return Result{Outcome: OutcomeOK}
	}

	pairs := func(keys ...string) []resp.Value {
		var out []resp.Value
		for _, k := range keys {
			out = append(out, resp.BulkString(k), configValue(p, k))
		}
		return out
	}

	query := p.Args[2]
	if query == "*" {
		writeValue(p.Writer, resp.Array(pairs("dir", "dbfilename", "port", "replicaof")))
		return Result{Outcome: OutcomeOK}
	}
	switch strings.ToLower(query) {
	case "dir", "dbfilename", "port", "replicaof":
		writeValue(p.Writer, resp.Array(pairs(strings.ToLower(query))))
	default:
		writeValue(p.Writer, resp.Array(nil))
	}
	return Result{Outcome: OutcomeOK}
}

func configValue(p *Params, key string) resp.Value {
	switch key {
	case "dir":
		if p.Cfg.Dir == "" {
			return resp.NullBulkString()
		}
		return resp.BulkString(p.Cfg.Dir)
	case "dbfilename":
		if p.Cfg.DBFilename == "" {
			return resp.NullBulkString()
		}
		return resp.BulkString(p.Cfg.DBFilename)
	case "port":
		return resp.BulkString(strconv.Itoa(p.Cfg.Port))
	case "replicaof":
		s := p.Cfg.ReplicaOfString()
		if s == "" {
			return resp.NullBulkString()
		}
		return resp.BulkString(s)
	default:
		return resp.NullBulkString()
	}
}

func handleInfo(p *Params) Result {
	if p.ShouldReply {
		writeValue(p.Writer, resp.BulkString(p.Repl.GetInfo()))
	}
	return Result{Outcome: OutcomeOK}
}

// propagateIfMaster forwards the raw command bytes to every replica
// and advances master_repl_offset, only when this process is a
// master — a slave applying a propagated write must not re-propagate
// it (it has no replicas of its own in this spec's single-tier model).
func propagateIfMaster(p *Params) {
	if p.Repl.Role() != replication.RoleMaster {
		return
	}
	p.Repl.Propagate(p.RawCommand)
	if p.Metric != nil {
		p.Metric.MasterReplOffset.Set(float64(p.Repl.MasterOffset()))
		p.Metric.ConnectedReplicas.Set(float64(p.Repl.ConnectedSlaves()))
	}
}
