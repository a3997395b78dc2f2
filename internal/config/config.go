// Package config holds the server's startup configuration, the single
// source of truth CONFIG GET reads from.
package config

import "fmt"

// ReplicaOf names an upstream master, present only when the process
// was started with --replicaof.
type ReplicaOf struct {
	Host string
	Port int
}

// Config mirrors spec.md §3's Config model plus the ambient fields
// SPEC_FULL.md §2 adds (MetricsAddr, LogLevel). Trimmed from
// faizanhussain2310-GoRedis/internal/server/config.go's much larger
// Config, which carries AOF/pipeline/slowlog fields this spec doesn't
// need.
type Config struct {
	Port       int
	Dir        string
	DBFilename string
	ReplicaOf  *ReplicaOf

	MetricsAddr string
	LogLevel    string
}

func Default() *Config {
	return &Config{
		Port:     6379,
		LogLevel: "info",
	}
}

// SnapshotPath returns the full path to the configured snapshot file,
// or "" if dir/dbfilename aren't both set (spec.md §6: only attempt a
// load when both are present).
func (c *Config) SnapshotPath() string {
	if c.Dir == "" || c.DBFilename == "" {
		return ""
	}
	sep := "/"
	if len(c.Dir) > 0 && c.Dir[len(c.Dir)-1] == '/' {
		sep = ""
	}
	return c.Dir + sep + c.DBFilename
}

// ReplicaOfString renders the configured upstream as "host port", the
// form CONFIG GET replicaof and INFO-adjacent reporting expect; it is
// empty when this process is a master.
func (c *Config) ReplicaOfString() string {
	if c.ReplicaOf == nil {
		return ""
	}
	return fmt.Sprintf("%s %d", c.ReplicaOf.Host, c.ReplicaOf.Port)
}

// IsReplica reports whether the process was started with --replicaof.
func (c *Config) IsReplica() bool { return c.ReplicaOf != nil }
