package ch

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// clientInfo tags every query in system.query_log with who sent it
func clientInfo(role, tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	commit := "unknown"
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		}
	}

	info := clickhouse.ClientInfo{}
	for _, p := range [][2]string{
		{"exoseek", tag}, {"role", role}, {"go", runtime.Version()}, {"commit", commit}, {"host", host},
	} {
		info.Products = append(info.Products, struct{ Name, Version string }{p[0], strings.TrimSpace(p[1])})
	}
	return info
}
