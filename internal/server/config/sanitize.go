package config

import (
	"path/filepath"
	"strings"

	"github.com/yndnr/filekv/internal/storage/journal"
)

// Sanitize returns a normalized copy of cfg: names are trimmed and
// lower-cased, paths are cleaned, and the "bolt" alias becomes "bbolt".
// The original is not modified.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg

	out.Storage.DefaultDir = cleanPath(out.Storage.DefaultDir)
	out.Journal.Dir = cleanPath(out.Journal.Dir)
	out.Server.Local.Path = cleanPath(out.Server.Local.Path)
	out.Server.HTTP.Addr = strings.TrimSpace(out.Server.HTTP.Addr)

	out.Journal.Engine = strings.ToLower(strings.TrimSpace(out.Journal.Engine))
	switch out.Journal.Engine {
	case "":
		out.Journal.Engine = journal.EngineNone
	case "bolt":
		out.Journal.Engine = journal.EngineBolt
	}

	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))
	out.Log.Format = strings.ToLower(strings.TrimSpace(out.Log.Format))

	return &out
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
