package ccsessions

import (
	"runtime"
	"strings"
)

// Transport decides how a Claude directory path is reached on this host.
// On Windows with UseWSL set, Linux paths are rewritten to the \\wsl$ share.
type Transport struct {
	UseWSL bool
	Distro string

	goos string
}

// Resolve maps path to a host-readable path
func (t Transport) Resolve(path string) string {
	goos := t.goos
	if goos == "" {
		goos = runtime.GOOS
	}
	if !t.UseWSL || goos != "windows" || t.Distro == "" {
		return path
	}
	return WSLPath(t.Distro, path)
}

// WSLPath rewrites an absolute Linux path inside distro to its Windows share
// path. Relative paths are returned unchanged.
func WSLPath(distro, linuxPath string) string {
	if distro == "" || !strings.HasPrefix(linuxPath, "/") {
		return linuxPath
	}
	return `\\wsl$\` + distro + strings.ReplaceAll(linuxPath, "/", `\`)
}
