// Package version reports the icoder build identity.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const (
	defaultModule = "pkt.systems/icoder"
	product       = "icoder"
	unknown       = "v0.0.0-unknown"
)

// buildVersion is set via -ldflags "-X pkt.systems/icoder/internal/version.buildVersion=...".
var buildVersion = ""

// Info is the build identity assembled from ldflags and debug.BuildInfo.
type Info struct {
	Module   string
	Version  string
	Revision string
	Time     time.Time
	Dirty    bool
}

// String renders the version, with a +dirty suffix only when dirty is true.
func (i Info) String(dirty bool) string {
	v := i.Version
	if v == "" {
		v = unknown
	}
	v = strings.TrimSuffix(v, "+dirty")
	if dirty && i.Dirty {
		v += "+dirty"
	}
	return v
}

// Read collects the build identity of the running binary.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuild(strings.TrimSpace(buildVersion), info)
}

func fromBuild(override string, info *debug.BuildInfo) Info {
	out := Info{Module: defaultModule}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		out.Revision, out.Time, out.Dirty = vcsSettings(info.Settings)
	}
	switch {
	case override != "":
		out.Version = override
		out.Dirty = out.Dirty || strings.HasSuffix(override, "+dirty")
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = info.Main.Version
		out.Dirty = out.Dirty || strings.HasSuffix(info.Main.Version, "+dirty")
	case out.Revision != "" && !out.Time.IsZero():
		rev := out.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		out.Version = "v0.0.0-" + out.Time.UTC().Format("20060102150405") + "-" + rev
	}
	return out
}

func vcsSettings(settings []debug.BuildSetting) (revision string, at time.Time, modified bool) {
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.time":
			if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				at = parsed
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	return revision, at, modified
}

// Current returns the version without a dirty suffix.
func Current() string {
	return Read().String(false)
}

// CurrentWithDirty includes +dirty when the build came from a modified tree.
func CurrentWithDirty() string {
	return Read().String(true)
}

// Module returns the main module path.
func Module() string {
	return Read().Module
}

// UserAgent is sent on outbound HTTP requests.
func UserAgent() string {
	return product + "/" + Current()
}
