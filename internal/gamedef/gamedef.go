// Package gamedef holds the static definitions for each supported game
// release: SQLite table names, base master sets, and master-addressing rules.
// Every component that needs a table name resolves it here; table names are
// never built from caller-supplied strings.
package gamedef

import (
	"fmt"
	"strings"
)

// Release identifies one supported game release.
type Release int

const (
	ReleaseUnknown Release = iota
	SkyrimLE
	SkyrimSE
	Fallout4
	Starfield
)

var releaseNames = map[Release]string{
	SkyrimLE:  "skyrim",
	SkyrimSE:  "skyrimse",
	Fallout4:  "fallout4",
	Starfield: "starfield",
}

func (r Release) String() string {
	if n, ok := releaseNames[r]; ok {
		return n
	}
	return fmt.Sprintf("release(%d)", int(r))
}

// ParseRelease maps a user-facing name to a Release. Matching is
// case-insensitive and accepts a few common aliases.
func ParseRelease(name string) (Release, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "skyrim", "skyrimle", "tes5":
		return SkyrimLE, nil
	case "skyrimse", "sse", "skyrimspecialedition":
		return SkyrimSE, nil
	case "fallout4", "fo4":
		return Fallout4, nil
	case "starfield", "sf":
		return Starfield, nil
	default:
		return ReleaseUnknown, fmt.Errorf("unknown game release %q", name)
	}
}

// tableNames is the fixed release→table allow-list. Unlisted releases are
// rejected by TableName.
var tableNames = map[Release]string{
	SkyrimLE:  "skyrim",
	SkyrimSE:  "skyrimse",
	Fallout4:  "fallout4",
	Starfield: "starfield",
}

// TableName resolves the SQLite table for a release through the allow-list.
func TableName(r Release) (string, error) {
	name, ok := tableNames[r]
	if !ok {
		return "", fmt.Errorf("no table registered for release %s", r)
	}
	return name, nil
}

// basePlugins lists the official master files shipped with each release,
// lower-cased for case-insensitive membership checks.
var basePlugins = map[Release][]string{
	SkyrimLE: {
		"skyrim.esm", "update.esm", "dawnguard.esm", "hearthfires.esm", "dragonborn.esm",
	},
	SkyrimSE: {
		"skyrim.esm", "update.esm", "dawnguard.esm", "hearthfires.esm", "dragonborn.esm",
	},
	Fallout4: {
		"fallout4.esm", "dlcrobot.esm", "dlcworkshop01.esm", "dlcworkshop02.esm",
		"dlcworkshop03.esm", "dlccoast.esm", "dlcnukaworld.esm",
	},
	Starfield: {
		"starfield.esm", "constellation.esm", "oldmars.esm", "blueprintships-starfield.esm",
	},
}

// IsBasePlugin reports whether name is one of the release's official master
// files. The comparison is case-insensitive.
func IsBasePlugin(r Release, name string) bool {
	lower := strings.ToLower(name)
	for _, base := range basePlugins[r] {
		if base == lower {
			return true
		}
	}
	return false
}

// MasterStyle is the addressing scheme that decides how a cross-plugin
// reference's bits split between record id and master index.
type MasterStyle int

const (
	MasterFull MasterStyle = iota
	MasterMedium
	MasterSmall
)

func (s MasterStyle) String() string {
	switch s {
	case MasterFull:
		return "full"
	case MasterMedium:
		return "medium"
	case MasterSmall:
		return "small"
	default:
		return fmt.Sprintf("masterstyle(%d)", int(s))
	}
}

// UsesSeparatedMasters reports whether the release splits master addressing
// into more than one style, making per-plugin style metadata meaningful.
func UsesSeparatedMasters(r Release) bool {
	switch r {
	case SkyrimSE, Fallout4, Starfield:
		return true
	default:
		return false
	}
}
