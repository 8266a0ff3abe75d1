package models

import (
	"sort"
	"strings"

	"github.com/Cloudsky01/relstage/internal/apperr"
)

// Channel is a release track selecting which build variant gets staged
type Channel string

const (
	ChannelStable       Channel = "stable"
	ChannelExperimental Channel = "experimental"
	ChannelRC           Channel = "rc"
	ChannelLatest       Channel = "latest"
)

// DependencyRoot is the directory the channel build is copied to inside a
// staged commit directory.
const DependencyRoot = "node_modules"

var channelSourceDirs = map[Channel]string{
	ChannelStable:       "oss-stable",
	ChannelExperimental: "oss-experimental",
	ChannelRC:           "oss-stable-rc",
	ChannelLatest:       "oss-stable-semver",
}

// ParseChannel validates a channel name
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := channelSourceDirs[c]; !ok {
		return "", apperr.Configuration("unknown release channel %q (expected one of %s)", s, strings.Join(ChannelNames(), ", "))
	}
	return c, nil
}

// SourceDir returns the directory inside the extracted build that holds this
// channel's packages.
func (c Channel) SourceDir() (string, error) {
	dir, ok := channelSourceDirs[c]
	if !ok {
		return "", apperr.Configuration("unknown release channel %q", string(c))
	}
	return dir, nil
}

// ChannelNames lists the known channels, sorted
func ChannelNames() []string {
	names := make([]string, 0, len(channelSourceDirs))
	for c := range channelSourceDirs {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}
