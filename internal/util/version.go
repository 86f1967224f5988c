package util

// Version is set at build time via -ldflags. HTTP clients include it in
// their User-Agent, which MusicBrainz requires to identify applications.
var Version = "dev"
