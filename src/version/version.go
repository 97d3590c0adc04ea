package version

// Version is the current compose-manager release.
var Version = "1.0.0"
