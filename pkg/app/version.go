package app

// Version is overridable at build time via -ldflags.
var Version = "dev"
