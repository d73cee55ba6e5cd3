package main

// Version is the current build's version string. Set at build time via
// -ldflags the way the teacher stamps its server binary.
var Version = "0.1.0-dev"
