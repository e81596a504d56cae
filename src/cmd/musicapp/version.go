package main

// Version is the musicapp version. It is overwritten at build time via
// -ldflags "-X main.Version=..."
var Version = "0.1.0"
