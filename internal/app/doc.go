// Package app contains the host application: it loads configuration, builds
// the logger and the peer, and runs the peer until it is told to stop. It is
// decoupled from any specific entrypoint like a CLI or server.
package app
