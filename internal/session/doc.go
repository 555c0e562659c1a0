// Package session runs one remote viewport: a renderer process, an encoder
// capturing the renderer's window, and the motion controller that drives
// the renderer's camera. A Registry owns the sessions of a host process.
package session
