// Package desktop drives the renderer window through xdotool: it locates
// the window by title and implements motion.Actuator with synthetic X11
// pointer events.
package desktop
