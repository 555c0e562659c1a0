// Package scene maps an asset's model path onto the files the renderer
// loads and checks that the snapshot is readable before a session starts.
package scene
