// Package scripts holds the Risor extraction scripts run by the index
// builder. They are embedded so the binary works from any directory.
package scripts

import "embed"

// FS contains extract/<language>.risor.
//
//go:embed extract/*.risor
var FS embed.FS
