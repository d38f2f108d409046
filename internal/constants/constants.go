// Package constants defines application-wide constants and version information.
package constants

import "runtime"

// Version holds the application version information
const Version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

// AppName is used in log lines, client IDs and the version banner
const AppName = "sensorpipe"
