// ABOUTME: Build version and product identification
// ABOUTME: Used in the HTTP user agent and the startup log
package version

const (
	// Version is the player release
	Version = "0.3.0"

	// Product is the name logged at startup
	Product = "CDG Player"
)

// UserAgent returns the HTTP user agent string
func UserAgent() string {
	return "cdg-player/" + Version
}
