// ShopClip - turn a recorded product video into a ready-to-publish listing.
package main

import (
	"os"

	"github.com/shopclip/shopclip-cli/internal/cli"
	"github.com/shopclip/shopclip-cli/internal/version"
)

// Version information, overridden by ldflags during release builds.
var (
	Version   = "v1.3.0"
	BuildTime = "unknown"
)

func main() {
	// Set version in version package (canonical source for all packages)
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
