// Command casdoor-authd is a reverse proxy that admits requests only when
// they carry a valid Casdoor token or target a public path.
package main

import "os"

// version can be set during build with -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd(os.Environ()).Execute(); err != nil {
		os.Exit(1)
	}
}
