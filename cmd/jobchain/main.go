// Command jobchain loads chain manifests, validates and describes them, and
// runs the chains listening to an event on a local engine.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
