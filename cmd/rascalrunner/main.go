package main

import (
	"os"

	"github.com/nopcorn/rascalrunner/cli"
	"github.com/nopcorn/rascalrunner/errors"
)

// Exit signals: 0 success, 1 failure with complete cleanup, 2 cleanup left
// resources behind on the target.
func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		verbose := false
		for _, arg := range os.Args[1:] {
			if arg == "-v" || arg == "--verbose" {
				verbose = true
			}
		}
		cli.NewErrorHandler(verbose).Handle(err)

		if errors.Is(err, errors.ErrCodeCleanupPartial) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
