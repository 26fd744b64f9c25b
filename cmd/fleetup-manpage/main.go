package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/fleetup/cmd/fleetup"
	"github.com/arthur-debert/fleetup/internal/version"
)

func main() {
	rootCmd := fleetup.NewRootCmd()

	header := &doc.GenManHeader{
		Title:   "FLEETUP",
		Section: "1",
		Source:  "fleetup " + version.Version,
		Manual:  "fleetup manual",
	}

	if err := doc.GenMan(rootCmd, header, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man page: %v\n", err)
		os.Exit(1)
	}
}
