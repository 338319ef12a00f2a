// Command ircd runs a single-process, in-memory IRC server.
package main

import (
	"log"
	"os"

	"github.com/pkg/errors"
)

func main() {
	log.SetFlags(0)

	cfg, err := parseArgs(os.Args)
	if err != nil {
		log.Printf("%s", err)
		os.Exit(1)
	}

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		log.Printf("%s", errors.Wrap(err, "server error"))
		os.Exit(1)
	}

	log.Printf("server shutdown cleanly")
}
