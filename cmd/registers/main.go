// registers serves content-addressed registers over HTTP.
//
// # Commands
//
//	registers serve                      Serve every register by request host
//	registers load <register>            Ingest a register's archive
//	registers get <register> <hash>      Print one entry
//	registers find <register>            Print a page of entries
//
// # Configuration
//
// Settings are read from registers.yaml (searched for from the working
// directory upwards, or given with --config) and REGISTERS_* environment
// variables:
//
//	listen: ":8080"
//	domain: openregister.org
//	archiveUrl: https://github.com/openregister/{register}.register/archive/master.zip
//	backend: badger            # or dynamodb
//	dataDir: ./data
//	dynamodb:
//	  table: registers
//	  region: eu-west-2
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "registers: %v\n", err)
		os.Exit(1)
	}
}
