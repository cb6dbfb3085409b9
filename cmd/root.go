// Package cmd implements commands for the msig executable.
package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msigvault/msig/cmd/client"
	"github.com/msigvault/msig/cmd/serve"
	"github.com/msigvault/msig/cmd/simulator"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/multisig"
)

var rootCmd = &cobra.Command{
	Use:           "msig",
	Short:         "Multisig wallet client, directory service and contract simulator",
	SilenceErrors: true,
}

// Execute spawns the main entry point after handing the config file.
func Execute() {
	// Debug hook. If we receive SIGUSR1, dump all goroutines.
	go dumpGoroutinesOnSignal(syscall.SIGUSR1)

	if err := rootCmd.Execute(); err != nil {
		if kind := multisig.KindOf(err); kind != multisig.KindTransport {
			fmt.Fprintf(os.Stderr, "%s: %v\n", kind, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	for _, f := range []func(*cobra.Command){
		serve.Register,
		simulator.Register,
		client.Register,
	} {
		f(rootCmd)
	}
}

// Starts listening for the specified signals, and logs a dump of all
// goroutines when the process receives one of those signals.
func dumpGoroutinesOnSignal(signals ...os.Signal) {
	logger := log.NewDefaultLogger("toplevel")
	c := make(chan os.Signal, 1)
	signal.Notify(c, signals...)
	for range c {
		b := bytes.NewBufferString("")
		_ = pprof.Lookup("goroutine").WriteTo(b, 1)
		logger.Warn("USER-REQUESTED DUMP: all goroutines", "goroutines_all", b.String())

		b = bytes.NewBufferString("")
		_ = pprof.Lookup("block").WriteTo(b, 1)
		logger.Warn("USER-REQUESTED DUMP: stack traces that led to blocking on synchronization primitives", "goroutines_block", b.String())
	}
}
