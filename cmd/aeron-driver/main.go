// Command aeron-driver runs the conductor as a long-lived process against
// a configured aeron directory (spec.md §1 "a `cmd/aeron-driver` binary
// that runs the conductor as a long-lived process").
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aeronio/aeron-go/driver"
)

func main() {
	aeronDir := flag.String("aeron-dir", "", "aeron directory (defaults to the driver's built-in default)")
	termLength := flag.Int("term-length", 16*1024*1024, "log buffer term length in bytes")
	ringCapacity := flag.Int("command-ring-capacity", 1<<20, "client command ring capacity in bytes, must be a power of two")
	hclog := flag.Bool("hclog", false, "use the hclog logger backend instead of logrus")
	flag.Parse()

	opts := []driver.Option{driver.WithTermLength(int32(*termLength))}
	if *aeronDir != "" {
		opts = append(opts, driver.WithAeronDir(*aeronDir))
	}
	if *hclog {
		opts = append(opts, driver.WithLoggerBackend(driver.LoggerHCLog))
	}

	cfg := driver.NewConfig(opts...)
	conductor := driver.NewConductor(cfg, make([]byte, *ringCapacity), nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conductor.Run(ctx)
}
