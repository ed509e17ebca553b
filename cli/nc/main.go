package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	E "github.com/sagernet/sing-nc/common/exceptions"
	"github.com/sagernet/sing-nc/common/log"
	"github.com/sagernet/sing-nc/relay"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type flags struct {
	Timeout     time.Duration
	HalfClose   bool
	BufferLimit int
	Verbose     bool
}

func main() {
	command := newCommand()
	if err := command.ExecuteContext(context.Background()); err != nil {
		logrus.Fatal(err)
	}
}

func newCommand() *cobra.Command {
	f := new(flags)
	command := &cobra.Command{
		Use:           "nc HOST:PORT",
		Short:         "relay standard input and output over a TCP connection",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run(cmd.Context(), f, args[0])
		},
	}
	command.Flags().DurationVarP(&f.Timeout, "timeout", "w", relay.DefaultConnectTimeout, "Set the connect timeout.")
	command.Flags().BoolVarP(&f.HalfClose, "half-close", "N", true, "Shut down the sending side of the connection after end of input.")
	command.Flags().IntVar(&f.BufferLimit, "buffer-limit", relay.DefaultBufferLimit, "Set the bytes queued per direction before reading pauses, 0 for no limit.")
	command.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "Enable verbose mode.")
	return command
}

func run(ctx context.Context, f *flags, address string) error {
	log.SetVerbose(f.Verbose)
	destination, err := relay.ParseAddress(address)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err = relay.Run(ctx, relay.Options{
		Destination:    destination,
		ConnectTimeout: f.Timeout,
		HalfClose:      f.HalfClose,
		BufferLimit:    f.BufferLimit,
		Logger:         log.NewLogger("nc"),
	})
	if errors.Is(err, context.Canceled) {
		return E.New("interrupted")
	}
	return err
}
