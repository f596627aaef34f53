package cli

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/scanserver/scanner-client/pkg/push"
	"github.com/scanserver/scanner-client/pkg/scanclient"
	"github.com/scanserver/scanner-client/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"io"
	"sync"
)

type WatchArgs struct {
	Kinds []string
}

func setupWatchCommand(flags *RootFlags) *cobra.Command {
	args := &WatchArgs{}
	command := &cobra.Command{
		Use:   "watch",
		Short: "print push events until interrupted",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, as []string) {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			utils.DoOrDie(RunWatch(ctx, flags.NewClient(), cmd.OutOrStdout(), args))
		},
	}

	var kinds []string
	for _, kind := range push.KnownEventKinds {
		kinds = append(kinds, string(kind))
	}
	command.Flags().StringSliceVar(&args.Kinds, "kinds", kinds, "event kinds to print")

	return command
}

// RunWatch subscribes to the requested kinds and prints one line per event
// until ctx is done.
func RunWatch(ctx context.Context, client *scanclient.Client, out io.Writer, args *WatchArgs) error {
	var mu sync.Mutex
	for _, k := range args.Kinds {
		kind := push.EventKind(k)
		if !kind.IsKnown() {
			logrus.Warnf("watching unrecognized event kind '%s'", kind)
		}
		client.On(kind, func(event *push.Event) error {
			mu.Lock()
			defer mu.Unlock()
			_, err := fmt.Fprintln(out, FormatEvent(event))
			return errors.WithStack(err)
		})
	}

	logrus.Infof("watching %+v", client.Push.Registry.Kinds())

	if err := client.Connect(ctx); err != nil {
		if !client.Push.AutoReconnect() {
			return err
		}
		logrus.Warnf("initial connect failed, retrying in the background: %s", err.Error())
	}
	<-ctx.Done()
	logrus.Infof("stopping watch")
	if err := client.Disconnect(); err != nil {
		logrus.Debugf("unclean disconnect: %+v", err)
	}
	return nil
}

// FormatEvent renders one event per line.  Events raised by the client
// itself, rather than sent by the server, are marked as such.
func FormatEvent(event *push.Event) string {
	line := string(event.Kind)
	switch {
	case event.Err != nil:
		line = fmt.Sprintf("%s: %s", event.Kind, event.Err.Error())
	case len(event.Payload) > 0:
		line = fmt.Sprintf("%s: %s", event.Kind, string(event.Payload))
	}
	if event.Kind.IsLocal() {
		return "client " + line
	}
	return line
}
