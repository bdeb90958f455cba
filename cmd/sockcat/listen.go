package main

import (
	"errors"
	"fmt"

	"github.com/dpeckett/socket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newListenCommand() *cobra.Command {
	listenCommand := &cobra.Command{
		Use:   "listen [ADDRESS:PORT]",
		Short: "Accept clients and print the lines they send",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listenAction,
	}
	listenCommand.Flags().Int("backlog", socket.DefaultBacklog, "Listen backlog")
	listenCommand.Flags().Int("count", 1, "Number of clients to serve before exiting")
	listenCommand.Flags().Bool("echo", false, "Send every line back to the client")
	return listenCommand
}

func listenAction(cmd *cobra.Command, args []string) (err error) {
	address := "127.0.0.1:8000"
	if len(args) > 0 {
		address = args[0]
	}
	backlog, _ := cmd.Flags().GetInt("backlog")
	count, _ := cmd.Flags().GetInt("count")
	echo, _ := cmd.Flags().GetBool("echo")
	eol, _ := cmd.Flags().GetString("eol")

	lis, err := socket.Host(nil).Listen(address, backlog)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, lis.Close())
	}()

	local, err := lis.LocalEndpoint()
	if err != nil {
		return err
	}
	logrus.Infof("Listening on %s", local)

	for i := 0; i < count; i++ {
		s, err := lis.Accept()
		if err != nil {
			return err
		}
		if err := serve(cmd, s, echo, eol); err != nil {
			return err
		}
	}
	return nil
}

func serve(cmd *cobra.Command, s *socket.Stream, echo bool, eol string) (err error) {
	peer, _ := s.Peer()
	logrus.WithField("peer", peer.String()).Info("Accepted connection")
	defer func() {
		err = multierr.Append(err, s.Close())
	}()

	for {
		line, err := socket.ReadLine(s, eol)
		if errors.Is(err, socket.ErrEndOfStream) {
			if line != "" {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			logrus.WithField("peer", peer.String()).Info("Client closed the connection")
			return nil
		} else if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), line)
		if echo {
			if err := socket.SendLine(s, line, eol); err != nil {
				return err
			}
		}
	}
}
