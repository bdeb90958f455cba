package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dpeckett/socket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func newConnectCommand() *cobra.Command {
	connectCommand := &cobra.Command{
		Use:   "connect ADDRESS:PORT",
		Short: "Send lines from stdin to a server",
		Args:  cobra.ExactArgs(1),
		RunE:  connectAction,
	}
	connectCommand.Flags().Bool("reply", false, "Wait for and print a reply line after every line sent")
	connectCommand.Flags().Duration("resolve-timeout", 30*time.Second, "Timeout for resolving the server address")
	return connectCommand
}

func connectAction(cmd *cobra.Command, args []string) (err error) {
	reply, _ := cmd.Flags().GetBool("reply")
	eol, _ := cmd.Flags().GetString("eol")
	timeout, _ := cmd.Flags().GetDuration("resolve-timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s, err := socket.Host(nil).Dial(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() {
		if !s.IsClosed() {
			err = multierr.Append(err, s.Close())
		}
	}()

	peer, _ := s.Peer()
	logrus.Infof("Connected to %s", peer)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if err := socket.SendLine(s, scanner.Text(), eol); err != nil {
			return err
		}
		if reply {
			line, err := socket.ReadLine(s, eol)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// Let the server see the end of input, then print whatever it still sends.
	if err := s.CloseUpstream(); err != nil {
		return err
	}
	if _, err := io.Copy(cmd.OutOrStdout(), s); err != nil {
		return err
	}
	return s.CloseDownstream()
}
