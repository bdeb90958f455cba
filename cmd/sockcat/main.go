package main

import (
	"fmt"
	"os"

	"github.com/dpeckett/socket"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newApp().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newApp() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sockcat",
		Short: "Line-oriented client and server over plain stream sockets",
		Example: `  Echo lines back to one client:
  $ sockcat listen 127.0.0.1:8000 --echo

  Send stdin to a server and print each reply:
  $ sockcat connect 127.0.0.1:8000 --reply`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("log-level", "", "Set the logging level [trace, debug, info, warn, error]")
	rootCmd.PersistentFlags().String("log-format", "text", "Set the logging format [text, json]")
	rootCmd.PersistentFlags().Bool("debug", false, "Debug mode")
	rootCmd.PersistentFlags().String("eol", socket.DefaultEOL, "Line terminator")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return processGlobalFlags(rootCmd)
	}

	rootCmd.AddCommand(
		newListenCommand(),
		newConnectCommand(),
	)
	return rootCmd
}

func processGlobalFlags(rootCmd *cobra.Command) error {
	// --log-level will override --debug
	if debug, _ := rootCmd.Flags().GetBool("debug"); debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	l, _ := rootCmd.Flags().GetString("log-level")
	if l != "" {
		lvl, err := logrus.ParseLevel(l)
		if err != nil {
			return err
		}
		logrus.SetLevel(lvl)
	}

	logFormat, _ := rootCmd.Flags().GetString("log-format")
	switch logFormat {
	case "json":
		logrus.StandardLogger().SetFormatter(new(logrus.JSONFormatter))
	case "text":
		// logrus use text format by default.
	default:
		return fmt.Errorf("unsupported log-format: %q", logFormat)
	}

	logrus.SetOutput(os.Stderr)
	socket.SetLogger(logrus.StandardLogger().WithField("component", "socket"))
	return nil
}
