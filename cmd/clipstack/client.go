package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstack/internal/ipc"
	"go.klb.dev/clipstack/internal/rpc"
)

// clientRun is the body of a command that talks to the daemon.
type clientRun func(ctx context.Context, cmd *cobra.Command, c *rpc.Client, v *viper.Viper, args []string) error

// clientCmd wires the connection flags and viper binding into cmd and runs
// fn with a connected client.
func clientCmd(cmd *cobra.Command, fn clientRun) *cobra.Command {
	v := viper.New()
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) }
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c, _, err := connect(v)
		if err != nil {
			return err
		}
		defer c.Close()
		return fn(cmd.Context(), cmd, c, v, args)
	}

	f := cmd.Flags()
	f.String("server", "", "remote daemon address host:port (default: local socket)")
	f.String("token", "", "shared secret of the remote daemon")
	f.String("source", defaultSource(), "source recorded for clips copied by this command")
	addConfigFlag(cmd)
	return cmd
}

// connect dials the remote daemon when --server is set, otherwise the local
// socket. The second result describes the transport for status output.
func connect(v *viper.Viper) (*rpc.Client, string, error) {
	source := v.GetString("source")
	if addr := v.GetString("server"); addr != "" {
		c, err := rpc.DialTCP(addr, v.GetString("token"), source)
		if err != nil {
			return nil, "", err
		}
		return c, fmt.Sprintf("tcp (%s)", addr), nil
	}

	path := ipc.SocketPath()
	if !ipc.IsRunning(path) {
		return nil, "", fmt.Errorf("no clipstack daemon at %s (start one with \"clipstack daemon\")", path)
	}
	c, err := rpc.DialIPC(path, source)
	if err != nil {
		return nil, "", err
	}
	return c, fmt.Sprintf("ipc (%s)", path), nil
}
