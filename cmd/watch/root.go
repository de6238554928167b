package watch

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/openhydrogen/hydrogen/cmd/util"
	"github.com/openhydrogen/hydrogen/wire/queue"
	"github.com/openhydrogen/hydrogen/wire/transport/base"
)

var WatchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Connect to a hydrogen server and print received documents",
	Long:    `Connect to a hydrogen server as a consumer and print every received document to stdout. Useful for inspecting what a driver is publishing.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return cmdUtil.BindCommandFlags(cmd)
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	key := "endpoint"
	WatchCmd.PersistentFlags().String(key, "localhost:7624", cmdUtil.WrapString("The server address: host:port for tcp or a socket path for unix"))

	key = "transport"
	WatchCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("The transport to connect with (tcp, unix)"))

	key = "shm"
	WatchCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Request shared-buffer delivery (only meaningful on unix sockets)"))

	key = "timeout"
	WatchCmd.PersistentFlags().Int64(key, 10, cmdUtil.WrapString("Connect and handshake timeout in seconds"))
}

func run(_ *cobra.Command, _ []string) error {
	network := viper.GetString("transport")
	if network != "tcp" && network != "unix" {
		return fmt.Errorf("invalid transport %s (expected tcp or unix)", network)
	}

	timeout := time.Duration(viper.GetInt64("timeout")) * time.Second
	conn, err := net.DialTimeout(network, viper.GetString("endpoint"), timeout)
	if err != nil {
		return fmt.Errorf("failed to connect: %v", err)
	}
	defer conn.Close()

	shared, err := base.ClientHandshake(conn, viper.GetBool("shm"), timeout)
	if err != nil {
		return fmt.Errorf("handshake failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "connected to %s (shared buffers: %t)\n", conn.RemoteAddr(), shared)

	// print chunk bytes as they arrive, one blank line between documents
	var buf []byte
	for {
		typ, payload, err := queue.ReadFrame(conn, buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("connection lost: %v", err)
		}

		switch typ {
		case queue.FrameChunk:
			if _, err := os.Stdout.Write(payload); err != nil {
				return err
			}
		case queue.FrameAttach:
			h, err := queue.DecodeAttach(payload)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "attach %s\n", h)
		case queue.FrameEnd:
			fmt.Println()
		default:
			return fmt.Errorf("unexpected frame type 0x%02x", typ)
		}
	}
}
