package serve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/openhydrogen/hydrogen/cmd/util"
	"github.com/openhydrogen/hydrogen/wire/common"
	"github.com/openhydrogen/hydrogen/wire/server"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the hydrogen server",
		Long:    `Start the hydrogen server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is HYDROGEN_<flag> (e.g. HYDROGEN_QUEUE_DEPTH=32)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "tcp-endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:7624", cmdUtil.WrapString("The tcp address consumers connect to. Set to an empty string to disable the tcp listener"))

	key = "unix-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Path of the unix socket consumers connect to for shared-buffer delivery. Empty disables the unix listener"))

	key = "feed"
	ServeCmd.PersistentFlags().String(key, "-", cmdUtil.WrapString("The driver feed to read documents from: '-' for stdin or a path to a fifo/file"))

	key = "allocator"
	ServeCmd.PersistentFlags().String(key, "memfd", cmdUtil.WrapString("Shared-buffer backend: memfd (zero-copy, linux only) or heap"))

	key = "queue-depth"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Number of messages buffered per consumer before the feed is throttled"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 10, cmdUtil.WrapString("Per-write socket deadline in seconds (0 disables deadlines)"))

	key = "write-buffer"
	ServeCmd.PersistentFlags().Int(key, 512, cmdUtil.WrapString("The size of the socket write buffer (in KB, 0 for the OS default)"))

	key = "read-buffer"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The size of the socket read buffer (in KB, 0 for the OS default)"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY on consumer connections"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for consumer connections (in seconds, 0 disables)"))

	key = "tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time for consumer connections (in seconds)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address to serve Prometheus metrics on (e.g. localhost:9090). Empty disables metrics"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Transport = common.TransportConf{
		TCPEndpoint:  viper.GetString("tcp-endpoint"),
		UnixEndpoint: viper.GetString("unix-endpoint"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("tcp-linger"),
		},
	}
	serveCmdConfig.DriverFeed = viper.GetString("feed")
	serveCmdConfig.Allocator = viper.GetString("allocator")
	serveCmdConfig.QueueDepth = viper.GetInt("queue-depth")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(*serveCmdConfig)

	// open the driver feed
	var feed io.Reader
	if serveCmdConfig.DriverFeed == "-" {
		feed = os.Stdin
	} else {
		f, err := os.Open(serveCmdConfig.DriverFeed)
		if err != nil {
			return fmt.Errorf("failed to open driver feed: %v", err)
		}
		defer f.Close()
		feed = f
	}

	alloc, err := cmdUtil.GetAllocator()
	if err != nil {
		return err
	}

	transports, err := cmdUtil.GetTransports(*serveCmdConfig)
	if err != nil {
		return err
	}

	// serve Prometheus metrics if configured
	if serveCmdConfig.MetricsEndpoint != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			metrics.WritePrometheus(w, true)
		})
		metricsSrv := &http.Server{Addr: serveCmdConfig.MetricsEndpoint, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				server.Logger.Errorf("metrics endpoint failed: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(server.Options{
		Config:     *serveCmdConfig,
		Alloc:      alloc,
		Transports: transports,
		Feed:       feed,
	})

	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
