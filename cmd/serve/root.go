package serve

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dPS/cmd/util"
	"github.com/ValentinKolb/dPS/lib/partition"
	"github.com/ValentinKolb/dPS/rpc/common"
	"github.com/ValentinKolb/dPS/rpc/serializer"
	"github.com/ValentinKolb/dPS/rpc/server"
	"github.com/ValentinKolb/dPS/rpc/transport"
	rpcHttp "github.com/ValentinKolb/dPS/rpc/transport/http"
	"github.com/ValentinKolb/dPS/rpc/transport/tcp"
	"github.com/ValentinKolb/dPS/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	serveLayout    *partition.Layout
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the parameter servers of this node",
		Long:    `Start the parameter servers of this node with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DPS_<flag> (e.g. DPS_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "servers"
	ServeCmd.PersistentFlags().String(key, "0", cmdUtil.WrapString("Comma-separated list of parameter server indices hosted by this node (e.g. 0,1)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Read and write timeout of connections in seconds, 0 disables it. Requests that honor timeouts are cancelled after the same duration"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/dps.sock, ...)"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Maximum number of concurrently handled requests per connection, 0 uses the transport default (ignored for http)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size of the frame read buffer per connection in KB, 0 uses the transport default (ignored for http)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address to serve prometheus metrics on (e.g. localhost:9090), empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	cmdUtil.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// parse servers
	servers, err := cmdUtil.ParseInt32List(viper.GetString("servers"))
	if err != nil {
		return fmt.Errorf("invalid servers: %w", err)
	}
	if len(servers) == 0 {
		return fmt.Errorf("at least one parameter server is required")
	}
	serveCmdConfig.Servers = servers

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.LayoutFile = viper.GetString("layout")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Transport = common.ServerTransportConf{
		SocketConf:     cmdUtil.GetSocketConf(),
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers"),
		BufferSize:     viper.GetInt("buffer-size") * 1024,
	}

	// load the layout
	serveLayout, err = cmdUtil.GetLayout()
	return err
}

// run starts the parameter servers and blocks until the transport stops
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = rpcHttp.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport()
	case "unix":
		t = unix.NewUnixDefaultServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		serveLayout,
		t,
		serializer.NewBinarySerializer(),
	)

	if serveCmdConfig.MetricsEndpoint != "" {
		go serveMetrics(serveCmdConfig.MetricsEndpoint)
	}

	// stop the transport on SIGINT/SIGTERM, Serve then returns
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		server.Logger.Infof("received %s, shutting down", s)
		if err := serv.Close(); err != nil {
			server.Logger.Errorf("failed to close server: %v", err)
		}
	}()

	return serv.Serve()
}

// serveMetrics exposes the rpc metrics in prometheus text format
func serveMetrics(endpoint string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteMetrics(w)
	})
	server.Logger.Infof("serving metrics on http://%s/metrics", endpoint)
	if err := http.ListenAndServe(endpoint, mux); err != nil {
		server.Logger.Errorf("metrics endpoint stopped: %v", err)
	}
}
