package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/cuemby/fleet/pkg/bus"
	"github.com/cuemby/fleet/pkg/config"
	"github.com/cuemby/fleet/pkg/coordinator"
	"github.com/cuemby/fleet/pkg/dispatcher"
	"github.com/cuemby/fleet/pkg/factstore"
	"github.com/cuemby/fleet/pkg/leader"
	"github.com/cuemby/fleet/pkg/log"
	"github.com/cuemby/fleet/pkg/metrics"
	"github.com/cuemby/fleet/pkg/reactor"
	"github.com/cuemby/fleet/pkg/storage"
	"github.com/cuemby/fleet/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator: FactStore, Reactor, and the agent RPC surface",
	Long: `serve boots the durable store, the FactStore's rules-engine actor,
the Reactor, and a gRPC listener agents dial to heartbeat and push
workload status updates. In --ha mode, serve waits until this replica
holds Raft leadership before starting the FactStore and the Reactor;
they keep running if the replica later loses leadership.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to a YAML config file (see §6.5 keys); defaults plus env overrides apply if empty")
	serveCmd.Flags().String("data-path", "./fleetd-data/fleet.db", "Path to the sqlite database file")
	serveCmd.Flags().String("grpc-addr", ":7946", "Address the agent RPC server listens on")
	serveCmd.Flags().String("http-addr", ":8080", "Address serving /metrics, /healthz, /readyz, /livez")

	serveCmd.Flags().Bool("ha", false, "Elect a leader via Raft; FactStore and Reactor start once this replica is leader")
	serveCmd.Flags().String("node-id", "", "This replica's stable Raft node id (required with --ha)")
	serveCmd.Flags().String("raft-bind-addr", "127.0.0.1:7950", "Raft transport bind address")
	serveCmd.Flags().String("raft-data-dir", "./fleetd-data/raft", "Raft log/stable/snapshot directory")
	serveCmd.Flags().String("raft-peers", "", "Comma-separated id=addr pairs for the initial cluster (bootstrap only)")
	serveCmd.Flags().Bool("raft-bootstrap", false, "Form the initial Raft cluster from --raft-peers (exactly one replica, ever)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	dataPath, _ := cmd.Flags().GetString("data-path")
	grpcAddr, _ := cmd.Flags().GetString("grpc-addr")
	httpAddr, _ := cmd.Flags().GetString("http-addr")
	haEnabled, _ := cmd.Flags().GetBool("ha")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	db, err := storage.New(storage.Config{Path: dataPath})
	if err != nil {
		return fmt.Errorf("construct store: %w", err)
	}
	if err := db.Init(ctx); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	metrics.RegisterComponent("storage", true, "")

	var elector *leader.Elector
	if haEnabled {
		elector, err = newElector(cmd)
		if err != nil {
			return fmt.Errorf("start leader election: %w", err)
		}
		defer elector.Shutdown()
		waitForLeadership(elector)
	}

	b := bus.New()
	facts := factstore.New(db, b, cfg)
	facts.Start(ctx)
	defer facts.Stop()
	metrics.RegisterComponent("factstore", true, "")

	local := dispatcher.NewLocalExecutor()
	disp := dispatcher.New(local, nil)

	coord := coordinator.New(db, facts, disp, b, cfg)

	react := reactor.New(coord, b, cfg)
	react.Start()
	defer react.Stop()
	metrics.RegisterComponent("reactor", true, "")

	// A nil *leader.Elector boxed directly into the RaftStats interface
	// would be a non-nil interface wrapping a nil pointer, so the
	// collector's own nil check wouldn't catch it; only assign the
	// interface variable when HA is actually enabled.
	var raftStats metrics.RaftStats
	if elector != nil {
		raftStats = elector
	}
	collector := metrics.NewCollector(db, raftStats)
	collector.Start()
	defer collector.Stop()

	grpcSrv := grpc.NewServer()
	transport.RegisterCoordinatorServer(grpcSrv, coordinator.NewRPCServer(coord))

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", grpcAddr, err)
	}
	go func() {
		log.Logger.Info().Str("addr", grpcAddr).Msg("agent RPC server listening")
		if err := grpcSrv.Serve(lis); err != nil {
			log.Logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	defer grpcSrv.GracefulStop()

	httpSrv := &http.Server{Addr: httpAddr, Handler: httpMux()}
	go func() {
		log.Logger.Info().Str("addr", httpAddr).Msg("metrics/health server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Logger.Info().Str("strategy", string(cfg.Strategy())).Msg("fleetd serving")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Logger.Info().Msg("shutting down")
	return nil
}

func httpMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())
	return mux
}

func newElector(cmd *cobra.Command) (*leader.Elector, error) {
	nodeID, _ := cmd.Flags().GetString("node-id")
	bindAddr, _ := cmd.Flags().GetString("raft-bind-addr")
	dataDir, _ := cmd.Flags().GetString("raft-data-dir")
	peersFlag, _ := cmd.Flags().GetString("raft-peers")
	bootstrap, _ := cmd.Flags().GetBool("raft-bootstrap")

	if nodeID == "" {
		return nil, fmt.Errorf("--node-id is required with --ha")
	}

	peers, err := parsePeers(peersFlag)
	if err != nil {
		return nil, err
	}

	return leader.New(leader.Config{
		NodeID:    nodeID,
		BindAddr:  bindAddr,
		DataDir:   dataDir,
		Peers:     peers,
		Bootstrap: bootstrap,
	})
}

func parsePeers(spec string) (map[string]string, error) {
	if spec == "" {
		return nil, nil
	}
	peers := make(map[string]string)
	for _, pair := range strings.Split(spec, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || kv[0] == "" || kv[1] == "" {
			return nil, fmt.Errorf("invalid --raft-peers entry %q, want id=addr", pair)
		}
		peers[kv[0]] = kv[1]
	}
	return peers, nil
}

// waitForLeadership blocks until this replica becomes the Raft leader
// before the FactStore's timers start, so a replica only begins
// driving the tick/reconciliation cycle after winning an election. A
// replica that later loses leadership keeps its FactStore timers and
// Reactor running; nothing stops or restarts them on a leadership
// change.
func waitForLeadership(e *leader.Elector) {
	if e.IsLeader() {
		return
	}
	log.Logger.Info().Msg("waiting to acquire raft leadership")
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if e.IsLeader() {
			log.Logger.Info().Msg("acquired raft leadership")
			return
		}
	}
}
