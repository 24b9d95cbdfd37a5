package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/banshee-data/risk.report/internal/analysis"
	"github.com/banshee-data/risk.report/internal/api"
	"github.com/banshee-data/risk.report/internal/config"
	"github.com/banshee-data/risk.report/internal/db"
	"github.com/banshee-data/risk.report/internal/publish"
	"github.com/banshee-data/risk.report/internal/rpc"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	var common commonFlags
	common.register(fs)
	var (
		httpListen = fs.String("listen", "", "HTTP listen address (default from config)")
		grpcListen = fs.String("grpc-listen", "", "gRPC listen address (default from config)")
		geocoding  = fs.Bool("geocode", true, "Resolve coordinates to place names and enable /api/places")
		eventsPath = fs.String("events", "", "Append each stored analysis as a JSON line to this file")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	if *httpListen == "" {
		*httpListen = cfg.GetHTTPListen()
	}
	if *grpcListen == "" {
		*grpcListen = cfg.GetGRPCListen()
	}

	runner, err := newRunner(cfg)
	if err != nil {
		return err
	}
	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return err
	}
	defer database.Close()

	opts := []analysis.ManagerOption{}
	var apiOpts []api.Option
	apiOpts = append(apiOpts, api.WithDB(database))
	if *geocoding {
		geocoder, err := newGeocoder(cfg)
		if err != nil {
			return err
		}
		opts = append(opts, analysis.WithLocator(geocoder))
		apiOpts = append(apiOpts, api.WithPlaceSearch(geocoder))
	}

	if cfg.GetKafkaEnabled() {
		kp, err := publish.NewKafkaPublisher(config.NewKafkaConfig())
		if err != nil {
			return err
		}
		defer kp.Close(10 * time.Second)
		opts = append(opts, analysis.WithPublisher(kp))
	}
	if *eventsPath != "" {
		f, err := os.OpenFile(*eventsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open events file: %w", err)
		}
		defer f.Close()
		opts = append(opts, analysis.WithPublisher(publish.NewJSONLines(f)))
	}

	mgr := analysis.NewManager(runner, db.NewHistoryStore(database), opts...)
	httpServer := api.NewServer(mgr, cfg, apiOpts...)
	rpcServer := rpc.NewServer(mgr, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpServer.ListenAndServe(gctx, *httpListen)
	})
	g.Go(func() error {
		return serveGRPC(gctx, *grpcListen, rpcServer)
	})
	err = g.Wait()
	log.Printf("Graceful shutdown complete")
	return err
}

// serveGRPC serves the report service on addr until ctx is done.
func serveGRPC(ctx context.Context, addr string, svc rpc.ReportServer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	server := grpc.NewServer()
	rpc.RegisterService(server, svc)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[rpc] gRPC server listening on %s", lis.Addr())
		errCh <- server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		server.GracefulStop()
		log.Printf("[rpc] gRPC server stopped")
		return nil
	}
}
