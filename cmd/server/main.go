// Command server runs the simulation and serves observers over
// websocket.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"colonycraft.ai/internal/persistence/indexdb"
	"colonycraft.ai/internal/persistence/ticklog"
	"colonycraft.ai/internal/protocol"
	"colonycraft.ai/internal/sim/catalogs"
	"colonycraft.ai/internal/sim/tuning"
	"colonycraft.ai/internal/sim/world"
	"colonycraft.ai/internal/transport/ws"
)

type multiTickLog []world.TickLogger

func (m multiTickLog) LogTick(msg protocol.StateMsg) error {
	var first error
	for _, l := range m {
		if err := l.LogTick(msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func main() {
	var (
		addr      = flag.String("addr", ":8787", "listen address")
		configDir = flag.String("config", "configs", "catalog and tuning directory")
		dataDir   = flag.String("data", "data", "tick log and index directory")
	)
	flag.Parse()
	logger := log.New(os.Stderr, "server: ", log.LstdFlags)

	tun, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		logger.Fatal(err)
	}
	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatal(err)
	}
	layout, err := catalogs.LoadLayout(filepath.Join(*configDir, "layout.json"), cats)
	if err != nil {
		logger.Fatal(err)
	}

	tlog, err := ticklog.NewWriter(filepath.Join(*dataDir, "ticks"))
	if err != nil {
		logger.Fatal(err)
	}
	defer tlog.Close()
	index, err := indexdb.Open(filepath.Join(*dataDir, "index.db"))
	if err != nil {
		logger.Fatal(err)
	}
	defer index.Close()

	w, err := world.New(world.Config{
		Catalogs: cats,
		Layout:   layout,
		Tuning:   tun,
		Logger:   log.New(os.Stderr, "world: ", log.LstdFlags),
		TickLog:  multiTickLog{tlog, index},
	})
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/observe", ws.NewServer(w, log.New(os.Stderr, "ws: ", log.LstdFlags)))
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}
