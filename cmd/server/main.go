package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/BioHazard786/webmeet/internal/config"
	"github.com/BioHazard786/webmeet/internal/logging"
	"github.com/BioHazard786/webmeet/internal/server"
	"github.com/BioHazard786/webmeet/internal/signaling"
	"github.com/BioHazard786/webmeet/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var opts config.ServerOptions
	flag.StringVarP(&opts.ListenAddr, "listen", "l", "", "Address to listen on (default :8080)")
	flag.StringVar(&opts.AllowedOrigins, "allowed-origins", "", "Comma separated browser origins allowed to connect (default all)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	showVersion := flag.BoolP("version", "v", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}

	if err := run(opts); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(opts config.ServerOptions) error {
	cfg, err := config.LoadServer(opts)
	if err != nil {
		return err
	}
	log := logging.Init(cfg.LogLevel, slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Create the Hub over a fresh room table
	hub := signaling.NewHub(signaling.NewRoomTable(), signaling.NewRegistry(), log, signaling.Options{
		MaxMessageSize:    cfg.MaxMessageBytes,
		SendQueue:         cfg.SendQueue,
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
	})

	// 2. Run the Hub's event loop until shutdown
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	// 3. Serve HTTP
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(hub, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting signaling server", "addr", cfg.ListenAddr, "version", version.Version)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hub shutdown closes every websocket, so hijacked connections do not
	// hold up Shutdown.
	<-hubDone
	return srv.Shutdown(shutdownCtx)
}
