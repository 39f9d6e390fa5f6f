package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/fishbridge/gateway/internal/api"
	"github.com/fishbridge/gateway/internal/config"
	"github.com/fishbridge/gateway/internal/forward"
	"github.com/fishbridge/gateway/internal/metrics"
	"github.com/fishbridge/gateway/internal/task"
	"github.com/fishbridge/gateway/internal/upstream/fbxml"
	"github.com/fishbridge/gateway/internal/upstream/rest"
	"github.com/fishbridge/gateway/internal/upstream/socket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const keepaliveInterval = 5 * time.Minute

func main() {
	// Set up zerolog to use pretty printing
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out: os.Stderr,
	})
	log.Info().Msg("starting up...")

	// Load the application configuration
	log.Info().Msg("loading configuration...")
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load the configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("the configuration is invalid")
	}
	if cfg.IsEnvProduction() {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Debug().Str("config", fmt.Sprintf("%+v", cfg)).Msg("")

	// Create the protocol backend & forwarder
	var socketTransport *socket.Transport
	var backend forward.Backend
	switch cfg.UpstreamProtocol {
	case config.ProtocolXML:
		addr := net.JoinHostPort(cfg.UpstreamHost, strconv.Itoa(cfg.UpstreamPort))
		log.Info().Str("addr", addr).Msg("using the XML socket upstream...")
		socketTransport = socket.New(addr, fbxml.Terminator, cfg.UpstreamTimeout)
		backend = forward.NewXMLBackend(socketTransport, cfg.Credentials())
	case config.ProtocolREST:
		log.Info().Str("base_url", cfg.UpstreamBaseURL).Msg("using the REST upstream...")
		backend = forward.NewRESTBackend(rest.New(cfg.UpstreamBaseURL, cfg.Credentials(), cfg.UpstreamTimeout))
	}
	forwarder := forward.New(backend)

	// The socket and the session share a lifecycle: losing the connection
	// invalidates the ticket
	if socketTransport != nil {
		socketTransport.OnDisconnect = func() {
			metrics.SocketDisconnects.Inc()
			forwarder.Sessions().Invalidate()
		}
	}

	// Schedule the session keepalive task if requested
	if cfg.SessionKeepalive {
		keepalive := task.NewRepeating(func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.UpstreamTimeout)
			defer cancel()
			if _, err := forwarder.Sessions().Ensure(ctx); err != nil {
				log.Error().Err(err).Msg("could not refresh the upstream session")
			}
		}, keepaliveInterval)
		keepalive.Start()
		defer keepalive.Stop(false)
	}

	// Start up the gateway API
	log.Info().Str("listen_address", cfg.ListenAddress).Msg("starting up the gateway API...")
	gatewayAPI := &api.Service{
		Config:    cfg,
		Forwarder: forwarder,
		Sessions:  forwarder.Sessions(),
	}
	apiErrs := make(chan error, 1)
	go func() {
		if err := gatewayAPI.Startup(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			apiErrs <- err
		}
	}()
	go func() {
		err := <-apiErrs
		log.Fatal().Err(err).Msg("the gateway API raised an unexpected error")
	}()
	defer func() {
		log.Info().Msg("shutting down the gateway API...")
		gatewayAPI.Shutdown()
	}()

	// Log out of the upstream on shutdown; this is best-effort and must not block
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		forwarder.Shutdown(ctx)
	}()

	log.Info().Msg("done!")
	defer log.Info().Msg("shutting down...")

	// Wait for the application to be terminated
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt)
	<-shutdown
}
