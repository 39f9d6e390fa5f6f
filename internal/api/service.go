// Package api implements the gateway's inbound HTTP surface
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fishbridge/gateway/internal/api/schema"
	"github.com/fishbridge/gateway/internal/config"
	"github.com/fishbridge/gateway/internal/ratelimit"
	"github.com/fishbridge/gateway/internal/upstream/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Invoker forwards a named operation to the upstream
type Invoker interface {
	Invoke(ctx context.Context, command string, params map[string]interface{}) (interface{}, error)
}

// Service represents the gateway API service
type Service struct {
	server *http.Server

	Config    *config.Config
	Forwarder Invoker
	Sessions  *session.Manager

	writer  *schema.Writer
	limiter *ratelimit.Limiter
}

// Startup starts up the gateway API
func (service *Service) Startup() error {
	if service.Config.RateLimitEnabled {
		service.limiter = ratelimit.New(service.Config.RateLimitRPM, time.Minute)
		service.limiter.Start()
	}

	// Start up the server
	server := &http.Server{
		Addr:    service.Config.ListenAddress,
		Handler: service.router(),
	}
	service.server = server
	return server.ListenAndServe()
}

// Shutdown shuts down the gateway API
func (service *Service) Shutdown() {
	if service.limiter != nil {
		service.limiter.Stop()
		service.limiter = nil
	}
	if service.server != nil {
		service.server.Close()
		service.server = nil
	}
}

func (service *Service) router() chi.Router {
	// Create the HTTP schema writer
	service.writer = &schema.Writer{
		InternalErrorHook: func(err error) {
			log.Error().Err(err).Msg("the gateway API experienced an unexpected error")
		},
	}

	// Create the HTTP router
	router := chi.NewRouter()
	router.Use(middleware.RedirectSlashes)
	router.Use(service.middlewareRequestID)
	router.Use(service.middlewareRateLimit)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{service.Config.AllowedOrigin},
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))
	router.NotFound(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusNotFound, schema.ErrNotFound)
	})
	router.MethodNotAllowed(func(writer http.ResponseWriter, _ *http.Request) {
		service.writer.WriteErrors(writer, http.StatusMethodNotAllowed, schema.ErrMethodNotAllowed)
	})

	// Register the API endpoint handlers
	service.registerEndpoints(router)
	return router
}

func (service *Service) registerEndpoints(router chi.Router) {
	router.Get("/health", service.EndpointGetHealth)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The generic command endpoint
	router.Post("/v1/command", service.EndpointCommand)

	// Convenience resource routes, each a 1:1 forward to an upstream operation
	router.Get("/v1/parts", service.handleList("listParts"))
	router.Post("/v1/parts", service.EndpointCreatePart)
	router.Get("/v1/parts/{number}/inventory", service.EndpointGetInventory)
	router.Post("/v1/parts/{number}/inventory/add", service.EndpointAddInventory)
	router.Get("/v1/products", service.handleList("listProducts"))
	router.Get("/v1/purchase-orders", service.handleList("listPurchaseOrders"))
	router.Get("/v1/manufacture-orders", service.handleList("listManufactureOrders"))
	router.Get("/v1/memos", service.handleList("listMemos"))
	router.Post("/v1/memos", service.EndpointCreateMemo)
	router.Get("/v1/memos/{id}", service.EndpointGetMemo)
	router.Delete("/v1/memos/{id}", service.EndpointDeleteMemo)
	router.Get("/v1/vendors", service.handleList("listVendors"))
	router.Get("/v1/users", service.handleList("listUsers"))
	router.Get("/v1/uoms", service.handleList("listUOMs"))
}

// invokeAndWrite forwards the operation and writes either the result or the
// mapped error response
func (service *Service) invokeAndWrite(writer http.ResponseWriter, request *http.Request, command string, params map[string]interface{}) {
	result, err := service.Forwarder.Invoke(request.Context(), command, params)
	if err != nil {
		service.writeInvokeError(writer, err)
		return
	}
	service.writer.WriteJSON(writer, result)
}
