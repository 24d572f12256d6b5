package servers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"
)

var (
	_ Server = (*httpServer)(nil)
)

type Server interface {
	lifecycle.Server
}

type httpServer struct {
	name     string
	internal *http.Server
	listener net.Listener
}

// NewHTTPServer serves handler on addr.
func NewHTTPServer(name, addr string, handler http.Handler) Server {
	return &httpServer{
		name: name,
		internal: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewHTTPServerWithListener serves handler on an already bound listener.
func NewHTTPServerWithListener(name string, lis net.Listener, handler http.Handler) Server {
	return &httpServer{
		name:     name,
		listener: lis,
		internal: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (server *httpServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", server.name).Str("addr", server.addr()).Msg("starting up")

	var err error
	if server.listener != nil {
		err = server.internal.Serve(server.listener)
	} else {
		err = server.internal.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Ctx(ctx).Error().Str("stage", "startup").Str("component", server.name).Err(err).Msg("failed to listen or serve")
		return ErrServerFailedToStart(server.name, err)
	}

	return nil
}

func (server *httpServer) Stop(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopping")
	defer log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopped")

	err := server.internal.Shutdown(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Str("stage", "shut down").Str("component", server.name).Err(err).Msg("failed to stop")
		return ErrServerFailedToStop(server.name, err)
	}

	return nil
}

func (server *httpServer) addr() string {
	if server.listener != nil {
		return server.listener.Addr().String()
	}
	return server.internal.Addr
}
