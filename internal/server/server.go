// Package server implements the QUIC session layer: the accept loop, the
// per-connection push channel, the per-stream request tasks, the online
// registry, and the notifier.
//
// Stream discipline
// -----------------
//
// Each connection gets exactly one server-opened unidirectional stream, the
// push channel, retained for the connection's lifetime. Every request
// arrives on a fresh client-opened bidirectional stream carrying one framed
// request; the response is framed back on the same stream and the stream is
// closed. When the connection ends — client close or the 5-minute idle
// timeout — its registry entries are removed.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"quic-chat-system/internal/config"
	"quic-chat-system/internal/errors"
	"quic-chat-system/internal/protocol"
	"quic-chat-system/internal/workers"
)

// Server ties together the listener, dispatcher, registry, and notifier.
type Server struct {
	cfg        *config.Config
	dispatcher *Dispatcher
	registry   *Registry
	notifier   *Notifier
	pools      *workers.PoolManager
}

// New creates a Server around an already-wired dispatcher.
func New(cfg *config.Config, dispatcher *Dispatcher, registry *Registry, pools *workers.PoolManager) *Server {
	return &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		registry:   registry,
		notifier:   NewNotifier(registry, pools),
		pools:      pools,
	}
}

// ListenAndServe accepts QUIC connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	tlsConf, err := generateTLSConfig()
	if err != nil {
		return err
	}

	quicConf := &quic.Config{
		MaxIdleTimeout:     time.Duration(s.cfg.Server.IdleTimeout) * time.Second,
		MaxIncomingStreams: int64(s.cfg.Server.MaxBidiStreams),
	}

	ln, err := quic.ListenAddr(s.cfg.Server.Addr, tlsConf, quicConf)
	if err != nil {
		return err
	}
	defer ln.Close()

	slog.Info("Server listening", "addr", s.cfg.Server.Addr)

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleConnection(ctx, conn)
	}
}

// handleConnection owns one client connection: it opens the push channel,
// then accepts request streams until the connection dies.
func (s *Server) handleConnection(ctx context.Context, conn *quic.Conn) {
	connID := uuid.NewString()
	slog.Info("New connection", "conn_id", connID, "remote", conn.RemoteAddr())

	// Registry entries referencing this connection die with it.
	defer func() {
		s.registry.UnregisterConn(connID)
		slog.Info("Connection closed", "conn_id", connID)
	}()

	push, err := conn.OpenUniStreamSync(ctx)
	if err != nil {
		slog.Warn("Failed to open push stream", "conn_id", connID, "error", err)
		conn.CloseWithError(0, "push stream unavailable")
		return
	}

	sess := &session{connID: connID, push: push}

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			// Idle timeout, client close, or server shutdown.
			return
		}
		go s.handleStream(ctx, stream, sess)
	}
}

// handleStream services exactly one framed request. Requests on the same
// stream are inherently ordered; ordering across streams is not promised.
func (s *Server) handleStream(ctx context.Context, stream *quic.Stream, sess *session) {
	reqID := uuid.NewString()
	defer stream.Close()

	var req protocol.Request
	if err := protocol.ReadFrame(stream, &req); err != nil {
		if errors.Is(err, errors.KindDisconnected) {
			// Peer closed mid-frame; nothing to answer.
			return
		}
		// Oversized or malformed frame: answer and stop reading this
		// stream. The connection stays usable.
		slog.Debug("Rejected request frame", "req_id", reqID, "error", err)
		resp := protocol.ErrResponse(err.Error())
		if werr := protocol.WriteFrame(stream, resp); werr != nil {
			slog.Debug("Failed to write rejection", "req_id", reqID, "error", werr)
		}
		return
	}

	slog.Debug("Dispatching command", "req_id", reqID, "command", req.Command.Type)

	resp, notify := s.dispatcher.Dispatch(ctx, &req, sess)

	if err := protocol.WriteFrame(stream, resp); err != nil {
		slog.Debug("Failed to write response", "req_id", reqID, "error", err)
		return
	}

	// Push markers go out only after the requester has its response.
	if len(notify) > 0 {
		s.notifier.Notify(notify)
	}
}
