// Package server hosts the TCP accept loop and per-connection session
// goroutines that tie the wire protocol to the transaction manager and
// store.
package server

import (
	"errors"
	"net"

	"xacto/pkg/mvcc"
	"xacto/pkg/registry"
	"xacto/pkg/xlog"
	"xacto/pkg/xmetrics"
)

// Server owns the listening socket, the client registry, and the
// transaction manager / store it dispatches operations to.
type Server struct {
	mgr   *mvcc.Manager
	store *mvcc.Store
	reg   *registry.Registry

	listener net.Listener
}

// New creates a server backed by the given transaction manager and store.
func New(mgr *mvcc.Manager, store *mvcc.Store) *Server {
	return &Server{
		mgr:   mgr,
		store: store,
		reg:   registry.New(),
	}
}

// Registry returns the server's client registry, so the owning process can
// drive a SIGHUP shutdown through it.
func (s *Server) Registry() *registry.Registry {
	return s.reg
}

// Serve listens on addr and accepts connections until the listener is
// closed by Shutdown, spawning one goroutine per connection. It returns nil on a clean shutdown.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	xlog.WithComponent("server").Info().Str("addr", addr).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}
		go s.serveConn(conn)
	}
}

// Shutdown stops accepting new connections. Existing sessions are ended by
// closing them through the registry.
func (s *Server) Shutdown() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	log := xlog.WithConn(remote)

	s.reg.Register(conn)
	xmetrics.ConnectionsActive.Inc()
	defer func() {
		s.reg.Unregister(conn)
		xmetrics.ConnectionsActive.Dec()
		conn.Close()
	}()

	tx := s.mgr.Create()
	xmetrics.TransactionsCreated.Inc()
	log.Debug().Uint64("txn", tx.ID()).Msg("session started")
	defer tx.Unref()

	sess := newSession(conn, s.store, tx)
	if err := sess.run(); err != nil {
		log.Debug().Err(err).Msg("session ended")
	} else {
		log.Debug().Msg("session closed")
	}
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
