package server

import (
	"errors"
	"io"
	"net"

	"xacto/pkg/blob"
	"xacto/pkg/mvcc"
	"xacto/pkg/wire"
	"xacto/pkg/xlog"
	"xacto/pkg/xmetrics"
)

// parseState is this connection's own PUT/GET grammar position. The
// reference implementation tracked this with two ints (p_flag, g_flag)
// shared across every connection on the process, which corrupted concurrent
// clients' parsing; here it is a field on the per-connection session, so
// there is nothing to share.
type parseState int

const (
	stateIdle parseState = iota
	statePutAwaitingKey
	statePutAwaitingValue
	stateGetAwaitingKey
)

// session is one client connection's state: exactly one transaction, one
// parser position, at most one pending key.
type session struct {
	conn  net.Conn
	store *mvcc.Store
	tx    *mvcc.Transaction

	state      parseState
	pendingKey *blob.Key
}

func newSession(conn net.Conn, store *mvcc.Store, tx *mvcc.Transaction) *session {
	return &session{conn: conn, store: store, tx: tx, state: stateIdle}
}

// run drives the session's read-packet/dispatch loop until EOF, a protocol
// error, a COMMIT, or an ABORTED status ends it. It never returns an error
// for the ordinary "client hung up" case.
func (s *session) run() error {
	for {
		pkt, err := wire.ReadPacket(s.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.tx.Abort()
				return nil
			}
			xmetrics.ProtocolErrors.Inc()
			xlog.WithTxn(s.tx.ID()).Debug().Err(err).Msg("read error, aborting")
			s.tx.Abort()
			return err
		}

		done, err := s.dispatch(pkt)
		if err != nil {
			xmetrics.ProtocolErrors.Inc()
			xlog.WithTxn(s.tx.ID()).Debug().Err(err).Msg("protocol error, aborting")
			s.tx.Abort()
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *session) dispatch(pkt wire.Packet) (done bool, err error) {
	switch pkt.Header.Type {
	case wire.TypePut:
		if s.state != stateIdle {
			return true, errProtocol("PUT received mid-sequence")
		}
		s.state = statePutAwaitingKey
		return false, nil

	case wire.TypeGet:
		if s.state != stateIdle {
			return true, errProtocol("GET received mid-sequence")
		}
		s.state = stateGetAwaitingKey
		return false, nil

	case wire.TypeData:
		return s.dispatchData(pkt)

	case wire.TypeCommit:
		if s.state != stateIdle {
			return true, errProtocol("COMMIT received mid-sequence")
		}
		final := s.tx.Commit()
		xmetrics.TransactionsFinalized.WithLabelValues(final.String()).Inc()
		return true, wire.WriteSimple(s.conn, wire.TypeReply, toWireStatus(final))

	default:
		return true, errProtocol("unexpected packet type")
	}
}

func (s *session) dispatchData(pkt wire.Packet) (done bool, err error) {
	switch s.state {
	case statePutAwaitingKey:
		s.pendingKey = blob.NewKey(blob.New(pkt.Payload))
		s.state = statePutAwaitingValue
		return false, nil

	case statePutAwaitingValue:
		var val *blob.Blob
		if !pkt.Header.Null {
			val = blob.New(pkt.Payload)
		}
		key := s.pendingKey
		s.pendingKey = nil
		s.state = stateIdle

		final := s.store.Put(s.tx, key, val)
		if final == mvcc.StatusAborted {
			xmetrics.WriteWriteConflicts.Inc()
			xmetrics.TransactionsFinalized.WithLabelValues(final.String()).Inc()
			wire.WriteSimple(s.conn, wire.TypeReply, toWireStatus(final))
			return true, nil
		}
		return false, wire.WriteSimple(s.conn, wire.TypeReply, toWireStatus(final))

	case stateGetAwaitingKey:
		key := blob.NewKey(blob.New(pkt.Payload))
		s.state = stateIdle

		val, final := s.store.Get(s.tx, key)
		if final == mvcc.StatusAborted {
			xmetrics.TransactionsFinalized.WithLabelValues(final.String()).Inc()
			wire.WriteSimple(s.conn, wire.TypeReply, toWireStatus(final))
			return true, nil
		}
		if err := wire.WriteSimple(s.conn, wire.TypeReply, toWireStatus(final)); err != nil {
			return true, err
		}
		if val == nil {
			return false, wire.WriteData(s.conn, toWireStatus(final), nil)
		}
		defer val.Unref()
		return false, wire.WriteData(s.conn, toWireStatus(final), val.Bytes())

	default:
		return true, errProtocol("unexpected DATA packet")
	}
}

func toWireStatus(s mvcc.Status) wire.Status {
	switch s {
	case mvcc.StatusCommitted:
		return wire.StatusCommitted
	case mvcc.StatusAborted:
		return wire.StatusAborted
	default:
		return wire.StatusPending
	}
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

func errProtocol(msg string) error { return protocolError(msg) }
