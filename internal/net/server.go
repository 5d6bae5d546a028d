package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"geri/internal/common"
	"geri/internal/utils"
	"geri/internal/warehouse"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	MAX_RECV_SIZE      = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = time.Second
)

var (
	ErrImproperConversion = errors.New("improper type conversion")
	ErrClientDoesNotExist = errors.New("client does not exist")
)

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

type Server struct {
	address            string
	port               int
	wh                 *warehouse.Warehouse
	pool               utils.WorkerPool
	cancel             context.CancelFunc
	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage
}

func New(address string, port int, wh *warehouse.Warehouse) *Server {
	return &Server{
		address:        address,
		port:           port,
		wh:             wh,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	// Start the transaction applier. This is the only goroutine that
	// touches the warehouse, so transactions serialize here.
	t.Go(func() error {
		return s.applier(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("warehouse server running")

	// Start accepting connections.
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			// Add the client to client sessions we are tracking.
			// We expect to potentially maintain a long TCP session.
			s.addClientSession(conn)

			// Pass over the connection to be read from.
			s.pool.AddTask(conn)
		}
	}
}

// applier reads incoming messages off clients, runs them through the
// warehouse and reports the outcome back. Messages are received from the
// pool of workers; the warehouse sees them strictly one at a time.
func (s *Server) applier(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			s.handleMessage(message)
		}
	}
}

func (s *Server) handleMessage(m ClientMessage) {
	switch msg := m.message.(type) {
	case *ProduceMessage:
		txn, err := msg.Transaction()
		if err != nil {
			s.report(m.clientAddress, generateErrorReport(txn, err))
			return
		}
		s.transact(m.clientAddress, txn)
	case *ConsumeMessage:
		txn, err := msg.Transaction()
		if err != nil {
			s.report(m.clientAddress, generateErrorReport(txn, err))
			return
		}
		s.transact(m.clientAddress, txn)
	case BaseMessage:
		if msg.TypeOf == DumpHistory {
			s.dumpHistory(m.clientAddress)
		}
	}
}

func (s *Server) transact(clientAddress string, txn common.Transaction) {
	receipt, err := s.wh.Transact(txn)
	if err != nil {
		log.Warn().
			Err(err).
			Str("product", txn.Product).
			Stringer("kind", txn.Kind).
			Msg("transaction rejected")
		s.report(clientAddress, generateErrorReport(txn, err))
		return
	}

	log.Info().
		Str("product", txn.Product).
		Stringer("kind", txn.Kind).
		Uint64("quantity", txn.Quantity).
		Str("price_per_unit", receipt.PricePerUnit.String()).
		Msg("transaction applied")
	s.report(clientAddress, generateTransactReport(receipt))
}

// dumpHistory writes the applied transaction log to the client as plain text.
func (s *Server) dumpHistory(clientAddress string) {
	var sb strings.Builder
	for i, txn := range s.wh.History() {
		fmt.Fprintf(&sb, "--- %d ---\n%s\n", i, txn.String())
	}
	s.report(clientAddress, []byte(sb.String()))
}

func (s *Server) report(clientAddress string, payload []byte) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		log.Warn().Str("address", clientAddress).Msg("report for unknown client dropped")
		return
	}

	if _, err := client.conn.Write(payload); err != nil {
		log.Error().Err(err).Str("address", clientAddress).Msg("unable to send report")
		delete(s.clientSessions, clientAddress)
	}
}

// handleConnection is a short-lived worker method which reads the next message off the
// connection, parses and passes it forward to the applier to handle it. If the connection
// dies, the client session is cleaned up. This method does not lock any client session
// directly and gives up early if the connection is terminated. Therefore this method is
// thread safe on map accesses.
// Note, any error returned from here is fatal.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	// Set max read timeout so a silent client hands the worker back.
	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		return nil
	}

	buffer := make([]byte, MAX_RECV_SIZE)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			if isTimeout(err) {
				// Nothing to read yet; requeue the connection.
				s.pool.AddTask(conn)
				return nil
			}
			log.Info().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("client disconnected")
			s.deleteClientSession(conn.RemoteAddr().String())
			if cerr := conn.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("unable to close connection")
			}
			return nil
		}

		message, err := parseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
			s.deleteClientSession(conn.RemoteAddr().String())
			if cerr := conn.Close(); cerr != nil {
				log.Error().Err(cerr).Msg("unable to close connection")
			}
			return nil
		}

		// Pass over to the applier and exit this worker.
		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: conn.RemoteAddr().String(),
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// addClientSession is an atomic map add
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{
		conn: conn,
	}
}

// deleteClientSession is an atomic map remove
func (s *Server) deleteClientSession(address string) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, address)
}
