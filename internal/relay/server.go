package relay

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/omochice/relay-chat/pkg/protocol"
)

// WSPath is the request path accepted for WebSocket upgrades.
const WSPath = "/ws"

// DefaultDetectWait bounds how long a new connection may stay silent before
// it is treated as raw TCP.
const DefaultDetectWait = 150 * time.Millisecond

// MaxFrameSize is the largest frame a client may send. A longer frame ends
// the client's session.
const MaxFrameSize = 1 << 20

// Server accepts raw TCP and WebSocket clients on one port and relays frames
// between the two clients of a Hub.
type Server struct {
	address    string
	listener   net.Listener
	hub        *Hub
	log        *zap.Logger
	detectWait time.Duration

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithDetectWait overrides DefaultDetectWait.
func WithDetectWait(d time.Duration) Option {
	return func(s *Server) { s.detectWait = d }
}

// New creates a Server listening on address once started.
func New(address string, opts ...Option) *Server {
	s := &Server{
		address:    address,
		log:        zap.NewNop(),
		detectWait: DefaultDetectWait,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.log)
	return s
}

// Start binds the listener and accepts connections in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	s.listener = listener
	s.log.Info("relay started", zap.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Done is closed once a shutdown requested by a client has completed and
// every client is gone.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Stop closes the listener and every client connection and waits for the
// handlers to return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.listener != nil {
			s.listener.Close()
		}
		s.hub.CloseAll()
	})
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of paired clients.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// ShuttingDown reports whether a client requested shutdown.
func (s *Server) ShuttingDown() bool {
	return s.hub.ShuttingDown()
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection determines whether the connection is a WebSocket upgrade
// or a raw TCP client.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	isHTTP, reader, err := detectHTTP(conn, s.detectWait)
	if err != nil {
		s.log.Debug("connection dropped during detection", zap.Error(err))
		conn.Close()
		return
	}

	var c Conn
	if isHTTP {
		bc := &bufferedConn{Conn: conn, reader: reader}
		u := s.upgrader()
		if _, err := u.Upgrade(bc); err != nil {
			s.log.Warn("websocket upgrade failed", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
			conn.Close()
			return
		}
		c = NewWSConn(bc)
	} else {
		c = NewTCPConn(conn, reader)
	}

	s.serve(NewClient(c))
}

func (s *Server) upgrader() ws.Upgrader {
	return ws.Upgrader{
		OnRequest: func(uri []byte) error {
			if string(uri) != WSPath {
				return ws.RejectConnectionError(ws.RejectionStatus(404))
			}
			return nil
		},
	}
}

func (s *Server) serve(c *Client) {
	log := s.log.With(zap.String("client", c.ID), zap.String("transport", c.Conn.Kind()))

	peer, ok := s.hub.Register(c)
	if !ok {
		log.Info("client refused", zap.String("remote", c.Conn.RemoteAddr()), zap.Bool("shutting_down", s.hub.ShuttingDown()))
		c.Conn.Close()
		return
	}
	log.Info("client joined", zap.String("remote", c.Conn.RemoteAddr()))

	writerDone := make(chan struct{})
	go s.writeLoop(c, log, writerDone)

	if peer != nil {
		linkUp := protocol.Service(protocol.KindPeerLinkUp).Encode()
		s.hub.SendTo(c, linkUp)
		s.hub.SendTo(peer, linkUp)
	} else {
		s.hub.SendTo(c, protocol.Service(protocol.KindInfoRequest).Encode())
	}

	announced := s.readLoop(c, log)

	remaining := s.hub.Unregister(c)
	close(c.Outgoing)
	<-writerDone
	c.Conn.Close()

	if !announced && !s.hub.ShuttingDown() {
		s.hub.Broadcast(protocol.Service(protocol.KindPeerExit).Encode())
	}
	log.Info("client left", zap.Int("remaining", remaining))

	if remaining == 0 && s.hub.ShuttingDown() {
		s.finish()
	}
}

// readLoop handles frames from c until it leaves. It reports whether the
// departure was already communicated, so no exit needs announcing.
func (s *Server) readLoop(c *Client, log *zap.Logger) bool {
	scanner := bufio.NewScanner(c.Conn)
	scanner.Buffer(make([]byte, 0, 4096), MaxFrameSize)
	scanner.Split(protocol.ScanFrames)

	for scanner.Scan() {
		frame := append([]byte(nil), scanner.Bytes()...)
		kind := protocol.Classify(frame)
		log.Debug("frame received", zap.Stringer("kind", kind), zap.Int("bytes", len(frame)))

		switch kind {
		case protocol.KindChat:
			if !s.hub.SendToPeer(c, frame) {
				s.hub.SendTo(c, protocol.Service(protocol.KindInfoRequest).Encode())
			}
		case protocol.KindPeerExit:
			s.hub.SendToPeer(c, frame)
			log.Info("client sent exit")
			return true
		case protocol.KindServerShutdown:
			if s.hub.BeginShutdown() {
				log.Info("shutdown requested")
				s.hub.Broadcast(frame)
				continue
			}
			log.Info("shutdown acknowledged")
			return true
		default:
			log.Warn("unexpected frame", zap.Stringer("kind", kind), zap.ByteString("frame", frame))
		}
	}

	switch err := scanner.Err(); {
	case errors.Is(err, bufio.ErrTooLong):
		log.Warn("frame exceeds size limit, dropping client", zap.Int("limit", MaxFrameSize))
	case err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed):
		log.Warn("read failed", zap.Error(err))
	}
	return false
}

func (s *Server) writeLoop(c *Client, log *zap.Logger, done chan<- struct{}) {
	defer close(done)
	for data := range c.Outgoing {
		if err := c.Conn.Write(data); err != nil {
			log.Warn("failed to write to client", zap.Error(err))
			c.Conn.Close()
			return
		}
	}
}

func (s *Server) finish() {
	s.doneOnce.Do(func() {
		s.log.Info("relay shut down")
		close(s.done)
		if s.listener != nil {
			s.listener.Close()
		}
	})
}
