package network

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/cbodonnell/worldgate/pkg/log"
	"github.com/cbodonnell/worldgate/pkg/messages"
	"github.com/cbodonnell/worldgate/pkg/staticdata"
)

var ErrServerShutdown = errors.New("server shutting down")

// TCPServer accepts game clients and runs one Connection actor per socket.
type TCPServer struct {
	ConnectionManager *ConnectionManager
	Global            messages.GlobalSender
	Tables            *staticdata.Tables
	Options           ConnectionOptions
	Port              string

	listener net.Listener
	ready    chan struct{}
}

type NewTCPServerOptions struct {
	ConnectionManager *ConnectionManager
	Global            messages.GlobalSender
	Tables            *staticdata.Tables
	Options           ConnectionOptions
	Port              string
}

// NewTCPServer creates a new TCP server.
func NewTCPServer(opts NewTCPServerOptions) *TCPServer {
	if opts.ConnectionManager == nil {
		opts.ConnectionManager = NewConnectionManager()
	}
	return &TCPServer{
		ConnectionManager: opts.ConnectionManager,
		Global:            opts.Global,
		Tables:            opts.Tables,
		Options:           opts.Options,
		Port:              opts.Port,
		ready:             make(chan struct{}),
	}
}

// Addr returns the address the server listens on once Ready is closed.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Ready is closed once the server is listening.
func (s *TCPServer) Ready() <-chan struct{} {
	return s.ready
}

// Start listens on the configured port and serves connections until ctx is
// done. Open connections are closed and waited for before it returns.
func (s *TCPServer) Start(ctx context.Context) error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", ":"+s.Port)
	if err != nil {
		return fmt.Errorf("failed to resolve TCP address: %w", err)
	}

	tcpListener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on TCP address: %w", err)
	}
	s.listener = tcpListener
	close(s.ready)

	log.Info("TCP server listening on %s", tcpListener.Addr().String())

	go func() {
		<-ctx.Done()
		tcpListener.Close()
	}()

	for {
		conn, err := tcpListener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("Failed to accept TCP connection: %v", err)
			continue
		}

		c := NewConnection(NewConnectionOptions{
			ID:      s.ConnectionManager.NextID(),
			Conn:    conn,
			Global:  s.Global,
			Tables:  s.Tables,
			Options: s.Options,
		})
		s.ConnectionManager.Add(c)
		go s.handleTCPConnection(ctx, c)
	}

	s.ConnectionManager.CloseAll(ErrServerShutdown)
	s.ConnectionManager.Wait()
	log.Info("TCP server stopped")
	return nil
}

func (s *TCPServer) handleTCPConnection(ctx context.Context, c *Connection) {
	defer s.ConnectionManager.Remove(c.ID())

	log.Debug("Accepted connection %d from %s", c.ID(), c.conn.RemoteAddr())
	c.Run(ctx)
}
