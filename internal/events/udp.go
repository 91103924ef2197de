package events

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"bookgraph/pkg/models"
)

// UDPNotifier sends each event as one JSON datagram to every peer that has
// sent SUBSCRIBE to its socket. UNSUBSCRIBE removes the peer.
type UDPNotifier struct {
	log  *zap.Logger
	conn *net.UDPConn
	done chan struct{}

	mu    sync.Mutex
	peers map[string]*net.UDPAddr
}

func ListenUDP(addr string, log *zap.Logger) (*UDPNotifier, error) {
	if log == nil {
		log = zap.NewNop()
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	n := &UDPNotifier{
		log:   log,
		conn:  conn,
		done:  make(chan struct{}),
		peers: make(map[string]*net.UDPAddr),
	}
	go n.readLoop()
	log.Info("udp notify listening", zap.String("addr", conn.LocalAddr().String()))
	return n, nil
}

// Addr is the bound local address.
func (n *UDPNotifier) Addr() net.Addr { return n.conn.LocalAddr() }

func (n *UDPNotifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.peers)
}

func (n *UDPNotifier) readLoop() {
	defer close(n.done)
	buf := make([]byte, 2048)
	for {
		size, from, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			n.log.Warn("udp read", zap.Error(err))
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(string(buf[:size]))) {
		case "SUBSCRIBE":
			n.mu.Lock()
			n.peers[from.String()] = from
			total := len(n.peers)
			n.mu.Unlock()
			n.log.Info("udp subscribed", zap.String("peer", from.String()), zap.Int("total", total))
		case "UNSUBSCRIBE":
			n.mu.Lock()
			delete(n.peers, from.String())
			total := len(n.peers)
			n.mu.Unlock()
			n.log.Info("udp unsubscribed", zap.String("peer", from.String()), zap.Int("total", total))
		}
	}
}

func (n *UDPNotifier) Publish(_ context.Context, evt models.BookAdded) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for key, addr := range n.peers {
		if _, err := n.conn.WriteToUDP(b, addr); err != nil {
			n.log.Warn("udp send failed", zap.String("peer", key), zap.Error(err))
		}
	}
	return nil
}

// Close stops the read loop and releases the socket.
func (n *UDPNotifier) Close() error {
	err := n.conn.Close()
	<-n.done
	return err
}
