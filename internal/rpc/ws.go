package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"starkdex-indexer/internal/domain"
	"starkdex-indexer/internal/storage"
)

// WSConfig configures the WebSocket block subscriber.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// BlockSubscriber maintains a starknet_subscribeNewHeads subscription and
// records every header into the block store. The recorded headers back the
// closest-block lookups used when snapshots are backfilled.
type BlockSubscriber struct {
	endpoint string
	config   WSConfig
	blocks   storage.BlockStore
	logger   *slog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewBlockSubscriber connects, subscribes to new heads and starts the read
// loop.
func NewBlockSubscriber(ctx context.Context, endpoint string, blocks storage.BlockStore, logger *slog.Logger, config *WSConfig) (*BlockSubscriber, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	s := &BlockSubscriber{
		endpoint: endpoint,
		config:   cfg,
		blocks:   blocks,
		logger:   logger.With("component", "block_subscriber"),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.subscribe(); err != nil {
		s.conn.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// connect establishes the WebSocket connection.
func (s *BlockSubscriber) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// subscribe sends the new-heads subscription request.
func (s *BlockSubscriber) subscribe() error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      s.requestID.Add(1),
		Method:  "starknet_subscribeNewHeads",
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// Close shuts the subscriber down.
func (s *BlockSubscriber) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// readLoop reads headers and reconnects on failure.
func (s *BlockSubscriber) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			s.logger.Warn("read failed, reconnecting", "error", err, "delay", reconnectDelay)
			s.reconnect(reconnectDelay)

			// Exponential backoff
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}
			continue
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// reconnect re-dials and resubscribes.
func (s *BlockSubscriber) reconnect(delay time.Duration) {
	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		// Will retry on next read error
		return
	}
	if err := s.subscribe(); err != nil {
		s.logger.Warn("resubscribe failed", "error", err)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *BlockSubscriber) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}

// newHeadsNotification is the starknet_subscriptionNewHeads payload.
type newHeadsNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  *struct {
		Result struct {
			BlockNumber int64 `json:"block_number"`
			Timestamp   int64 `json:"timestamp"` // Unix seconds
		} `json:"result"`
	} `json:"params"`
}

// handleMessage records block headers; everything else is ignored.
func (s *BlockSubscriber) handleMessage(message []byte) {
	var notif newHeadsNotification
	if err := json.Unmarshal(message, &notif); err != nil {
		return
	}
	if notif.Method != "starknet_subscriptionNewHeads" || notif.Params == nil {
		return
	}

	block := &domain.Block{
		Number:    notif.Params.Result.BlockNumber,
		Timestamp: notif.Params.Result.Timestamp * 1000,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.blocks.Insert(ctx, block); err != nil {
		s.logger.Error("record block failed", "block", block.Number, "error", err)
		return
	}
	s.logger.Debug("recorded block", "block", block.Number, "timestamp", block.Timestamp)
}

// wsRequest is a JSON-RPC 2.0 request over WebSocket.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}
