package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"capbench/internal/domain"
	"capbench/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

var ErrPublisherClosed = errors.New("publisher closed")

// Publisher streams run events as JSON text messages over a websocket.
type Publisher struct {
	conn *websocket.Conn
	log  logger.Logger

	runID string
	send  chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func Dial(ctx context.Context, url, runID string, log logger.Logger) (*Publisher, error) {
	dialer := websocket.Dialer{HandshakeTimeout: writeWait}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial report stream %s: %w", url, err)
	}

	p := &Publisher{
		conn:  conn,
		log:   log,
		runID: runID,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}

	go p.readPump()
	go p.writePump()

	log.Info("report stream connected", "url", url)
	return p, nil
}

func (p *Publisher) RunStarted(ctx context.Context, info domain.RunInfo) error {
	return p.publish(ctx, domain.WsEventRunStarted, info)
}

func (p *Publisher) PassStarted(context.Context, string) error {
	return nil
}

func (p *Publisher) PassFinished(ctx context.Context, _ domain.RunInfo, pass domain.PassResult) error {
	return p.publish(ctx, domain.WsEventPassFinished, pass)
}

func (p *Publisher) RunFinished(ctx context.Context, report domain.RunReport) error {
	return p.publish(ctx, domain.WsEventRunFinished, report)
}

func (p *Publisher) publish(ctx context.Context, event string, payload any) error {
	msg, err := json.Marshal(domain.WsReportEvent{
		RunID:   p.runID,
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.send <- msg:
		return nil
	case <-p.done:
		return ErrPublisherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes queued events and sends a close frame.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.send)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.conn.Close()
		return ctx.Err()
	}
}

// readPump only services control frames; the stream is one-way.
func (p *Publisher) readPump() {
	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := p.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.log.Debug("report stream read finished", "error", err)
			}
			return
		}
	}
}

func (p *Publisher) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
		close(p.done)
	}()

	for {
		select {
		case message, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				p.log.Error("report stream write failed", "error", err)
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.log.Error("report stream ping failed", "error", err)
				return
			}
		}
	}
}
