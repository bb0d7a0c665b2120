package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Dataset events over WebSocket. Clients send
//   {"type":"subscribe","dataset":"dealers"}
// and receive {"type":"event","dataset":"dealers","event":"import.created","data":{...}}.

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string         `json:"type"`
	Dataset string         `json:"dataset,omitempty"`
	Event   string         `json:"event,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

// WSHandler handles /v1/ws
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// gorilla connections allow one concurrent writer
	var wmu sync.Mutex
	write := func(v wsMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}

	subs := map[string]chan SSEEvent{} // dataset -> channel
	var wg sync.WaitGroup
	defer func() {
		for ds, ch := range subs {
			s.Broker.Unsubscribe(topicFor(p.Tenant, ds), ch)
		}
		wg.Wait()
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				wmu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				wmu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			if !s.Config.KnownDataset(msg.Dataset) {
				_ = write(wsMessage{Type: "error", Dataset: msg.Dataset, Message: "unknown dataset"})
				continue
			}
			if _, ok := subs[msg.Dataset]; ok {
				continue
			}
			ch := s.Broker.Subscribe(topicFor(p.Tenant, msg.Dataset))
			subs[msg.Dataset] = ch
			wg.Add(1)
			go func(ds string, c chan SSEEvent) {
				defer wg.Done()
				for evt := range c {
					_ = write(wsMessage{Type: "event", Dataset: ds, Event: evt.Type, Data: evt.Data})
				}
			}(msg.Dataset, ch)
			_ = write(wsMessage{Type: "subscribed", Dataset: msg.Dataset})
		case "unsubscribe":
			if ch, ok := subs[msg.Dataset]; ok {
				s.Broker.Unsubscribe(topicFor(p.Tenant, msg.Dataset), ch)
				delete(subs, msg.Dataset)
			}
		default:
			_ = write(wsMessage{Type: "error", Message: "unknown message type " + msg.Type})
		}
	}
}
