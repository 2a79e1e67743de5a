// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/xsens_computer/internal/config"
	"github.com/relabs-tech/xsens_computer/internal/imu"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  socketBufferSize,
	WriteBufferSize: socketBufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebServer serves the latest heading over HTTP and streams every update
// to websocket clients.
type WebServer struct {
	pub          Publisher
	commandTopic string
	logger       *zap.SugaredLogger

	mu      sync.RWMutex
	heading []byte
	sample  []byte
	clients map[chan []byte]struct{}
}

// NewWebServer returns a server forwarding commands to commandTopic.
func NewWebServer(pub Publisher, commandTopic string, logger *zap.SugaredLogger) *WebServer {
	return &WebServer{
		pub:          pub,
		commandTopic: commandTopic,
		logger:       logger,
		clients:      make(map[chan []byte]struct{}),
	}
}

// OnHeading stores a heading payload and forwards it to every client.
// Slow clients miss updates.
func (s *WebServer) OnHeading(payload []byte) error {
	var h imu.Heading
	if err := json.Unmarshal(payload, &h); err != nil {
		return fmt.Errorf("heading payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heading = payload
	for ch := range s.clients {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// OnSample stores a sample payload.
func (s *WebServer) OnSample(payload []byte) error {
	if !json.Valid(payload) {
		return errors.New("sample payload is not JSON")
	}
	s.mu.Lock()
	s.sample = payload
	s.mu.Unlock()
	return nil
}

// Handler returns the HTTP routes.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/heading", s.serveLatest(func() []byte { return s.heading }))
	mux.HandleFunc("/api/sample", s.serveLatest(func() []byte { return s.sample }))
	mux.HandleFunc("/api/command", s.handleCommand)
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/", http.FileServer(http.Dir("web")))
	return mux
}

func (s *WebServer) serveLatest(get func() []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		payload := get()
		s.mu.RUnlock()
		if payload == nil {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(payload); err != nil {
			s.logger.Debugw("write failed", "error", err)
		}
	}
}

func (s *WebServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := imu.ParseCommand(body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token := s.pub.Publish(s.commandTopic, 1, false, body)
	token.Wait()
	if err := token.Error(); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, messageBufferSize)
	s.mu.Lock()
	s.clients[send] = struct{}{}
	if s.heading != nil {
		send <- s.heading
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, send)
		s.mu.Unlock()
	}()

	// the client only ever closes; reads detect that
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg := <-send:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// subscribeJSON subscribes handle to topic, logging payload errors.
func subscribeJSON(client mqtt.Client, topic string, logger *zap.SugaredLogger, handle func([]byte) error) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := handle(msg.Payload()); err != nil {
			logger.Warnw("bad payload", "topic", topic, "error", err)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	logger.Infof("subscribed to MQTT topic %s", topic)
	return nil
}

// RunWeb serves the web front end until ctx ends.
func RunWeb(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT connect: %w", token.Error())
	}
	defer client.Disconnect(250)
	logger.Infof("connected to MQTT broker at %s", cfg.MQTTBroker)

	s := NewWebServer(client, cfg.TopicCommand, logger)
	if err := subscribeJSON(client, cfg.TopicHeading, logger, s.OnHeading); err != nil {
		return err
	}
	if cfg.TopicSample != "" {
		if err := subscribeJSON(client, cfg.TopicSample, logger, s.OnSample); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("web server shutdown", "error", err)
		}
	}()

	logger.Infof("web server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
