package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/gearhead/internal/chat"
	"github.com/ent0n29/gearhead/internal/protocol"
)

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}
	if s.dispatcher == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "dispatcher not configured")
		return
	}
	displayName := strings.TrimSpace(r.URL.Query().Get("display_name"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.logger.Debug("chat socket connected", zap.String("user_id", userID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 32)
	outbound := make(chan any, 32)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		defer close(outbound)
		for msg := range inbound {
			out := s.handleSocketMessage(ctx, userID, displayName, msg)
			select {
			case <-ctx.Done():
				return
			case outbound <- out:
			}
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range outbound {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				// Unblock the read loop.
				_ = conn.Close()
				return
			}
			if t, ok := messageTypeOf(msg); ok {
				s.observeWS("outbound", t)
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		var msg any
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			msg = protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				UserID: userID,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			}
		} else {
			msg = parsed
			if t, ok := messageTypeOf(parsed); ok {
				s.observeWS("inbound", t)
			}
		}

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- msg:
		}
	}

	close(inbound)
	<-workerDone
	cancel()
	<-writerDone
	s.logger.Debug("chat socket disconnected", zap.String("user_id", userID))
}

// handleSocketMessage turns one inbound socket message into the event sent back.
func (s *Server) handleSocketMessage(ctx context.Context, userID, displayName string, msg any) any {
	switch m := msg.(type) {
	case protocol.ErrorEvent:
		return m
	case protocol.ClientControl:
		if strings.EqualFold(m.Action, "clear") {
			s.store.ClearHistory(userID)
			return protocol.SystemEvent{Type: protocol.TypeSystemEvent, UserID: userID, Code: "context_cleared"}
		}
		return protocol.ErrorEvent{
			Type:   protocol.TypeErrorEvent,
			UserID: userID,
			Code:   "unsupported_action",
			Detail: m.Action,
		}
	case protocol.ChatMessage:
		name := displayName
		if strings.TrimSpace(m.DisplayName) != "" {
			name = m.DisplayName
		}
		in := chat.Inbound{UserID: userID, DisplayName: name, Text: m.Text}
		if m.TSMs > 0 {
			in.SentAt = time.UnixMilli(m.TSMs)
		}
		reply, err := s.dispatcher.Handle(ctx, in)
		if err != nil {
			return protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				UserID:    userID,
				Code:      "dispatch_failed",
				Retryable: !errors.Is(err, chat.ErrEmptyInput),
				Detail:    err.Error(),
			}
		}
		return protocol.AssistantReply{
			Type:       protocol.TypeAssistantReply,
			UserID:     userID,
			ExchangeID: reply.ExchangeID,
			Command:    string(reply.Command),
			Chunks:     reply.Chunks,
			Remembered: reply.Remembered,
			HasContext: reply.HasContext,
		}
	default:
		return protocol.ErrorEvent{Type: protocol.TypeErrorEvent, UserID: userID, Code: "unsupported_type"}
	}
}

func (s *Server) observeWS(direction string, t protocol.MessageType) {
	if s.metrics != nil {
		s.metrics.WSMessages.WithLabelValues(direction, string(t)).Inc()
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ChatMessage:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.AssistantReply:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
