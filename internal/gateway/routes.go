package gateway

import (
	"context"
	"net/http"
	"strings"

	"github.com/soyeahso/finchat/internal/config"
)

// transportErrorPrefix starts replies for messages that could not be dispatched.
const transportErrorPrefix = "⚠️ Error: "

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("chat.history", s.rpcChatHistory)
	s.Handle("session.whoami", s.rpcSessionWhoami)
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	})
}

// rpcChatSend answers a message in the connection's own session. Dispatch
// errors are reported to the user as a reply and are not stored.
func (s *Server) rpcChatSend(rc *RequestContext) {
	var p ChatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		rc.RespondError("invalid_params", "message is required")
		return
	}

	timeout := s.cfg.Chat.Timeout()
	if timeout <= 0 {
		timeout = config.Defaults().Chat.Timeout()
	}
	ctx, cancel := context.WithTimeout(rc.Ctx, timeout)
	defer cancel()

	sessionID := rc.Client.SessionID()
	reply, err := s.chat.Dispatch(ctx, p.Message, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", sessionID).Msg("chat dispatch failed")
		rc.Respond(ChatReply{
			Response:  transportErrorPrefix + err.Error(),
			SessionID: sessionID,
			Kind:      KindTransportError,
		})
		return
	}

	rc.Respond(ChatReply{
		Response:   reply.Response,
		SessionID:  reply.SessionID,
		Kind:       string(reply.Kind),
		DurationMs: reply.Duration.Milliseconds(),
	})
}

func (s *Server) rpcChatHistory(rc *RequestContext) {
	if s.history == nil {
		rc.RespondError("unavailable", "history is not available")
		return
	}
	sessionID := rc.Client.SessionID()
	turns, err := s.history.LoadHistory(rc.Ctx, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", sessionID).Msg("loading history failed")
		rc.RespondError("internal_error", "could not load history")
		return
	}
	rc.Respond(ChatHistory{SessionID: sessionID, Turns: turns})
}

func (s *Server) rpcSessionWhoami(rc *RequestContext) {
	rc.Respond(rc.Client.User)
}
