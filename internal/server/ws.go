package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/pdfvault/internal/catalog"
	"github.com/ziadkadry99/pdfvault/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type   string `json:"type"` // "search"
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Tokens int    `json:"tokens"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type    string `json:"type"` // "results" or "error"
	Content string `json:"content,omitempty"`
	*searchResponse
}

// handleWebSocket serves an interactive search session: each search
// message gets one results or error message back, in order.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read", "error", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.sendError(conn, "invalid message format")
			continue
		}

		switch req.Type {
		case "search":
			s.handleSearchMessage(conn, r, req)
		default:
			s.sendError(conn, "unknown message type: "+req.Type)
		}
	}
}

func (s *Server) handleSearchMessage(conn *websocket.Conn, r *http.Request, req wsRequest) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.metrics.Search("ws", metrics.OutcomeInvalid)
		s.sendError(conn, "query is required")
		return
	}

	opts := s.searchOptions()
	if req.Limit > 0 {
		opts.Limit = req.Limit
	}
	if req.Offset > 0 {
		opts.Offset = req.Offset
	}
	if req.Tokens > 0 {
		opts.SnippetTokens = req.Tokens
	}

	resp, err := s.search(r.Context(), query, opts)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidQuery) {
			s.metrics.Search("ws", metrics.OutcomeInvalid)
			s.sendError(conn, err.Error())
			return
		}
		s.metrics.Search("ws", metrics.OutcomeError)
		s.logger.Error("websocket search failed", "query", query, "error", err)
		s.sendError(conn, "search failed")
		return
	}

	s.metrics.Search("ws", metrics.OutcomeOK)
	s.sendResponse(conn, wsResponse{Type: "results", searchResponse: resp})
}

func (s *Server) sendResponse(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write", "error", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	s.sendResponse(conn, wsResponse{Type: "error", Content: message})
}
