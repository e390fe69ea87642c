package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/apexline/paddock/internal/models"
	"github.com/apexline/paddock/internal/types"
	"github.com/apexline/paddock/pkg/sanitize"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Config struct {
	Addr       string
	AuthToken  string
	MaxPending int // sanitizer withheld-buffer bound per response
}

// Server exposes the chat assistant over HTTP: POST /api/chat streams a
// sanitized plain-text answer, /ws does the same over a websocket, and
// /health reports liveness. Every request gets its own sanitizer; nothing
// is shared between streams.
type Server struct {
	config    Config
	retriever types.Retriever
	chat      types.ChatStreamer
}

func New(config Config, retriever types.Retriever, chat types.ChatStreamer) *Server {
	if config.MaxPending == 0 {
		config.MaxPending = sanitize.DefaultMaxPending
	}
	return &Server{
		config:    config,
		retriever: retriever,
		chat:      chat,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

type chatRequest struct {
	Messages []models.Message `json:"messages"`
}

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	// Auth is checked before any retrieval or model work is spent.
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, m := range req.Messages {
		if err := m.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	query := models.LatestUserContent(req.Messages)
	if query == "" {
		writeError(w, http.StatusBadRequest, "no user message")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	docContext := s.retriever.Retrieve(ctx, query)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	san := sanitize.NewWithConfig(sanitize.Config{MaxPending: s.config.MaxPending})
	wrote := false
	err := s.chat.StreamChat(ctx, req.Messages, docContext, func(delta string) error {
		cleaned := san.Push(delta)
		if cleaned == "" {
			return nil
		}
		if _, err := io.WriteString(w, cleaned); err != nil {
			return err
		}
		wrote = true
		flusher.Flush()
		return nil
	})
	if err != nil {
		if !wrote {
			writeError(w, http.StatusBadGateway, "model stream failed")
			return
		}
		// Headers are gone; the broken body is all we can report.
		log.Printf("server: stream terminated: %v", err)
		return
	}

	if rest := san.Flush(); rest != "" {
		io.WriteString(w, rest)
		flusher.Flush()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, "error", "invalid message")
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			s.sendMessage(conn, "error", "empty message")
			continue
		}

		ctx := r.Context()
		docContext := s.retriever.Retrieve(ctx, msg.Content)
		messages := []models.Message{{Role: models.RoleUser, Content: msg.Content}}

		san := sanitize.NewWithConfig(sanitize.Config{MaxPending: s.config.MaxPending})
		err = s.chat.StreamChat(ctx, messages, docContext, func(delta string) error {
			if cleaned := san.Push(delta); cleaned != "" {
				return s.sendMessage(conn, "stream", cleaned)
			}
			return nil
		})
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("stream failed: %v", err))
			continue
		}
		if rest := san.Flush(); rest != "" {
			s.sendMessage(conn, "stream", rest)
		}
		s.sendMessage(conn, "done", "")
	}
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string) error {
	err := conn.WriteJSON(wsMessage{Type: msgType, Content: content})
	if err != nil {
		log.Printf("server: error sending message: %v", err)
	}
	return err
}

func (s *Server) authorized(r *http.Request) bool {
	if s.config.AuthToken == "" {
		return false // no credential configured means nobody gets in
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && token == s.config.AuthToken
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
