package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sitechat/pkg/llm"
	"sitechat/pkg/rag"
	"sitechat/pkg/session"
	"sitechat/pkg/validator"
)

const sessionCookie = "sitechat_session"

// Server exposes the indexing and chat pipeline over HTTP. Each browser gets
// its own session (and so its own collection) via a cookie.
type Server struct {
	service  *rag.Service
	sessions *session.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(service *rag.Service, sessions *session.Manager, logger *zap.Logger) *Server {
	return &Server{
		service:  service,
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/index", s.handleIndex)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/clear", s.handleClear)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Run blocks serving HTTP on addr until the listener fails.
func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}

type indexRequest struct {
	URL string `json:"url"`
}

type indexResponse struct {
	Success     bool   `json:"success"`
	PagesCount  int    `json:"pages_count"`
	ChunksCount int    `json:"chunks_count"`
	Message     string `json:"message,omitempty"`
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatSource struct {
	Source string `json:"source"`
	Title  string `json:"title"`
}

type chatResponse struct {
	Answer  string       `json:"answer"`
	Sources []chatSource `json:"sources"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.URL == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}

	sess := s.session(w, r)

	result, err := s.service.Index(r.Context(), sess, req.URL, nil)
	if err != nil {
		var verr *validator.Error
		if errors.As(err, &verr) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
			return
		}
		if errors.Is(err, rag.ErrNoContent) {
			s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("indexing failed", zap.String("url", req.URL), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "indexing failed"})
		return
	}

	resp := indexResponse{
		Success:     true,
		PagesCount:  result.Pages,
		ChunksCount: result.Chunks,
	}
	if result.UpToDate {
		resp.Message = "url is already indexed"
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	sess := s.session(w, r)
	answer := s.service.Ask(r.Context(), sess, req.Message)

	sources := make([]chatSource, 0, len(answer.Sources))
	seen := make(map[string]bool)
	for _, chunk := range answer.Sources {
		if seen[chunk.Metadata.Source] {
			continue
		}
		seen[chunk.Metadata.Source] = true
		sources = append(sources, chatSource{
			Source: chunk.Metadata.Source,
			Title:  chunk.Metadata.Title,
		})
	}

	s.writeJSON(w, http.StatusOK, chatResponse{Answer: answer.Answer, Sources: sources})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	sess := s.session(w, r)
	sess.ClearMessages()
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// handleWebSocket runs the index-then-chat flow over one connection so the
// client can watch crawl progress page by page.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "index":
			s.wsIndex(r, conn, sess, msg.Content)
		case "chat":
			answer := s.service.Ask(r.Context(), sess, msg.Content)
			payload := answer.Answer
			if sources := llm.FormatSources(answer.Sources); len(sources) > 0 {
				payload += "\n\nSources:"
				for _, src := range sources {
					payload += "\n- " + src
				}
			}
			s.wsSend(conn, "answer", payload)
		default:
			s.wsSend(conn, "error", fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

func (s *Server) wsIndex(r *http.Request, conn *websocket.Conn, sess *session.Session, url string) {
	s.wsSend(conn, "status", "Indexing "+url)

	result, err := s.service.Index(r.Context(), sess, url, func(pageURL string) {
		s.wsSend(conn, "progress", "Crawled "+pageURL)
	})
	if err != nil {
		s.wsSend(conn, "error", err.Error())
		return
	}

	if result.UpToDate {
		s.wsSend(conn, "indexed", "URL is already indexed")
		return
	}
	s.wsSend(conn, "indexed", fmt.Sprintf("Indexed %d pages into %d chunks", result.Pages, result.Chunks))
}

func (s *Server) wsSend(conn *websocket.Conn, msgType, content string) {
	if err := conn.WriteJSON(wsMessage{Type: msgType, Content: content}); err != nil {
		s.logger.Warn("websocket write failed", zap.Error(err))
	}
}

// session resolves the caller's session from the cookie, minting one (and
// setting the cookie) on first contact.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		id = cookie.Value
	}

	sess := s.sessions.Get(id)
	if sess.ID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response write failed", zap.Error(err))
	}
}
