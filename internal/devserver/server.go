/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package devserver is a reference implementation of the backend API the
// client consumes. It backs local development, the end-to-end tests and the
// `artdao serve` command. AI output and ledger figures are deterministic
// stand-ins; proposals and gallery feedback are persisted in memory or in
// PostgreSQL.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"artdao/internal/backend"
	"artdao/internal/domain"
	applog "artdao/internal/log"
	"artdao/internal/version"
	"artdao/internal/wallet"
)

// APIVersion is the wire protocol version reported by /version.
const APIVersion = "0.4.0"

// Config configures a Server.
type Config struct {
	Addr      string
	JWTSecret string
	// Admins may delete proposals. This list is the authorization boundary;
	// whatever a client shows is irrelevant here.
	Admins   []string
	TokenTTL time.Duration
	// Fail names per-user resources ("balance", "rewards", ...) that answer
	// 503, to exercise degraded dashboards.
	Fail []string
	Now  func() time.Time
}

// Server serves the backend API.
type Server struct {
	repo   Repository
	cfg    Config
	secret []byte
	fail   map[string]bool
	now    func() time.Time
	log    *slog.Logger
	mux    *http.ServeMux
}

// New builds a server over repo.
func New(repo Repository, cfg Config) *Server {
	s := &Server{
		repo: repo,
		cfg:  cfg,
		fail: map[string]bool{},
		now:  cfg.Now,
		log:  applog.WithComponent("devserver"),
		mux:  http.NewServeMux(),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if cfg.JWTSecret == "" {
		s.log.Warn("no JWT secret configured; using an insecure development secret")
		cfg.JWTSecret = "dev-secret-change-me"
	}
	s.secret = []byte(cfg.JWTSecret)
	s.cfg.TokenTTL = defaultTTL(cfg.TokenTTL)
	for _, f := range cfg.Fail {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			s.fail[f] = true
		}
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	m := s.mux
	m.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	m.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
		_, _ = w.Write([]byte("ready"))
	})
	m.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "artdao-server/%s build %s", APIVersion, version.String())
	})

	m.HandleFunc("POST /api/auth/wallet-login", s.handleLogin)
	m.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		// tokens are stateless; nothing to revoke
		w.WriteHeader(http.StatusNoContent)
	})

	m.HandleFunc("GET /api/proposals", s.handleListProposals)
	m.HandleFunc("POST /api/proposals", s.withAuth(s.handleCreateProposal))
	m.HandleFunc("DELETE /api/proposals/{id}", s.withAuth(s.handleDeleteProposal))
	m.HandleFunc("GET /api/users/{addr}/{resource}", s.handleUserResource)

	m.HandleFunc("POST /api/studio/draft", s.handleDraft)
	m.HandleFunc("POST /api/studio/image", s.handleImage)
	m.HandleFunc("GET /api/studio/check", s.handleCheck)

	m.HandleFunc("GET /api/gallery/items", s.handleGallery)
	m.HandleFunc("POST /api/gallery/docent", s.handleDocent)
	m.HandleFunc("POST /api/gallery/feedback", s.handleFeedback)
	m.HandleFunc("POST /api/chat", s.handleChat)
	m.HandleFunc("POST /api/agents/{agent}", s.handleAgent)
}

// Handler returns the API with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(backend.RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(backend.RequestIDHeader, rid)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		s.mux.ServeHTTP(rec, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.String("rid", rid),
			slog.Duration("took", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", s.cfg.Addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

func (s *Server) isAdmin(address string) bool {
	return slices.ContainsFunc(s.cfg.Admins, func(a string) bool { return wallet.SameAddress(a, address) })
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"wallet_address"`
		Signature     string `json:"signature"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	addr := strings.TrimSpace(req.WalletAddress)
	if !wallet.ValidAddress(addr) {
		writeError(w, http.StatusUnprocessableEntity, errors.New("wallet_address must be a 0x-prefixed 20-byte hex address"))
		return
	}
	tok, err := s.issueToken(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("wallet login", applog.Addr(addr))
	writeJSON(w, http.StatusOK, backend.LoginResult{AccessToken: tok, TokenType: "bearer"})
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.ListProposals(r.Context(), domain.ParseStatus(r.URL.Query().Get("status")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	var req backend.CreateProposalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub := subject(r)
	if req.WalletAddress == "" {
		req.WalletAddress = sub
	}
	if !wallet.SameAddress(req.WalletAddress, sub) {
		writeError(w, http.StatusForbidden, errors.New("wallet_address does not match the token"))
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("topic is required"))
		return
	}
	if req.Style == "" {
		req.Style = domain.StyleGeneral
	}
	p, err := s.repo.CreateProposal(r.Context(), domain.Proposal{
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Style:         req.Style,
		ImageURL:      req.ImageURL,
		WalletAddress: req.WalletAddress,
		Status:        domain.StatusOpen,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("proposal created", slog.Int64("id", p.ID), applog.Addr(sub))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProposal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid proposal id"))
		return
	}
	sub := subject(r)
	if !s.isAdmin(sub) {
		s.log.Warn("delete refused", slog.Int64("id", id), applog.Addr(sub))
		writeError(w, http.StatusForbidden, errors.New("only administrators may delete proposals"))
		return
	}
	switch err := s.repo.DeleteProposal(r.Context(), id); {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		s.log.Info("proposal deleted", slog.Int64("id", id), applog.Addr(sub))
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleUserResource(w http.ResponseWriter, r *http.Request) {
	addr, res := r.PathValue("addr"), r.PathValue("resource")
	if !wallet.ValidAddress(addr) {
		writeError(w, http.StatusUnprocessableEntity, errors.New("invalid address"))
		return
	}
	if s.fail[res] {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("%s is temporarily unavailable", res))
		return
	}
	ctx := r.Context()
	switch res {
	case "balance":
		writeJSON(w, http.StatusOK, map[string]float64{"balance": mockBalance(addr)})
	case "membership":
		writeJSON(w, http.StatusOK, map[string]string{"membership": mockMembership(addr)})
	case "rewards":
		writeJSON(w, http.StatusOK, map[string]float64{"rewards": mockRewards(addr)})
	case "delegation":
		writeJSON(w, http.StatusOK, mockDelegation(addr))
	case "referral":
		writeJSON(w, http.StatusOK, mockReferral(addr))
	case "activity", "proposals":
		authored, err := s.repo.ProposalsBy(ctx, addr)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if res == "proposals" {
			writeJSON(w, http.StatusOK, authored)
			return
		}
		writeJSON(w, http.StatusOK, mockActivity(addr, authored))
	case "recommendation":
		open, err := s.repo.ListProposals(ctx, domain.StatusOpen)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for _, p := range open {
			if !wallet.SameAddress(p.WalletAddress, addr) {
				writeJSON(w, http.StatusOK, domain.Recommendation{
					Title:  "Vote on " + p.Title,
					Reason: "An open proposal you have not authored is waiting for votes.",
				})
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown resource %q", res))
	}
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Intent string `json:"intent"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Intent) == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("intent is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draft_text": mockDraft(req.Intent)})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keywords string `json:"keywords"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Keywords) == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("keywords are required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_url": mockImageURL(req.Keywords)})
}

// handleCheck scores the topic against existing proposal titles: 100 is an
// exact match, 0 shares nothing.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	topic := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("topic")))
	if topic == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("topic is required"))
		return
	}
	list, err := s.repo.ListProposals(r.Context(), "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	best, closest := 0.0, ""
	for _, p := range list {
		t := strings.ToLower(p.Title)
		longest := max(len([]rune(t)), len([]rune(topic)))
		if longest == 0 {
			continue
		}
		score := 100 * (1 - float64(levenshtein.ComputeDistance(topic, t))/float64(longest))
		if score > best {
			best, closest = score, p.Title
		}
	}
	msg := "No close match among existing proposals."
	if best >= 50 {
		msg = fmt.Sprintf("Similar to existing proposal %q.", closest)
	}
	writeJSON(w, http.StatusOK, domain.Similarity{Score: float64(int(best)), Message: msg})
}

func (s *Server) findItem(ctx context.Context, id int64) (domain.GalleryItem, error) {
	items, err := s.repo.GalleryItems(ctx)
	if err != nil {
		return domain.GalleryItem{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return domain.GalleryItem{}, ErrNotFound
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	items, err := s.repo.GalleryItems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleDocent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid item_id"))
		return
	}
	item, err := s.findItem(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, mockNarration(item))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID        int64  `json:"item_id"`
		WalletAddress string `json:"wallet_address"`
		Message       string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusUnprocessableEntity, errors.New("message is required"))
		return
	}
	switch err := s.repo.AddFeedback(r.Context(), req.ItemID, req.WalletAddress, req.Message); {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": mockReply(req.Message)})
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ArtInfo  string `json:"art_info"`
		Review   string `json:"review"`
		Title    string `json:"title"`
		Audience string `json:"audience"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var text string
	switch r.PathValue("agent") {
	case "critique":
		text = mockCritique(req.ArtInfo)
	case "promotion":
		text = mockPromotion(req.Title, req.Audience)
	case "auction-report":
		text = mockAuctionReport(req.ArtInfo, req.Review)
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown agent"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
	if err == nil && len(b) > 0 {
		err = json.Unmarshal(b, dst)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
