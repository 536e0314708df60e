package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"messagely/internal/common"
	"messagely/internal/identity"
	"messagely/internal/ledger"
	"messagely/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

type parsers struct {
	registerPool      fastjson.ParserPool
	loginPool         fastjson.ParserPool
	createMessagePool fastjson.ParserPool
	tokenPool         fastjson.ParserPool
}

type handler struct {
	logger   *zap.SugaredLogger
	identity *identity.Service
	sessions *session.Issuer
	ledger   *ledger.Ledger
	store    Pinger
	parsers  parsers
}

type tokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// stringField returns a non-empty string field of v
func stringField(v *fastjson.Value, name string) (string, error) {
	if !v.Exists(name) {
		return "", fmt.Errorf("Missing Field %q: %w", name, common.ErrValidation)
	}

	b, err := v.Get(name).StringBytes()
	if err != nil {
		return "", fmt.Errorf("Field %q must be a string: %w", name, common.ErrValidation)
	}

	if len(b) == 0 {
		return "", fmt.Errorf("Field %q must have non-zero length: %w", name, common.ErrValidation)
	}

	return string(b), nil
}

func parseBody(r *http.Request, pool *fastjson.ParserPool, f func(v *fastjson.Value) error) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}

	parser := pool.Get()
	defer pool.Put(parser)

	v, err := parser.ParseBytes(body)
	if err != nil {
		return fmt.Errorf("Malformed JSON: %w", common.ErrValidation)
	}

	return f(v)
}

// health handles HTTP requests on "/health" endpoint
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Errorw("Health check failed", append(requestFields(r), "error", err)...)
		respondMessage(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// register handles HTTP requests on "/auth/register" endpoint
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var reg identity.Registration
	err := parseBody(r, &h.parsers.registerPool, func(v *fastjson.Value) error {
		var err error
		if reg.Username, err = stringField(v, "username"); err != nil {
			return err
		}
		if reg.Password, err = stringField(v, "password"); err != nil {
			return err
		}
		if reg.FirstName, err = stringField(v, "first_name"); err != nil {
			return err
		}
		if reg.LastName, err = stringField(v, "last_name"); err != nil {
			return err
		}
		reg.Phone, err = stringField(v, "phone")
		return err
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	u, err := h.identity.Register(r.Context(), reg)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	token, err := h.sessions.Issue(u.Username)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("h.sessions.Issue: %w", err))
		return
	}

	respondJSON(w, http.StatusCreated, tokenResponse{Token: token, Message: "Successfully registered"})
}

// login handles HTTP requests on "/auth/login" endpoint
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var username, password string
	err := parseBody(r, &h.parsers.loginPool, func(v *fastjson.Value) error {
		var err error
		if username, err = stringField(v, "username"); err != nil {
			return err
		}
		password, err = stringField(v, "password")
		return err
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.identity.Login(r.Context(), username, password); err != nil {
		h.respondError(w, r, err)
		return
	}

	token, err := h.sessions.Issue(username)
	if err != nil {
		h.respondError(w, r, fmt.Errorf("h.sessions.Issue: %w", err))
		return
	}

	respondJSON(w, http.StatusOK, tokenResponse{Token: token, Message: "Successfully logged in"})
}

// listUsers handles HTTP requests on "/users" endpoint
func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.identity.All(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// getUser handles HTTP requests on "/users/{username}" endpoint
func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.identity.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"user": u})
}

// messagesTo handles HTTP requests on "/users/{username}/to" endpoint
func (h *handler) messagesTo(w http.ResponseWriter, r *http.Request) {
	messages, err := h.ledger.MessagesTo(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// messagesFrom handles HTTP requests on "/users/{username}/from" endpoint
func (h *handler) messagesFrom(w http.ResponseWriter, r *http.Request) {
	messages, err := h.ledger.MessagesFrom(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func messageID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("Message id must be a positive integer: %w", common.ErrValidation)
	}
	return id, nil
}

// getMessage handles HTTP requests on "/messages/{id}" endpoint
func (h *handler) getMessage(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	caller, _ := callerFromContext(r.Context())
	m, err := h.ledger.Get(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"message": m})
}

// createMessage handles HTTP requests on "/messages" endpoint
func (h *handler) createMessage(w http.ResponseWriter, r *http.Request) {
	var to, body string
	err := parseBody(r, &h.parsers.createMessagePool, func(v *fastjson.Value) error {
		var err error
		if to, err = stringField(v, "to_username"); err != nil {
			return err
		}
		body, err = stringField(v, "body")
		return err
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	caller, _ := callerFromContext(r.Context())
	m, err := h.ledger.Create(r.Context(), caller, to, body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"message": m})
}

// markRead handles HTTP requests on "/messages/{id}/read" endpoint
func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	caller, _ := callerFromContext(r.Context())
	receipt, err := h.ledger.MarkRead(r.Context(), caller, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"message": receipt})
}
