package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type AuthService interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type GenericResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Server struct {
	logger zerolog.Logger
	svc    AuthService
	*http.Server
}

type Config struct {
	Logger      *zerolog.Logger
	AuthService AuthService
	ListenAddr  string
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger: cfg.Logger.With().Str("component", "api-server").Logger(),
		svc:    cfg.AuthService,
	}

	r := http.NewServeMux()
	r.HandleFunc("POST /register", srv.register)
	r.HandleFunc("POST /login", srv.login)
	r.HandleFunc("OPTIONS /", corsHandler)

	srv.Server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}
	return srv
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusNoContent)
}

func readCredentials(r *http.Request) (CredentialsRequest, bool) {
	var creds CredentialsRequest
	body, _ := io.ReadAll(r.Body)
	defer func() {
		_ = r.Body.Close()
	}()
	if err := json.Unmarshal(body, &creds); err != nil {
		return creds, false
	}
	return creds, true
}

func (srv *Server) register(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	creds, ok := readCredentials(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	srv.logger.Trace().Str("username", creds.Username).Msg("got register request")

	if err := srv.svc.Register(r.Context(), creds.Username, creds.Password); err != nil {
		writeJSON(w, http.StatusBadRequest, &GenericResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, &GenericResponse{Message: "user created successfully"})
}

func (srv *Server) login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	creds, ok := readCredentials(r)
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	srv.logger.Trace().Str("username", creds.Username).Msg("got login request")

	token, err := srv.svc.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, &GenericResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, &LoginResponse{Token: token, Username: creds.Username})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err = w.Write(b); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
