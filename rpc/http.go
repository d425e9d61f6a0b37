package rpc

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agora/native/marketplace"
	"agora/observability/metrics"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "AGORA_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeValidation     = -32030
	codeNotFound       = -32031
	codeStateConflict  = -32032
	codeForbidden      = -32033
)

// Server exposes the settlement engine's call surface as JSON-RPC 2.0. When
// AGORA_RPC_TOKEN is set, mutating methods require the matching bearer token;
// read methods stay open.
type Server struct {
	engine    *marketplace.Engine
	log       *slog.Logger
	authToken string
	metrics   *metrics.RPCMetrics
	httpSrv   *http.Server
}

// NewServer wires an RPC server around the supplied engine.
func NewServer(engine *marketplace.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		log:       logger,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
		metrics:   metrics.RPC(),
	}
}

// Handler returns the HTTP handler serving the RPC endpoint and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves requests on addr until Stop is called or the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting JSON-RPC server", "addr", addr)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts the server down, draining in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// engineError maps the engine's error taxonomy onto JSON-RPC codes.
func engineError(err error) *RPCError {
	switch marketplace.KindOf(err) {
	case marketplace.KindValidation:
		return &RPCError{Code: codeValidation, Message: err.Error()}
	case marketplace.KindNotFound:
		return &RPCError{Code: codeNotFound, Message: err.Error()}
	case marketplace.KindStateConflict:
		return &RPCError{Code: codeStateConflict, Message: err.Error()}
	case marketplace.KindAuthorization:
		return &RPCError{Code: codeForbidden, Message: err.Error()}
	default:
		return &RPCError{Code: codeServerError, Message: err.Error()}
	}
}

func isMutatingMethod(method string) bool {
	switch method {
	case "market_createListing", "market_stake", "market_love", "market_deactivate",
		"market_grantAccess", "market_revokeGrant":
		return true
	}
	return false
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}

	s.metrics.ObserveRequest(req.Method)

	if isMutatingMethod(req.Method) && !s.authorized(r) {
		s.metrics.ObserveError(req.Method, strconv.Itoa(codeUnauthorized))
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token", nil)
		return
	}

	result, rpcErr := s.dispatch(req)
	if rpcErr != nil {
		s.metrics.ObserveError(req.Method, strconv.Itoa(rpcErr.Code))
		s.log.Warn("rpc request failed", "method", req.Method, "code", rpcErr.Code, "err", rpcErr.Message)
		writeError(w, statusForCode(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func statusForCode(code int) int {
	switch code {
	case codeMethodNotFound:
		return http.StatusNotFound
	case codeUnauthorized:
		return http.StatusUnauthorized
	case codeForbidden:
		return http.StatusForbidden
	case codeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) dispatch(req *RPCRequest) (interface{}, *RPCError) {
	switch req.Method {
	case "market_createListing":
		return s.handleCreateListing(req)
	case "market_stake":
		return s.handleStake(req)
	case "market_love":
		return s.handleLove(req)
	case "market_deactivate":
		return s.handleDeactivate(req)
	case "market_grantAccess":
		return s.handleGrantAccess(req)
	case "market_revokeGrant":
		return s.handleRevokeGrant(req)
	case "market_getListing":
		return s.handleGetListing(req)
	case "market_getCreatorTier":
		return s.handleGetCreatorTier(req)
	case "market_hasAccess":
		return s.handleHasAccess(req)
	case "market_rankedListings":
		return s.handleRankedListings(req)
	case "market_listEvents":
		return s.handleListEvents(req)
	default:
		return nil, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}
