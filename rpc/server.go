package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/safwentrabelsi/civilchain-server/controller"
	"github.com/safwentrabelsi/civilchain-server/types"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

// Pages groups the controllers behind the HTML pages and the JSON-RPC methods.
// The controllers are shared, so every client sees the same page state.
type Pages struct {
	Public  *controller.Public
	Citizen *controller.Citizen
	Officer *controller.Officer
	Detail  *controller.Detail
}

// CivilService serves the pages and the JSON-RPC endpoint on top of the controllers.
type CivilService struct {
	pages    Pages
	explorer string
}

// NewCivilService creates the service. explorerURL is used for transaction links.
func NewCivilService(pages Pages, explorerURL string) *CivilService {
	return &CivilService{pages: pages, explorer: explorerURL}
}

// Router registers every route of the service.
func (s *CivilService) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return recoverPanic(next.ServeHTTP)
	})

	r.HandleFunc("/", s.handlePublic).Methods(http.MethodGet)
	r.HandleFunc("/citizen", s.handleCitizen).Methods(http.MethodGet)
	r.HandleFunc("/citizen/connect", s.handleCitizenConnect).Methods(http.MethodPost)
	r.HandleFunc("/citizen/requests", s.handleSubmitRequest).Methods(http.MethodPost)
	r.HandleFunc("/gov", s.handleGov).Methods(http.MethodGet)
	r.HandleFunc("/gov/connect", s.handleGovConnect).Methods(http.MethodPost)
	r.HandleFunc("/gov/requests/{id:[0-9]+}/approve", s.handleApprove).Methods(http.MethodPost)
	r.HandleFunc("/gov/requests/{id:[0-9]+}/reject", s.handleReject).Methods(http.MethodPost)
	r.HandleFunc("/rpc", s.handleRequest).Methods(http.MethodPost)
	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/{txHash:0x[0-9a-fA-F]{64}}", s.handleDetail).Methods(http.MethodGet)
	return r
}

// StartServer serves handler on addr until ctx is cancelled.
func StartServer(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut the server down: ", err)
		}
	}()

	log.Info("Starting server on :", addr)
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Failed to start server: ", err)
		return err
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeJSONRPCResult writes a successful JSON-RPC response.
func writeJSONRPCResult(w http.ResponseWriter, id interface{}, result interface{}) {
	res := types.JSONRPCResponse{
		Jsonrpc: "2.0",
		ID:      id,
		Result:  result,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// writeJSONRPCError writes a JSON-RPC error response. The HTTP status stays 200.
func writeJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	res := types.JSONRPCResponse{
		Jsonrpc: "2.0",
		ID:      id,
		Error: &types.JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// Recover panic middleware.
func recoverPanic(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Errorf("panic: %+v", err)
				// The request id is not known here.
				writeJSONRPCError(w, nil, codeServerError, "server error")
			}
		}()

		next(w, r)
	}
}
