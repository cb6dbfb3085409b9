// Package api implements the directory HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/msigvault/msig/directory"
	"github.com/msigvault/msig/log"
	"github.com/msigvault/msig/metrics"
	store "github.com/msigvault/msig/storage/directory"
)

const (
	moduleName = "api"

	maxBodyBytes = 1 << 20
)

// Store is the directory storage the API serves. *storage/directory.Store
// implements it.
type Store interface {
	Lookup(ctx context.Context, wallet string) ([]store.Multisig, error)
	Record(ctx context.Context, id string, members []string) error
}

// DirectoryAPI serves wallet -> multisig lookups and registrations.
type DirectoryAPI struct {
	store   Store
	logger  *log.Logger
	metrics metrics.RequestMetrics
}

func NewDirectoryAPI(s Store, logger *log.Logger) *DirectoryAPI {
	return &DirectoryAPI{
		store:   s,
		logger:  logger.WithModule(moduleName),
		metrics: metrics.NewDefaultRequestMetrics(moduleName),
	}
}

// Router returns the HTTP handler of the API with all middlewares installed.
func (a *DirectoryAPI) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware(a.metrics, a.logger))
	r.Use(CorsMiddleware(allowedOrigins))
	r.Use(middleware.Recoverer)

	r.Get("/", a.missingWallet)
	r.Get("/{walletAddress}", a.GetMultisigs)
	r.Post("/multisig", a.PostMultisig)
	return r
}

func (a *DirectoryAPI) fail(w http.ResponseWriter, r *http.Request, err error) {
	if HttpCodeForError(err) == http.StatusInternalServerError {
		a.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	JsonErrorHandler(w, err)
}

func (a *DirectoryAPI) missingWallet(w http.ResponseWriter, r *http.Request) {
	a.fail(w, r, badRequest("Wallet address is required"))
}

// GetMultisigs answers GET /{walletAddress} with the rows containing the wallet.
func (a *DirectoryAPI) GetMultisigs(w http.ResponseWriter, r *http.Request) {
	wallet := strings.TrimSpace(chi.URLParam(r, "walletAddress"))
	if wallet == "" {
		a.missingWallet(w, r)
		return
	}
	rows, err := a.store.Lookup(r.Context(), wallet)
	if err != nil {
		a.fail(w, r, ErrStorageError{err})
		return
	}
	if len(rows) == 0 {
		a.fail(w, r, ErrNotFound)
		return
	}
	records := make([]directory.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, directory.Record{ID: row.ID, Members: row.Members})
	}
	writeJSON(w, http.StatusOK, records)
}

type registerBody struct {
	MultisigID string          `json:"multisigId"`
	Members    json.RawMessage `json:"members"`
}

// PostMultisig answers POST /multisig by upserting the multisig's members.
func (a *DirectoryAPI) PostMultisig(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		a.fail(w, r, badRequest("Invalid JSON body"))
		return
	}
	if strings.TrimSpace(body.MultisigID) == "" {
		a.fail(w, r, badRequest("multisigId is required"))
		return
	}
	members, err := parseMembers(body.Members)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.store.Record(r.Context(), body.MultisigID, members); err != nil {
		if errors.Is(err, store.ErrInvalid) {
			a.fail(w, r, badRequest(err.Error()))
			return
		}
		a.fail(w, r, ErrStorageError{err})
		return
	}
	writeJSON(w, http.StatusOK, directory.MessageResponse{Message: directory.MsgRegistered})
}

func parseMembers(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, badRequest("members must be an array")
	}
	var members []string
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, badRequest("members must be an array of addresses")
	}
	return members, nil
}
