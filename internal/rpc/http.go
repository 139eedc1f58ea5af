package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go.klb.dev/clipstack/internal/content"
	"go.klb.dev/clipstack/internal/history"
)

// HTTPHandler serves read-only JSON views for scripts and dashboards:
//
//	GET /status
//	GET /history?q=&kind=&collection=&pinned=&limit=
//
// Requests must carry "Authorization: Bearer <token>" when token is set.
func HTTPHandler(svc *Service, token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		resp, err := svc.Status(r.Context(), &Empty{})
		writeJSON(w, resp, err)
	})
	mux.HandleFunc("GET /history", func(w http.ResponseWriter, r *http.Request) {
		q, err := queryFromURL(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := svc.History(r.Context(), &HistoryRequest{Query: q})
		writeJSON(w, resp, err)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !checkToken(r.Header.Get("Authorization"), token) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func queryFromURL(r *http.Request) (history.Query, error) {
	v := r.URL.Query()
	q := history.Query{
		Text:       v.Get("q"),
		Collection: v.Get("collection"),
	}
	for _, raw := range v["kind"] {
		for _, s := range strings.Split(raw, ",") {
			k, err := content.ParseKind(s)
			if err != nil {
				return q, err
			}
			q.Kinds = append(q.Kinds, k)
		}
	}
	if s := v.Get("pinned"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, err
		}
		q.PinnedOnly = b
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		q.Limit = n
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, v any, err error) {
	if err != nil {
		http.Error(w, err.Error(), httpStatus(status.Code(toStatus(err))))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("http response write failed", "err", err)
	}
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument, codes.FailedPrecondition:
		return http.StatusBadRequest
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.Unavailable, codes.Unimplemented:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
