package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/iov-one/cosign"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendermint/tendermint/libs/log"
)

// NewRouter returns the handler of the whole API.
func NewRouter(e *Engine, logger log.Logger) http.Handler {
	rt := mux.NewRouter()
	rt.Handle("/info", &InfoHandler{}).Methods("GET")
	rt.Handle("/metrics", promhttp.Handler()).Methods("GET")

	rt.Handle("/chain/{chainId}/multisig", &CreateMultisigHandler{e}).Methods("POST")
	rt.Handle("/chain/{chainId}/multisig/{address}", &MultisigHandler{e}).Methods("GET")
	rt.Handle("/chain/{chainId}/multisig/{address}/transactions", &MultisigTransactionsHandler{e}).Methods("GET")

	rt.Handle("/transaction", &CreateTransactionHandler{e}).Methods("POST")
	rt.Handle("/transaction/{id:[0-9]+}", &TransactionHandler{e}).Methods("GET")
	rt.Handle("/transaction/{id:[0-9]+}/signature", &SignatureHandler{e}).Methods("POST")
	rt.Handle("/transaction/{id:[0-9]+}/broadcast", &BroadcastHandler{e}).Methods("POST")

	rt.Handle("/account/{address}/balance", &BalanceHandler{e}).Methods("GET")

	rt.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		JSONErr(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})
	rt.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		JSONErr(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})
	rt.Use(withLogger(logger))
	return rt
}

// withLogger attaches a request scoped logger to the request context.
func withLogger(logger log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := cosign.WithLogger(r.Context(), logger.With("method", r.Method, "path", r.URL.Path))
			next.ServeHTTP(w, r.WithContext(ctx))
			cosign.GetLogger(ctx).Debug("request served", "took", time.Since(start))
		})
	}
}
