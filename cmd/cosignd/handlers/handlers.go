/*
Package handlers implements the JSON API of cosignd.

Errors are returned as {"errors": [...]} with the response status derived
from the error kind.
*/
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/iov-one/cosign"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/x/broadcast"
	"github.com/iov-one/cosign/x/multisig"
	"github.com/iov-one/cosign/x/signing"
	"github.com/iov-one/cosign/x/txs"
)

// maxBodySize limits the size of a request body.
const maxBodySize = 1 << 20

var validate = validator.New()

// Engine groups everything the handlers operate on.
type Engine struct {
	DB          cosign.DB
	Node        cosign.Node
	Resolver    *multisig.Resolver
	Ledger      *signing.Ledger
	Coordinator *broadcast.Coordinator
	// Debug disables redaction of internal errors.
	Debug bool
}

type CreateMultisigHandler struct {
	*Engine
}

type createMultisigRequest struct {
	AddressPrefix string   `json:"address_prefix" validate:"required,lowercase,alphanum"`
	PubKeys       [][]byte `json:"pubkeys" validate:"required,min=1"`
	Threshold     int      `json:"threshold"`
	// SortKeys orders the keys by member address first.
	SortKeys bool `json:"sort_keys"`
}

func (h *CreateMultisigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req createMultisigRequest
	if !h.decode(w, r, &req) {
		return
	}
	identity, err := multisig.Create(r.Context(), h.DB, multisig.CreateRequest{
		ChainID:       mux.Vars(r)["chainId"],
		AddressPrefix: req.AddressPrefix,
		PubKeys:       req.PubKeys,
		Threshold:     req.Threshold,
		SortKeys:      req.SortKeys,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusCreated, identity)
}

type MultisigHandler struct {
	*Engine
}

func (h *MultisigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	identity, err := h.Resolver.Resolve(r.Context(), vars["chainId"], vars["address"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	members, err := identity.MemberAddresses()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusOK, struct {
		*multisig.Identity
		Members []string `json:"members"`
	}{
		Identity: identity,
		Members:  members,
	})
}

type MultisigTransactionsHandler struct {
	*Engine
}

func (h *MultisigTransactionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	records, err := txs.ListByMultisig(r.Context(), h.DB, vars["chainId"], vars["address"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	objects := make([]transaction, 0, len(records))
	for _, rec := range records {
		state, err := txs.GetState(r.Context(), h.DB, rec.ID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		objects = append(objects, transaction{ID: txs.FormatID(rec.ID), Record: rec, State: state})
	}
	JSONResp(w, http.StatusOK, struct {
		Objects []transaction `json:"objects"`
	}{
		Objects: objects,
	})
}

// transaction is the API representation of a record.
type transaction struct {
	ID string `json:"id"`
	*txs.Record
	State      *txs.State       `json:"state"`
	Signatures []*signing.Entry `json:"signatures,omitempty"`
}

type CreateTransactionHandler struct {
	*Engine
}

type createTransactionRequest struct {
	ChainID         string  `json:"chain_id" validate:"required"`
	MultisigAddress string  `json:"multisig_address" validate:"required"`
	BodyBytes       []byte  `json:"body_bytes" validate:"required"`
	Fee             txs.Fee `json:"fee"`
	AccountSequence int64   `json:"account_sequence" validate:"min=0"`
	AccountNumber   int64   `json:"account_number" validate:"min=0"`
	Memo            string  `json:"memo" validate:"max=256"`
}

func (h *CreateTransactionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := txs.Create(r.Context(), h.DB, txs.CreateRequest{
		MultisigAddress: req.MultisigAddress,
		ChainID:         req.ChainID,
		BodyBytes:       req.BodyBytes,
		Fee:             req.Fee,
		AccountSequence: req.AccountSequence,
		AccountNumber:   req.AccountNumber,
		Memo:            req.Memo,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := txs.GetState(r.Context(), h.DB, rec.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusCreated, transaction{ID: txs.FormatID(rec.ID), Record: rec, State: state})
}

type TransactionHandler struct {
	*Engine
}

func (h *TransactionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := txs.ParseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := txs.Get(r.Context(), h.DB, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := txs.GetState(r.Context(), h.DB, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.Ledger.Entries(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusOK, transaction{
		ID:         txs.FormatID(id),
		Record:     rec,
		State:      state,
		Signatures: entries,
	})
}

type SignatureHandler struct {
	*Engine
}

type signatureRequest struct {
	SignerAddress   string `json:"signer_address" validate:"required"`
	Signature       []byte `json:"signature" validate:"required"`
	SignedBodyBytes []byte `json:"signed_body_bytes" validate:"required"`
}

func (h *SignatureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := txs.ParseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req signatureRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := h.Ledger.Submit(r.Context(), id, req.SignerAddress, req.Signature, req.SignedBodyBytes)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusOK, struct {
		Count        int        `json:"count"`
		Threshold    int        `json:"threshold"`
		ThresholdMet bool       `json:"threshold_met"`
		State        *txs.State `json:"state"`
	}{
		Count:        status.Count,
		Threshold:    status.Threshold,
		ThresholdMet: status.ThresholdMet,
		State:        status.State,
	})
}

type BroadcastHandler struct {
	*Engine
}

func (h *BroadcastHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := txs.ParseID(mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	state, err := h.Coordinator.Broadcast(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusOK, state)
}

type BalanceHandler struct {
	*Engine
}

func (h *BalanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if _, _, err := cosign.ParseBech32(address); err != nil {
		h.fail(w, r, errors.Field("address", errors.ErrValidation, err.Error()))
		return
	}
	c, err := h.Node.Balance(r.Context(), address, r.URL.Query().Get("denom"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSONResp(w, http.StatusOK, c)
}

type InfoHandler struct{}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	JSONResp(w, http.StatusOK, struct {
		BuildVersion string `json:"build_version"`
	}{
		BuildVersion: cosign.Version(),
	})
}

// decode reads the JSON request body into dest and validates it. It
// writes the error response and returns false on failure.
func (e *Engine) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		e.fail(w, r, errors.Wrap(errors.ErrInput, fmt.Sprintf("cannot decode JSON body: %s", err)))
		return false
	}
	if err := validate.Struct(dest); err != nil {
		e.fail(w, r, validationErr(err))
		return false
	}
	return true
}

// validationErr converts validator errors into field errors.
func validationErr(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	var res error
	for _, fe := range verrs {
		res = errors.Append(res, errors.Field(fe.Field(), errors.ErrValidation, "failed on %q", fe.Tag()))
	}
	return res
}

// fail writes an error response. Internal errors are logged and, outside
// of debug mode, hidden from the client.
func (e *Engine) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		cosign.GetLogger(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	}
	err = errors.Redact(err, e.Debug)

	var msgs []string
	if u, ok := err.(interface{ Unpack() []error }); ok {
		for _, x := range u.Unpack() {
			msgs = append(msgs, x.Error())
		}
	} else {
		msgs = []string{err.Error()}
	}
	JSONErrs(w, code, msgs)
}

// JSONResp write content as JSON encoded response.
func JSONResp(w http.ResponseWriter, code int, content interface{}) {
	b, err := json.MarshalIndent(content, "", "\t")
	if err != nil {
		code = http.StatusInternalServerError
		b = []byte(`{"errors":["Internal Server Error"]}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

// JSONErr write single error as JSON encoded response.
func JSONErr(w http.ResponseWriter, code int, errText string) {
	JSONErrs(w, code, []string{errText})
}

// JSONErrs write multiple errors as JSON encoded response.
func JSONErrs(w http.ResponseWriter, code int, errs []string) {
	resp := struct {
		Errors []string `json:"errors"`
	}{
		Errors: errs,
	}
	JSONResp(w, code, resp)
}
