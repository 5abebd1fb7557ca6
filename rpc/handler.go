package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/guardian/guardian"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	chain   *guardian.ChainStore
	reg     *guardian.Registry
	tracker *guardian.TxTracker
	chainID string // configured chain_id; stored only, no method checks it
	submit  func(tx *guardian.Transaction) error
}

// NewHandler creates an RPC Handler.
func NewHandler(chain *guardian.ChainStore, reg *guardian.Registry, tracker *guardian.TxTracker, chainID string, submit func(tx *guardian.Transaction) error) *Handler {
	return &Handler{chain: chain, reg: reg, tracker: tracker, chainID: chainID, submit: submit}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return h.getBlockHeight(req)

	case "getBlock":
		return h.getBlock(req)

	case "getOpinion":
		return h.getOpinion(req)

	case "getGuardian":
		return h.getGuardian(req)

	case "getTxStatus":
		return h.getTxStatus(req)

	case "sendTx":
		return h.sendTx(req)

	case "getOwnIndex":
		return okResponse(req.ID, h.reg.OwnIndex)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

func (h *Handler) getBlockHeight(req Request) Response {
	n, err := h.chain.Blocks.Len()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, n-1)
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Height int64 `json:"height"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	blk, ok, err := h.chain.Blocks.At(params.Height)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if !ok {
		return errResponse(req.ID, CodeInternalError, "no block at that height")
	}
	return okResponse(req.ID, blk)
}

func (h *Handler) getOpinion(req Request) Response {
	var params struct {
		Index uint32 `json:"index"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	op, ok := h.reg.Opinions[params.Index]
	if !ok {
		return errResponse(req.ID, CodeInternalError, "no opinion for that guardian index")
	}
	return okResponse(req.ID, op)
}

func (h *Handler) getGuardian(req Request) Response {
	var params struct {
		Index uint32 `json:"index"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	addr, ok := h.reg.Addresses[params.Index]
	if !ok {
		return errResponse(req.ID, CodeInternalError, "unknown guardian index")
	}
	return okResponse(req.ID, map[string]any{"index": params.Index, "address": addr})
}

func (h *Handler) getTxStatus(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	status, err := h.tracker.Status(params.ID)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if status == "" {
		return errResponse(req.ID, CodeInternalError, "unknown transaction")
	}
	return okResponse(req.ID, map[string]string{"id": params.ID, "status": status})
}

func (h *Handler) sendTx(req Request) Response {
	var tx guardian.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	if err := h.submit(&tx); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}
