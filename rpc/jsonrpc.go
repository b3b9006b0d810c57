package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/safwentrabelsi/civilchain-server/types"
	log "github.com/sirupsen/logrus"
)

// JSON-RPC error codes.
const (
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

var (
	errMethodNotFound   = errors.New("method not found")
	errNotEnoughParams  = fmt.Errorf("%w: not enough params to decode", types.ErrValidation)
	errInvalidRequestID = fmt.Errorf("%w: request id must be a non-negative integer", types.ErrValidation)
)

// handleRequest decodes a JSON-RPC request and runs the method on the page controllers.
func (s *CivilService) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req types.JSONRPCRequest
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("Failed to read request body: ", err)
		writeJSONRPCError(w, req.ID, codeInvalidRequest, "invalid request body")
		return
	}

	decoder := json.NewDecoder(bytes.NewReader(bodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		log.Error("Failed to decode request body: ", err)
		writeJSONRPCError(w, req.ID, codeInvalidRequest, "invalid json request")
		return
	}

	logger := log.WithField("method", req.Method)
	logger.Debug("Handling JSON-RPC request")

	result, err := s.dispatch(r.Context(), req)
	if err != nil {
		code, message := errorResponse(err)
		logger.WithField("code", code).Debug("JSON-RPC request failed: ", err)
		writeJSONRPCError(w, req.ID, code, message)
		return
	}
	writeJSONRPCResult(w, req.ID, result)
}

func (s *CivilService) dispatch(ctx context.Context, req types.JSONRPCRequest) (interface{}, error) {
	params := req.Params

	switch req.Method {
	case "civil_connect":
		if err := s.pages.Citizen.Connect(ctx); err != nil {
			return nil, err
		}
		return s.pages.Citizen.View(), nil

	case "civil_listRequests":
		// Absent params clear the search and the toggle, so each call stands alone.
		query, _, err := optionalString(params, 0)
		if err != nil {
			return nil, err
		}
		mine, _, err := optionalBool(params, 1)
		if err != nil {
			return nil, err
		}
		if err := s.pages.Public.Load(ctx); err != nil {
			return nil, err
		}
		s.pages.Public.SetQuery(query)
		// A refused wallet leaves the toggle off, the view notice says why.
		if err := s.pages.Public.SetOnlyMine(ctx, mine); err != nil {
			log.Debug("Only mine filter not applied: ", err)
		}
		return s.pages.Public.View(), nil

	case "civil_myRequests":
		if err := s.pages.Citizen.Load(ctx); err != nil {
			return nil, err
		}
		return s.pages.Citizen.View(), nil

	case "civil_submitRequest":
		serviceType, err := stringParam(params, 0)
		if err != nil {
			return nil, err
		}
		if err := s.pages.Citizen.Submit(ctx, serviceType); err != nil {
			return nil, err
		}
		return s.pages.Citizen.View(), nil

	case "civil_reviewRequests":
		filter, hasFilter, err := optionalString(params, 0)
		if err != nil {
			return nil, err
		}
		if hasFilter {
			if err := s.pages.Officer.SetFilter(filter); err != nil {
				return nil, err
			}
		}
		if err := s.pages.Officer.Load(ctx); err != nil {
			return nil, err
		}
		return s.pages.Officer.View(), nil

	case "civil_approve":
		id, err := idParam(params, 0)
		if err != nil {
			return nil, err
		}
		if err := s.pages.Officer.Approve(ctx, id); err != nil {
			return nil, err
		}
		return s.pages.Officer.View(), nil

	case "civil_reject":
		id, err := idParam(params, 0)
		if err != nil {
			return nil, err
		}
		reason, err := stringParam(params, 1)
		if err != nil {
			return nil, err
		}
		if err := s.pages.Officer.Reject(ctx, id, reason); err != nil {
			return nil, err
		}
		return s.pages.Officer.View(), nil

	case "civil_transaction":
		if len(params) == 0 {
			return nil, errNotEnoughParams
		}
		if err := isValidTxHash(params[0]); err != nil {
			return nil, err
		}
		view, err := s.pages.Detail.Load(ctx, params[0].(string))
		if err != nil {
			return nil, err
		}
		return view.Detail, nil

	case "civil_serviceTypes":
		return types.ServiceTypes, nil

	default:
		return nil, fmt.Errorf("%w: %s", errMethodNotFound, req.Method)
	}
}

// errorResponse maps an error kind to a JSON-RPC code and the message shown to the caller.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, errMethodNotFound):
		return codeMethodNotFound, err.Error()
	case errors.Is(err, types.ErrValidation):
		return codeInvalidParams, "invalid params: " + types.UserMessage(err)
	default:
		return codeServerError, types.UserMessage(err)
	}
}

func stringParam(params []interface{}, i int) (string, error) {
	if len(params) <= i {
		return "", errNotEnoughParams
	}
	s, ok := params[i].(string)
	if !ok {
		return "", fmt.Errorf("%w: param %d is not a string", types.ErrValidation, i)
	}
	return s, nil
}

// optionalString reads params[i] when present and not null.
func optionalString(params []interface{}, i int) (string, bool, error) {
	if len(params) <= i || params[i] == nil {
		return "", false, nil
	}
	s, err := stringParam(params, i)
	return s, err == nil, err
}

func optionalBool(params []interface{}, i int) (bool, bool, error) {
	if len(params) <= i || params[i] == nil {
		return false, false, nil
	}
	b, ok := params[i].(bool)
	if !ok {
		return false, false, fmt.Errorf("%w: param %d is not a boolean", types.ErrValidation, i)
	}
	return b, true, nil
}

// idParam accepts a JSON number or a decimal string.
func idParam(params []interface{}, i int) (uint64, error) {
	if len(params) <= i {
		return 0, errNotEnoughParams
	}
	var raw string
	switch v := params[i].(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = v
	default:
		return 0, errInvalidRequestID
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errInvalidRequestID
	}
	return id, nil
}

// isValidTxHash validates if the provided transaction hash is valid.
func isValidTxHash(param interface{}) error {
	hashStr, ok := param.(string)
	if !ok {
		return fmt.Errorf("%w: the param is not a string", types.ErrValidation)
	}

	if len(hashStr) != 66 || hashStr[:2] != "0x" {
		return fmt.Errorf("%w: invalid transaction hash", types.ErrValidation)
	}

	if _, err := hexutil.Decode(hashStr); err != nil {
		return fmt.Errorf("%w: invalid transaction hash: %v", types.ErrValidation, err)
	}
	return nil
}
