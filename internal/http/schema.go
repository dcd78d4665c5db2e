package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	addItemSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["product_id"],
		"properties": {
			"product_id": {"type": "string", "minLength": 1, "maxLength": 64}
		}
	}`)

	beginCheckoutSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"properties": {
			"payment_method": {"enum": ["card", "cod"]}
		}
	}`)

	completeCheckoutSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["shipping"],
		"properties": {
			"confirmation_token": {"type": "string", "maxLength": 255},
			"email":              {"type": "string", "maxLength": 254},
			"shipping": {
				"type": "object",
				"properties": {
					"name":        {"type": "string", "maxLength": 200},
					"address":     {"type": "string", "maxLength": 500},
					"postal_code": {"type": "string", "maxLength": 20},
					"phone":       {"type": "string", "maxLength": 32}
				}
			}
		}
	}`)

	updateStatusSchema = gojsonschema.NewStringLoader(`{
		"type": "object",
		"required": ["status"],
		"properties": {
			"status": {"type": "string"}
		}
	}`)
)

// decodeJSON validates the body against schema before decoding it into dst. It writes the
// error response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, req *http.Request, schema gojsonschema.JSONLoader, dst any) bool {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "invalid_request", "request body too large")
		return false
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "request does not match schema",
			Code:    "invalid_request",
			Details: strings.Join(details, "; "),
		})
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}
