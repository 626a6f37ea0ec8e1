package apiresp

import (
	"encoding/json"
	"net/http"

	"examportal/internal/app/apperr"
)

// ErrorBody is the wire shape for every non-2xx response. Code mirrors
// the apperr kind so clients can branch without parsing the message.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v verbatim. Success payloads are the affected records
// themselves, not an envelope.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError derives the status from the error's kind.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	WriteJSON(w, apperr.HTTPStatus(kind), ErrorBody{
		Error: apperr.Message(err),
		Code:  string(kind),
	})
}

func WriteErrorKind(w http.ResponseWriter, kind apperr.Kind, msg string) {
	WriteJSON(w, apperr.HTTPStatus(kind), ErrorBody{Error: msg, Code: string(kind)})
}
