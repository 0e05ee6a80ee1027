package authenticator

import (
	"encoding/json"
	"net/http"
)

// Outcome is the transport-level result of the pipeline for one request.
// The zero value means "proceed to the application handler".
type Outcome struct {
	// Status is the HTTP status to write. 0 means proceed.
	Status int

	// Redirect, when non-empty, redirects the user agent.
	Redirect string

	// Body, when non-nil, is JSON-encoded into the response.
	Body any
}

// Proceed reports whether the request should continue to the application
// handler.
func (o Outcome) Proceed() bool {
	return o.Status == 0 && o.Redirect == "" && o.Body == nil
}

// RedirectOutcome sends the user agent to the given URL.
func RedirectOutcome(url string) Outcome {
	return Outcome{Status: http.StatusSeeOther, Redirect: url}
}

// JSONOutcome responds with a JSON body and status.
func JSONOutcome(status int, body any) Outcome {
	return Outcome{Status: status, Body: body}
}

// ForbiddenOutcome is the authorization-failure outcome: the caller is
// authenticated but lacks the required role. Distinct from "please log
// in".
func ForbiddenOutcome() Outcome {
	return JSONOutcome(http.StatusForbidden, map[string]string{"type": "forbidden"})
}

// Write applies the outcome to the response. A proceed outcome writes
// nothing.
func (o Outcome) Write(w http.ResponseWriter, r *http.Request) {
	if o.Proceed() {
		return
	}
	if o.Redirect != "" {
		status := o.Status
		if status == 0 {
			status = http.StatusSeeOther
		}
		http.Redirect(w, r, o.Redirect, status)
		return
	}
	if o.Body != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(o.Status)
		_ = json.NewEncoder(w).Encode(o.Body)
		return
	}
	w.WriteHeader(o.Status)
}
