package main

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/jonwraymond/workerhealth/revocation"
)

const maxChainSize = 1 << 20

// revocationHandler checks a PEM chain (leaf first) posted in the body.
func revocationHandler(checker *revocation.Checker, cfg revocation.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxChainSize))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		chain, err := revocation.ParseChainPEM(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result := checker.VerifyCertificate(r.Context(), chain, cfg)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	}
}
