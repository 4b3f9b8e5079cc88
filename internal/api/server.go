package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fastprodman/referearn/internal/services/rewards"
)

// NewServer creates and returns a configured *http.Server for the rewards API.
func NewServer(port uint16, svc *rewards.Service, channels []string) *http.Server {
	mux := NewRouter(svc, channels)

	addr := fmt.Sprintf(":%d", port)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
