package request

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"

	"onlinemon/pkg/requestcontext"
)

func TestMiddleware(t *testing.T) {
	var id string
	var now time.Time
	h := middleware.RequestID(Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		id = GetRequestID(r.Context())
		now = requestcontext.Now(r.Context())
	})))

	before := time.Now()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.NotEmpty(t, id)
	assert.False(t, now.Before(before))
}
