package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/booking-service/internal/domain"
	"github.com/prperemyshlev/booking-service/internal/dto"
	"github.com/prperemyshlev/booking-service/internal/service"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	principal *domain.Principal
	err       error
	user      *domain.User
}

func (f *fakeAuth) Authenticate(_ context.Context, header string) (*domain.Principal, error) {
	if header == "" {
		return nil, nil
	}
	return f.principal, f.err
}

func (f *fakeAuth) GetUser(_ context.Context, _ string) (*domain.User, error) {
	if f.user == nil {
		return nil, domain.ErrNotFound
	}
	return f.user, nil
}

// fakeReservations records the last call and returns canned results
type fakeReservations struct {
	service.ReservationService

	quoteReq   service.QuoteRequest
	createReq  service.CreateReservationRequest
	status     domain.ReservationStatus
	listStatus *domain.ReservationStatus
	from, to   *time.Time

	quote       *service.QuoteResult
	reservation *domain.Reservation
	update      *service.StatusUpdate
	summary     *service.EarningsSummary
	err         error
}

func (f *fakeReservations) Quote(_ context.Context, req service.QuoteRequest) (*service.QuoteResult, error) {
	f.quoteReq = req
	return f.quote, f.err
}

func (f *fakeReservations) Create(_ context.Context, _ *domain.Principal, req service.CreateReservationRequest) (*domain.Reservation, error) {
	f.createReq = req
	return f.reservation, f.err
}

func (f *fakeReservations) UpdateStatus(_ context.Context, _ *domain.Principal, _ string, status domain.ReservationStatus) (*service.StatusUpdate, error) {
	f.status = status
	return f.update, f.err
}

func (f *fakeReservations) ListForHost(_ context.Context, _ *domain.Principal, status *domain.ReservationStatus) ([]*domain.Reservation, error) {
	f.listStatus = status
	return []*domain.Reservation{}, f.err
}

func (f *fakeReservations) ListEarnings(_ context.Context, _ *domain.Principal, from, to *time.Time) (*service.EarningsSummary, error) {
	f.from, f.to = from, to
	return f.summary, f.err
}

// withPrincipal injects a principal the way AuthMiddleware does
func withPrincipal(p *domain.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

func perform(t *testing.T, router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		var err error
		payload, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
