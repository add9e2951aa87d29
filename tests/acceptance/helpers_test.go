package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/prperemyshlev/booking-service/internal/dto"
)

// do sends a JSON request and decodes the response into out when out is non-nil
func (s *Suite) do(method, path, token string, body any, out any, headers ...string) int {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.BaseURL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// me resolves the token's subject into a local user
func (s *Suite) me(token string) dto.UserResponse {
	var user dto.UserResponse
	status := s.do(http.MethodGet, "/api/v1/auth/me", token, nil, &user)
	s.Require().Equal(http.StatusOK, status)
	return user
}

// seedProperty inserts a nightly property owned by hostID
func (s *Suite) seedProperty(hostID, pricePerNight string) string {
	id := uuid.NewString()
	_, err := s.Postgres.DB.ExecContext(context.Background(), `
		INSERT INTO properties (id, host_id, title, price_per_night, max_guests)
		VALUES ($1, $2, $3, $4, $5)`,
		id, hostID, "Cabin by the lake", pricePerNight, 4,
	)
	s.Require().NoError(err)
	return id
}

// seedHourlyProperty inserts a property bookable by the hour between 09:00 and 18:00
func (s *Suite) seedHourlyProperty(hostID, pricePerNight, pricePerHour string) string {
	id := uuid.NewString()
	_, err := s.Postgres.DB.ExecContext(context.Background(), `
		INSERT INTO properties (id, host_id, title, price_per_night, price_per_hour, is_hourly_booking,
		                        available_hours_start, available_hours_end, max_guests)
		VALUES ($1, $2, $3, $4, $5, TRUE, '09:00', '18:00', $6)`,
		id, hostID, "Studio downtown", pricePerNight, pricePerHour, 2,
	)
	s.Require().NoError(err)
	return id
}

func (s *Suite) countRows(table string) int {
	var n int
	err := s.Postgres.DB.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n)
	s.Require().NoError(err)
	return n
}
