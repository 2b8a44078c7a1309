package trakteer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/donation-bot/internal/config"
)

func TestClient_LastTransaction(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		expectedErr error
		wantErr     bool
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{"status":"success","status_code":200,"result":{"data":[
				{"supporter_name":"Andi","support_message":"wa 081234567890","quantity":1,"amount":50000,"unit_name":"Kopi","updated_at":"2024-05-10 12:00:00"}
			]},"message":"OK"}`,
			wantMessage: "wa 081234567890",
		},
		{
			name:        "empty list",
			status:      http.StatusOK,
			body:        `{"status":"success","status_code":200,"result":{"data":[]}}`,
			expectedErr: ErrNoTransactions,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"message":"Unauthenticated."}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/public/supports", r.URL.Path)
				assert.Equal(t, "secret-key", r.Header.Get("key"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(config.Trakteer{APIURL: srv.URL + "/v1/public", APIKey: "secret-key"})
			tx, err := c.LastTransaction(context.Background())

			switch {
			case tt.expectedErr != nil:
				assert.ErrorIs(t, err, tt.expectedErr)
			case tt.wantErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantMessage, tx.SupportMessage)
				assert.Equal(t, int64(50000), tx.Amount)
			}
		})
	}
}
