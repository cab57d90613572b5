package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	session "github.com/clubport/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayLoginDecodesSuccessShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/login", r.URL.Path)
		require.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "a@x.com", payload["email"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "tok123",
			"user": map[string]any{
				"user_id":    1,
				"first_name": "A",
				"is_active":  true,
				"status":     "allowed",
			},
		})
	}))
	defer srv.Close()

	gw := session.NewHTTPGateway(srv.URL)
	resp, err := gw.Login(context.Background(), "a@x.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok123", resp.AccessToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, int64(1), resp.User.ID)
	assert.True(t, resp.User.Active)
}

func TestGatewayLoginPassesBackendMessageThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "wrong email or password"})
	}))
	defer srv.Close()

	gw := session.NewHTTPGateway(srv.URL)
	_, err := gw.Login(context.Background(), "a@x.com", "bad")
	require.Error(t, err)
	assert.True(t, session.IsCredentialError(err))
	assert.Contains(t, err.Error(), "wrong email or password")

	status, ok := session.HTTPStatus(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGatewayPlainTextBodyFallsBackToGenericMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("<html>ugly proxy page</html>"))
	}))
	defer srv.Close()

	gw := session.NewHTTPGateway(srv.URL)
	err := gw.Register(context.Background(), validRegisterPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Registration failed. Please try again.")
}

func TestGatewayRegisterSendsMultipart(t *testing.T) {
	var seenContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Amina", r.FormValue("first_name"))
		assert.Equal(t, "amina@example.com", r.FormValue("email"))

		file, header, err := r.FormFile("profile_image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "me.png", header.Filename)

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	payload := validRegisterPayload()
	payload.ProfileImage = []byte{0x89, 'P', 'N', 'G'}
	payload.ProfileImageName = "me.png"

	gw := session.NewHTTPGateway(srv.URL)
	require.NoError(t, gw.Register(context.Background(), payload))
	assert.Contains(t, seenContentType, "multipart/form-data")
}

func TestGatewayRefreshOmitsAuthorizationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "refresh is cookie-credentialed only")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"accessToken": "fresh"})
	}))
	defer srv.Close()

	gw := session.NewHTTPGateway(srv.URL)
	resp, err := gw.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", resp.AccessToken)
}

func TestGatewayLogoutAttachesBearerWhenPresent(t *testing.T) {
	var seenAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	gw := session.NewHTTPGateway(srv.URL)
	require.NoError(t, gw.Logout(context.Background(), "tok123"))
	assert.Equal(t, "Bearer tok123", seenAuth)
}

func TestGatewayUnreachableServerClassifiesAsConnectivity(t *testing.T) {
	gw := session.NewHTTPGateway("http://127.0.0.1:1")

	_, err := gw.Login(context.Background(), "a@x.com", "secret")
	require.Error(t, err)
	assert.True(t, session.IsConnectivityError(err))
	assert.False(t, session.IsCredentialError(err))

	_, ok := session.HTTPStatus(err)
	assert.False(t, ok, "transport failures carry no status code")
}

func TestGatewayPasswordResetEndpoints(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		switch r.URL.Path {
		case "/reset/request":
			assert.Equal(t, "amina@example.com", payload["email"])
		case "/reset/confirm":
			assert.Equal(t, "reset-tok", payload["token"])
			assert.Equal(t, "new-password", payload["newPassword"])
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw := session.NewHTTPGateway(srv.URL)
	require.NoError(t, gw.RequestPasswordReset(context.Background(), "amina@example.com"))
	require.NoError(t, gw.ConfirmPasswordReset(context.Background(), "reset-tok", "new-password"))
	assert.Equal(t, []string{"/reset/request", "/reset/confirm"}, paths)
}
