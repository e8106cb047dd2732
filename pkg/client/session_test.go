package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// profileServer answers /api/users/me with user, or 401 when user is nil.
func profileServer(t *testing.T, user *User) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if user == nil || r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Token required","code":"UNAUTHORIZED"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(user)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func seedSession(t *testing.T, store Storage, token string, u storedUser) {
	t.Helper()
	data, err := json.Marshal(u)
	require.NoError(t, err)
	pairs := map[string]string{KeyUser: string(data)}
	if token != "" {
		pairs[KeyToken] = token
	}
	require.NoError(t, store.MultiSet(pairs))
}

func TestSessionLoadRefreshesProfile(t *testing.T) {
	srv := profileServer(t, &User{ID: 4, Username: "fresh", Role: "admin", ImageURI: "/uploads/new.png"})
	store := NewMemoryStorage()
	seedSession(t, store, "good", storedUser{ID: 4, Username: "stale", Role: "user"})

	s := NewSession(New(Config{BaseURL: srv.URL, Storage: store}))
	assert.True(t, s.State().Loading)
	require.NoError(t, s.Load(context.Background()))

	st := s.State()
	assert.False(t, st.Loading)
	assert.True(t, st.Authenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, "fresh", st.User.Username)
	assert.True(t, s.HasRole("admin"))
	assert.True(t, s.HasAnyRole("user", "admin"))
	assert.False(t, s.HasAnyRole())

	raw, _, _ := store.Get(KeyUser)
	assert.Contains(t, raw, `"imageUri":"/uploads/new.png"`)
}

func TestSessionLoadFailureKeepsAvatar(t *testing.T) {
	srv := profileServer(t, nil)
	store := NewMemoryStorage()
	seedSession(t, store, "expired", storedUser{ID: 4, Username: "old", Role: "admin", ImageURI: "/uploads/me.png"})

	s := NewSession(New(Config{BaseURL: srv.URL, Storage: store}))
	require.NoError(t, s.Load(context.Background()))

	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, "", s.Role())
	require.NotNil(t, s.User())
	assert.Equal(t, "/uploads/me.png", s.User().ImageURI)

	_, ok, _ := store.Get(KeyToken)
	assert.False(t, ok)
	raw, _, _ := store.Get(KeyUser)
	assert.JSONEq(t, `{"imageUri":"/uploads/me.png"}`, raw)
}

func TestSessionLoadWithoutToken(t *testing.T) {
	store := NewMemoryStorage()
	seedSession(t, store, "", storedUser{ImageURI: "/uploads/a.png"})

	// No request is made without a token, so no server is needed.
	s := NewSession(New(Config{BaseURL: "http://127.0.0.1:0", Storage: store}))
	require.NoError(t, s.Load(context.Background()))
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, "/uploads/a.png", s.User().ImageURI)
}

func TestSessionLoginLogout(t *testing.T) {
	store := NewMemoryStorage()
	s := NewSession(New(Config{Storage: store}))

	var states []SessionState
	unsubscribe := s.Subscribe(func(st SessionState) { states = append(states, st) })
	defer unsubscribe()

	require.NoError(t, s.Login(User{ID: 1, Username: "ann", Role: "user", ImageURI: "/uploads/ann.png"}, "tok"))
	assert.True(t, s.IsAuthenticated())
	token, _, _ := store.Get(KeyToken)
	assert.Equal(t, "tok", token)

	require.NoError(t, s.UpdateUser(ProfileUpdate{Email: strPtr("ann@example.com")}))
	assert.Equal(t, "ann@example.com", s.User().Email)
	assert.Equal(t, "ann", s.User().Username)

	require.NoError(t, s.Logout())
	assert.False(t, s.IsAuthenticated())
	assert.Equal(t, &User{ImageURI: "/uploads/ann.png"}, s.User())
	_, ok, _ := store.Get(KeyToken)
	assert.False(t, ok)

	require.Len(t, states, 3)
	assert.True(t, states[0].Authenticated)
	assert.False(t, states[2].Authenticated)
}

func TestSessionIgnoresCorruptUser(t *testing.T) {
	store := NewMemoryStorage()
	require.NoError(t, store.Set(KeyUser, "{broken"))
	s := NewSession(New(Config{Storage: store}))
	require.NoError(t, s.Load(context.Background()))
	assert.Nil(t, s.User())
}
