package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taoyao-code/netfront/internal/api/middleware"
	"github.com/taoyao-code/netfront/internal/network"
)

// inlineExecutor 在调用方协程中直接执行
type inlineExecutor struct {
	r   *network.Registry
	err error
}

func (e *inlineExecutor) Do(_ context.Context, fn func(r *network.Registry)) error {
	if e.err != nil {
		return e.err
	}
	fn(e.r)
	return nil
}

func setupNetworkRouter(t *testing.T, auth middleware.AuthConfig) (*gin.Engine, *network.Registry, *inlineExecutor) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := network.New(network.Config{Name: "netfront", DefaultLanName: "netfront-lan"}, nil, nil)
	exec := &inlineExecutor{r: reg}
	r := gin.New()
	RegisterNetworkRoutes(r, NewNetworkHandler(reg, exec, nil), auth, nil)
	return r, reg, exec
}

func doRequest(r *gin.Engine, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestNetworkRoutes_BlockAndUnblock(t *testing.T) {
	r, reg, _ := setupNetworkRouter(t, middleware.AuthConfig{})

	rr := doRequest(r, http.MethodPost, "/api/network/bans", `{"address":"9.9.9.9","timeoutSeconds":60}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, reg.IsBanned("9.9.9.9"))

	rr = doRequest(r, http.MethodGet, "/api/network/bans", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Count int                `json:"count"`
		Bans  []network.BanEntry `json:"bans"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "9.9.9.9", list.Bans[0].Address)

	rr = doRequest(r, http.MethodDelete, "/api/network/bans/9.9.9.9", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, reg.IsBanned("9.9.9.9"))
}

func TestNetworkRoutes_BadRequests(t *testing.T) {
	r, _, _ := setupNetworkRouter(t, middleware.AuthConfig{})

	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodPost, "/api/network/bans", `{"timeoutSeconds":5}`).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodPost, "/api/network/bans", `{"address":"not-an-ip"}`).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodDelete, "/api/network/bans/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(r, http.MethodPut, "/api/network/names", `{}`).Code)
}

func TestNetworkRoutes_StatusAndNames(t *testing.T) {
	r, _, _ := setupNetworkRouter(t, middleware.AuthConfig{})

	rr := doRequest(r, http.MethodPut, "/api/network/names", `{"name":"Lobby"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"name":"Lobby","lanName":"netfront-lan"}`, rr.Body.String())

	rr = doRequest(r, http.MethodGet, "/api/network", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var st network.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "Lobby", st.Name)
	assert.Equal(t, "netfront-lan", st.LanName)
}

func TestNetworkRoutes_ExecutorStopped(t *testing.T) {
	r, reg, exec := setupNetworkRouter(t, middleware.AuthConfig{})
	exec.err = context.Canceled

	rr := doRequest(r, http.MethodPost, "/api/network/bans", `{"address":"1.2.3.4"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.False(t, reg.IsBanned("1.2.3.4"))
}

func TestNetworkRoutes_AuthOnWrites(t *testing.T) {
	r, _, _ := setupNetworkRouter(t, middleware.AuthConfig{Enabled: true, APIKeys: []string{"sk_admin_key_0001"}})

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/network", "").Code, "reads stay public")
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodPost, "/api/network/bans", `{"address":"1.2.3.4"}`).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/network/bans", `{"address":"1.2.3.4"}`,
		"X-API-Key", "sk_admin_key_0001").Code)
}
