package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openmined/syftdrop/internal/client/config"
	"github.com/openmined/syftdrop/internal/client/handlers"
	"github.com/openmined/syftdrop/internal/client/workspace"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/openmined/syftdrop/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrToURL(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
		err  bool
	}{
		{"addr-with-host-port", "localhost:8080", "http://localhost:8080", false},
		{"addr-with-ip-port", "0.0.0.0:8080", "http://0.0.0.0:8080", false},
		{"addr-with-only-port", ":8080", "http://0.0.0.0:8080", false},
		{"addr-with-only-host", "localhost:", "", true},
		{"addr-missing-host", "8080", "", true},
		{"addr-missing-port", "localhost", "", true},
		{"addr-with-http", "http://localhost:8080", "", true},
		{"empty", "", "", true},
	}
	for _, test := range tests {
		val, err := addrToURL(test.addr)
		if test.err {
			assert.Error(t, err, test.name)
		} else {
			assert.NoError(t, err)
			assert.Equal(t, test.want, val, test.name)
		}
	}
}

func TestClientDaemon_ServesControlPlane(t *testing.T) {
	port, err := utils.GetFreePort()
	require.NoError(t, err)

	cfg := &config.Config{
		ServerURL:   "http://127.0.0.1:1",
		DataDir:     t.TempDir(),
		ClientAddr:  fmt.Sprintf("127.0.0.1:%d", port),
		ClientToken: "cp-token",
	}
	require.NoError(t, cfg.Validate())

	ws, err := workspace.NewWorkspace(cfg.DataDir)
	require.NoError(t, err)

	api := newFakeAPI()
	daemon, err := newClientDaemon(cfg, ws, nil, api)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemon.Start(ctx) }()

	base := "http://" + cfg.ClientAddr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	// a second daemon on the same data dir is refused
	other, err := workspace.NewWorkspace(cfg.DataDir)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Lock(), workspace.ErrWorkspaceLocked)

	resp, err := http.Get(base + "/v1/transfers")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	body, _ := json.Marshal(handlers.SendRequest{Paths: []string{path}})
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/transfers", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer cp-token")
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var view transfer.TransferView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	require.Len(t, view.Files, 1)

	require.Eventually(t, func() bool {
		req, _ := http.NewRequest(http.MethodGet, base+"/v1/transfers/"+view.ID+"?token=cp-token", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var got transfer.TransferView
		if json.NewDecoder(resp.Body).Decode(&got) != nil {
			return false
		}
		return got.Complete
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	// the workspace lock is released on stop
	require.NoError(t, other.Lock())
	require.NoError(t, other.Unlock())
}
