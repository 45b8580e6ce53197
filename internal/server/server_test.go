package server

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openmined/syftdrop/internal/db"
	"github.com/openmined/syftdrop/internal/dropsdk"
	"github.com/openmined/syftdrop/internal/server/auth"
	"github.com/openmined/syftdrop/internal/server/blob"
	srvtransfer "github.com/openmined/syftdrop/internal/server/transfer"
	"github.com/openmined/syftdrop/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

type testServer struct {
	url     string
	mem     *blob.MemoryBackend
	svc     *Services
	sdk     *dropsdk.DropSDK
	httpSrv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	baseURL := "http://" + l.Addr().String()

	cfg := &Config{
		HTTP:       HTTPConfig{Addr: l.Addr().String(), PublicURL: baseURL},
		Auth:       auth.Config{UploadTokenSecret: strings.Repeat("s", 32)},
		Transfer:   srvtransfer.DefaultConfig(),
		DataDir:    t.TempDir(),
		MemoryBlob: true,
	}
	require.NoError(t, cfg.Validate())

	database, err := db.NewSqliteDB(db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	mem := blob.NewMemoryBackend(baseURL + "/_blob")
	svc, err := newServices(cfg, database, mem)
	require.NoError(t, err)

	srv := &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: SetupRoutes(cfg, svc)},
	}
	srv.Start()
	t.Cleanup(srv.Close)

	sdk, err := dropsdk.New(&dropsdk.DropSDKConfig{BaseURL: baseURL})
	require.NoError(t, err)
	t.Cleanup(sdk.Close)

	return &testServer{url: baseURL, mem: mem, svc: svc, sdk: sdk, httpSrv: srv}
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestServer_SendThroughOrchestrator(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	big := randomBytes(t, 12*mib)
	small := []byte("hello syftdrop")

	orch := transfer.NewOrchestrator(ts.sdk.Transfers, transfer.DefaultOptions())
	res, err := orch.Send(ctx, []transfer.Content{
		transfer.BytesContent("big.bin", big),
		transfer.BytesContent("note.txt", small),
	}, transfer.SubmitOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.True(t, res.Complete())
	assert.Equal(t, ts.url+"/d/"+res.TransferID, res.DownloadURL)

	for _, f := range res.Files {
		assert.Equal(t, transfer.StatusCompleted, f.Status)
	}

	info, err := ts.sdk.Transfers.GetTransfer(ctx, res.TransferID)
	require.NoError(t, err)
	assert.Equal(t, string(srvtransfer.TransferComplete), info.Status)
	require.Len(t, info.Files, 2)

	got, ok := ts.mem.Object(res.Files[0].Object.Key)
	require.True(t, ok)
	assert.True(t, bytes.Equal(big, got), "object content matches the source")
	assert.Equal(t, 0, ts.mem.OpenUploads())

	v, err := ts.sdk.Transfers.ValidateTransfer(ctx, res.TransferID)
	require.NoError(t, err)
	assert.False(t, v.Valid, "a complete transfer takes no more parts")

	// download redirect resolves to the stored object
	resp, err := http.Get(info.Files[1].DownloadURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, small, body)
}

func TestServer_ValidateUnknownTransfer(t *testing.T) {
	ts := newTestServer(t)

	v, err := ts.sdk.Transfers.ValidateTransfer(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.NotEmpty(t, v.Reason)

	_, err = ts.sdk.Transfers.GetTransfer(context.Background(), "does-not-exist")
	assert.True(t, dropsdk.HasErrorCode(err, dropsdk.CodeTransferNotFound))
}

func TestServer_UploadRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created, err := ts.sdk.Transfers.CreateTransfer(ctx, &dropsdk.CreateTransferRequest{
		Files: []*dropsdk.FileSpec{{Filename: "a.txt", Filesize: 3}},
	})
	require.NoError(t, err)
	f := created.Files[0]

	req, err := http.NewRequest(http.MethodPut,
		ts.url+"/api/v1/transfers/parts?key="+f.Key+"&uploadId="+f.UploadID+"&partNumber=1",
		strings.NewReader("abc"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// a token for another transfer is rejected
	other, err := ts.sdk.Transfers.CreateTransfer(ctx, &dropsdk.CreateTransferRequest{
		Files: []*dropsdk.FileSpec{{Filename: "b.txt", Filesize: 3}},
	})
	require.NoError(t, err)

	_, err = ts.sdk.Transfers.UploadPart(ctx, &dropsdk.UploadPartParams{
		Token: other.UploadToken, Key: f.Key, UploadID: f.UploadID, PartNumber: 1,
		Body: strings.NewReader("abc"), Size: 3,
	})
	assert.True(t, dropsdk.HasErrorCode(err, dropsdk.CodeAccessDenied), "got %v", err)

	part, err := ts.sdk.Transfers.UploadPart(ctx, &dropsdk.UploadPartParams{
		Token: created.UploadToken, Key: f.Key, UploadID: f.UploadID, PartNumber: 1,
		Body: strings.NewReader("abc"), Size: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, part.PartNumber)
}

func TestServer_DownloadListsCompletedFilesOnly(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created, err := ts.sdk.Transfers.CreateTransfer(ctx, &dropsdk.CreateTransferRequest{
		Files: []*dropsdk.FileSpec{{Filename: "done.txt", Filesize: 3}, {Filename: "open.txt", Filesize: 3}},
	})
	require.NoError(t, err)
	done, open := created.Files[0], created.Files[1]

	part, err := ts.sdk.Transfers.UploadPart(ctx, &dropsdk.UploadPartParams{
		Token: created.UploadToken, Key: done.Key, UploadID: done.UploadID, PartNumber: 1,
		Body: strings.NewReader("abc"), Size: 3,
	})
	require.NoError(t, err)
	_, err = ts.sdk.Transfers.CompleteTransfer(ctx, &dropsdk.CompleteTransferRequest{
		Token: created.UploadToken, TransferID: created.TransferID, Key: done.Key, UploadID: done.UploadID,
		Parts: []*dropsdk.CompletedPart{{PartNumber: 1, ETag: part.ETag}},
	})
	require.NoError(t, err)

	resp, err := http.Get(ts.url + "/d/" + created.TransferID)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), "done.txt")
	assert.NotContains(t, string(body), "open.txt")

	noRedirect := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	resp, err = noRedirect.Get(ts.url + "/d/" + created.TransferID + "/" + done.FileID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), ts.url+"/_blob/"))

	resp, err = noRedirect.Get(ts.url + "/d/" + created.TransferID + "/" + open.FileID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CreateRejectsInvalidFiles(t *testing.T) {
	ts := newTestServer(t)

	_, err := ts.sdk.Transfers.CreateTransfer(context.Background(), &dropsdk.CreateTransferRequest{
		Files: []*dropsdk.FileSpec{{Filename: "huge.bin", Filesize: srvtransfer.DefaultMaxFileSize + 1}},
	})
	assert.True(t, dropsdk.HasErrorCode(err, dropsdk.CodeTransferTooLarge), "got %v", err)

	_, err = ts.sdk.Transfers.CreateTransfer(context.Background(), &dropsdk.CreateTransferRequest{
		Files: []*dropsdk.FileSpec{{Filename: "../x", Filesize: 1}},
	})
	assert.True(t, dropsdk.HasErrorCode(err, dropsdk.CodeInvalidRequest), "got %v", err)
}

func TestServer_CompleteRejectsUnsortedParts(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created, err := ts.sdk.Transfers.CreateTransfer(ctx, &dropsdk.CreateTransferRequest{
		Files: []*dropsdk.FileSpec{{Filename: "a.txt", Filesize: 6}},
	})
	require.NoError(t, err)
	f := created.Files[0]

	var parts []*dropsdk.CompletedPart
	for i, chunk := range []string{"abc", "def"} {
		p, err := ts.sdk.Transfers.UploadPart(ctx, &dropsdk.UploadPartParams{
			Token: created.UploadToken, Key: f.Key, UploadID: f.UploadID, PartNumber: i + 1,
			Body: strings.NewReader(chunk), Size: 3,
		})
		require.NoError(t, err)
		parts = append(parts, &dropsdk.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	_, err = ts.sdk.Transfers.CompleteTransfer(ctx, &dropsdk.CompleteTransferRequest{
		Token: created.UploadToken, TransferID: created.TransferID, Key: f.Key, UploadID: f.UploadID,
		Parts: []*dropsdk.CompletedPart{parts[1], parts[0]},
	})
	assert.True(t, dropsdk.HasErrorCode(err, dropsdk.CodeInvalidRequest), "got %v", err)

	resp, err := ts.sdk.Transfers.CompleteTransfer(ctx, &dropsdk.CompleteTransferRequest{
		Token: created.UploadToken, TransferID: created.TransferID, Key: f.Key, UploadID: f.UploadID,
		Parts: parts,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(6), resp.Object.Size)
}

func TestServer_Abort(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	created, err := ts.sdk.Transfers.CreateTransfer(ctx, &dropsdk.CreateTransferRequest{
		Files: []*dropsdk.FileSpec{{Filename: "a.txt", Filesize: 6}, {Filename: "b.txt", Filesize: 6}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, ts.mem.OpenUploads())

	resp, err := ts.sdk.Transfers.AbortTransfer(ctx, &dropsdk.AbortTransferRequest{
		Token: created.UploadToken, TransferID: created.TransferID,
	})
	require.NoError(t, err)
	assert.Len(t, resp.Aborted, 2)
	assert.Equal(t, 0, ts.mem.OpenUploads())

	v, err := ts.sdk.Transfers.ValidateTransfer(ctx, created.TransferID)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	_, err = ts.sdk.Transfers.AbortTransfer(ctx, &dropsdk.AbortTransferRequest{
		Token: created.UploadToken, TransferID: created.TransferID,
	})
	assert.True(t, dropsdk.HasErrorCode(err, dropsdk.CodeTransferClosed), "got %v", err)
}

func TestServer_NotFoundEnvelope(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.url + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), `"code":"E_NOT_FOUND"`)

	health, err := http.Get(ts.url + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}
