package dropsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSDK(t *testing.T, handler http.HandlerFunc) *DropSDK {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sdk, err := New(&DropSDKConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	sdk.client.SetCommonRetryCount(0)
	t.Cleanup(sdk.Close)
	return sdk
}

func TestNew_RequiresServerURL(t *testing.T) {
	_, err := New(&DropSDKConfig{})
	assert.ErrorIs(t, err, ErrNoServerURL)

	_, err = New(&DropSDKConfig{BaseURL: "not a url"})
	assert.ErrorIs(t, err, ErrInvalidServerURL)
}

func TestCreateTransfer(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, v1Transfers, r.URL.Path)

		var body CreateTransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Files, 1)
		assert.Equal(t, "a.bin", body.Files[0].Filename)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(&CreateTransferResponse{
			TransferID:  "t1",
			ExpiresAt:   expiry,
			UploadToken: "tok",
			Files: []*FileSession{
				{FileID: "f1", Filename: "a.bin", UploadID: "u1", Key: "transfers/t1/f1/a.bin"},
			},
		})
	})

	resp, err := sdk.Transfers.CreateTransfer(context.Background(), &CreateTransferRequest{
		Files: []*FileSpec{{Filename: "a.bin", Filesize: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", resp.TransferID)
	assert.Equal(t, "tok", resp.UploadToken)
	assert.True(t, expiry.Equal(resp.ExpiresAt))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, "u1", resp.Files[0].UploadID)
}

func TestCreateTransfer_APIError(t *testing.T) {
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"E_TRANSFER_TOO_LARGE","error":"file too large"}`))
	})

	_, err := sdk.Transfers.CreateTransfer(context.Background(), &CreateTransferRequest{
		Files: []*FileSpec{{Filename: "a.bin", Filesize: 10}},
	})
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, CodeTransferTooLarge))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestUploadPart(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4096)
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, v1TransferParts, r.URL.Path)
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		assert.Equal(t, "u", r.URL.Query().Get("uploadId"))
		assert.Equal(t, "2", r.URL.Query().Get("partNumber"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, int64(len(payload)), r.ContentLength)

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, payload, data)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"partNumber":2,"etag":"abc"}`))
	})

	var lastSent int64
	resp, err := sdk.Transfers.UploadPart(context.Background(), &UploadPartParams{
		Token:      "tok",
		Key:        "k",
		UploadID:   "u",
		PartNumber: 2,
		Body:       bytes.NewReader(payload),
		Size:       int64(len(payload)),
		Callback: func(sent, total int64) {
			lastSent = sent
			assert.Equal(t, int64(len(payload)), total)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.PartNumber)
	assert.Equal(t, "abc", resp.ETag)
	assert.Equal(t, int64(len(payload)), lastSent)
}

func TestUploadPart_ErrorEnvelope(t *testing.T) {
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"code":"E_BLOB_PUT_OPERATION_FAILED","error":"boom"}`))
	})

	_, err := sdk.Transfers.UploadPart(context.Background(), &UploadPartParams{
		Token: "tok", Key: "k", UploadID: "u", PartNumber: 1,
		Body: bytes.NewReader([]byte("abc")), Size: 3,
	})
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, CodeBlobPutFailed))
}

func TestUploadPart_InvalidParams(t *testing.T) {
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})

	_, err := sdk.Transfers.UploadPart(context.Background(), &UploadPartParams{Key: "k", UploadID: "u", PartNumber: 1})
	assert.ErrorIs(t, err, ErrNoUploadToken)

	_, err = sdk.Transfers.UploadPart(context.Background(), &UploadPartParams{Token: "t", Key: "k", UploadID: "u", PartNumber: 0})
	assert.ErrorIs(t, err, ErrInvalidPart)
}

func TestValidateTransfer(t *testing.T) {
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transfers/t1/validate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"valid":false,"reason":"transfer expired"}`))
	})

	resp, err := sdk.Transfers.ValidateTransfer(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, "transfer expired", resp.Reason)

	_, err = sdk.Transfers.ValidateTransfer(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoTransferID)
}

func TestCompleteTransfer_SendsSortedParts(t *testing.T) {
	sdk := newTestSDK(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body CompleteTransferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Parts, 2)
		assert.Equal(t, 1, body.Parts[0].PartNumber)
		assert.Equal(t, 2, body.Parts[1].PartNumber)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"object":{"key":"k","etag":"e-2","size":10}}`))
	})

	resp, err := sdk.Transfers.CompleteTransfer(context.Background(), &CompleteTransferRequest{
		Token:      "tok",
		TransferID: "t1",
		Key:        "k",
		UploadID:   "u",
		Parts:      []*CompletedPart{{PartNumber: 1, ETag: "a"}, {PartNumber: 2, ETag: "b"}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "e-2", resp.Object.ETag)
}
