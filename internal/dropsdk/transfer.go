package dropsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/imroc/req/v3"
)

const (
	v1Transfers         = "/api/v1/transfers"
	v1TransferParts     = "/api/v1/transfers/parts"
	v1TransferComplete  = "/api/v1/transfers/complete"
	v1TransferAbort     = "/api/v1/transfers/abort"
	v1TransferByID      = "/api/v1/transfers/{transferId}"
	v1TransferValidate  = "/api/v1/transfers/{transferId}/validate"
	maxPartResponseSize = 64 * 1024
)

type TransferAPI struct {
	client  *req.Client
	baseURL string
}

func newTransferAPI(client *req.Client, baseURL string) *TransferAPI {
	return &TransferAPI{
		client:  client,
		baseURL: baseURL,
	}
}

// CreateTransfer opens a transfer and one multipart session per file
func (t *TransferAPI) CreateTransfer(ctx context.Context, params *CreateTransferRequest) (apiResp *CreateTransferResponse, err error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(params).
		SetSuccessResult(&apiResp).
		Post(v1Transfers)

	if err := handleAPIError(resp, err, "create transfer"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// UploadPart streams one part to the server. It is never retried here; the caller owns the retry policy.
func (t *TransferAPI) UploadPart(ctx context.Context, params *UploadPartParams) (*UploadPartResponse, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("key", params.Key)
	query.Set("uploadId", params.UploadID)
	query.Set("partNumber", strconv.Itoa(params.PartNumber))
	endpoint := t.baseURL + v1TransferParts + "?" + query.Encode()

	body := newProgressReader(params.Body, params.Size, params.Callback)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.ContentLength = params.Size
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("Authorization", "Bearer "+params.Token)
	httpReq.Header.Set(HeaderUserAgent, SyftDropUserAgent)
	httpReq.Header.Set(HeaderDropDeviceId, DeviceID)

	resp, err := t.client.GetClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request error: upload part %d %w", params.PartNumber, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPartResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: upload part %d %w", params.PartNumber, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := jsonUnmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = CodeUnknownError
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("upload part %d %w", params.PartNumber, apiErr)
	}

	var partResp UploadPartResponse
	if err := jsonUnmarshal(data, &partResp); err != nil {
		return nil, fmt.Errorf("decode response: upload part %d %w", params.PartNumber, err)
	}
	if partResp.ETag == "" {
		return nil, ErrEmptyPartETag
	}

	return &partResp, nil
}

// CompleteTransfer commits the parts of one file
func (t *TransferAPI) CompleteTransfer(ctx context.Context, params *CompleteTransferRequest) (apiResp *CompleteTransferResponse, err error) {
	if params.Token == "" {
		return nil, ErrNoUploadToken
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBearerAuthToken(params.Token).
		SetBody(params).
		SetSuccessResult(&apiResp).
		Post(v1TransferComplete)

	if err := handleAPIError(resp, err, "complete transfer"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// ValidateTransfer checks that the transfer exists, has not expired and is not complete
func (t *TransferAPI) ValidateTransfer(ctx context.Context, transferID string) (apiResp *ValidateTransferResponse, err error) {
	if transferID == "" {
		return nil, ErrNoTransferID
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("transferId", transferID).
		SetSuccessResult(&apiResp).
		Get(v1TransferValidate)

	if err := handleAPIError(resp, err, "validate transfer"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// AbortTransfer aborts the open multipart sessions of a transfer
func (t *TransferAPI) AbortTransfer(ctx context.Context, params *AbortTransferRequest) (apiResp *AbortTransferResponse, err error) {
	if params.Token == "" {
		return nil, ErrNoUploadToken
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBearerAuthToken(params.Token).
		SetBody(params).
		SetRetryCount(0).
		SetSuccessResult(&apiResp).
		Post(v1TransferAbort)

	if err := handleAPIError(resp, err, "abort transfer"); err != nil {
		return nil, err
	}

	return apiResp, nil
}

// GetTransfer returns the server view of a transfer
func (t *TransferAPI) GetTransfer(ctx context.Context, transferID string) (apiResp *TransferInfo, err error) {
	if transferID == "" {
		return nil, ErrNoTransferID
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("transferId", transferID).
		SetSuccessResult(&apiResp).
		Get(v1TransferByID)

	if err := handleAPIError(resp, err, "get transfer"); err != nil {
		return nil, err
	}

	return apiResp, nil
}
