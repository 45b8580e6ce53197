package dropsdk

import (
	"strings"

	"github.com/imroc/req/v3"
)

// DropSDK is the main client for interacting with the syftdrop transfer API
type DropSDK struct {
	client    *req.Client
	baseURL   string
	Transfers *TransferAPI
}

// New creates a new DropSDK client
func New(config *DropSDKConfig) (*DropSDK, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(config.BaseURL, "/")

	client := HTTPClient.Clone().
		SetBaseURL(baseURL).
		SetCommonErrorResult(&APIError{})

	if config.Debug {
		client.EnableDumpAll()
	}

	return &DropSDK{
		client:    client,
		baseURL:   baseURL,
		Transfers: newTransferAPI(client, baseURL),
	}, nil
}

// BaseURL returns the server url the client talks to
func (s *DropSDK) BaseURL() string {
	return s.baseURL
}

// Close terminates idle connections
func (s *DropSDK) Close() {
	s.client.GetClient().CloseIdleConnections()
}
