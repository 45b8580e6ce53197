//go:build !sonic

package dropsdk

import (
	"github.com/goccy/go-json"
)

// for imroc/req and raw part responses
var jsonMarshal = json.Marshal
var jsonUnmarshal = json.Unmarshal
