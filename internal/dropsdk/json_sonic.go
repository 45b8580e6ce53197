//go:build sonic

package dropsdk

import (
	"github.com/bytedance/sonic"
)

// for imroc/req and raw part responses
var jsonMarshal = sonic.Marshal
var jsonUnmarshal = sonic.Unmarshal
