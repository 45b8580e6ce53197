package dropsdk

import (
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/imroc/req/v3"
	"github.com/openmined/syftdrop/internal/version"
)

const (
	HeaderUserAgent    = "User-Agent"
	HeaderDropVersion  = "X-Syftdrop-Version"
	HeaderDropDeviceId = "X-Syftdrop-Device-Id"
)

var SyftDropUserAgent = version.UserAgent()

// DeviceID is an app-scoped hash of the machine id, or "unknown" if the platform does not expose one
var DeviceID = deviceID()

// A simple HTTP client with some common values set
var HTTPClient = req.C().
	SetCommonRetryCount(3).
	SetCommonRetryFixedInterval(1*time.Second).
	SetUserAgent(SyftDropUserAgent).
	SetCommonHeader(HeaderDropVersion, version.Version).
	SetCommonHeader(HeaderDropDeviceId, DeviceID).
	SetJsonMarshal(jsonMarshal).
	SetJsonUnmarshal(jsonUnmarshal)

func deviceID() string {
	id, err := machineid.ProtectedID(version.AppName)
	if err != nil {
		return "unknown"
	}
	return id
}
