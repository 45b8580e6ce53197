package api

import "fmt"

type DropAPIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *DropAPIError) Error() string {
	return fmt.Sprintf("syftdrop api error: code=%s, message=%s", e.Code, e.Message)
}
