// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vkapi

import (
	"fmt"
)

// Well-known API error codes.
const (
	ErrCodeUnknown             = 1
	ErrCodeAuthorization       = 5
	ErrCodeTooManyRequests     = 6
	ErrCodeFloodControl        = 9
	ErrCodeInternalServerError = 10
	ErrCodeCaptchaNeeded       = 14
	ErrCodeAccessDenied        = 15
	ErrCodeParam               = 100
	ErrCodeParamUserID         = 113
	ErrCodeAccessGroup         = 203
)

// ClientError reports a failure to talk to the remote side: the request did
// not complete or the server answered with an unexpected HTTP status.
type ClientError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vk client: request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("vk client: request to %s returned status %d", e.URL, e.StatusCode)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// RequestParam is a single echoed parameter of a failed API call.
type RequestParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// APIError is the error envelope returned by API methods.
type APIError struct {
	Code          int            `json:"error_code"`
	Message       string         `json:"error_msg"`
	RequestParams []RequestParam `json:"request_params,omitempty"`
	CaptchaSID    string         `json:"captcha_sid,omitempty"`
	CaptchaImg    string         `json:"captcha_img,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// Is matches another *APIError with the same code, so callers can write
// errors.Is(err, &vkapi.APIError{Code: vkapi.ErrCodeTooManyRequests}).
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// OAuthError is returned by the authorization code exchange.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *OAuthError) Error() string {
	if e.Description == "" {
		return "vk oauth: " + e.Code
	}
	return fmt.Sprintf("vk oauth: %s: %s", e.Code, e.Description)
}
