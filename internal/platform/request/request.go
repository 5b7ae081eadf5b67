// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It hides the router's parameter extraction and the body decoding rules so every
handler rejects malformed input the same way.
*/
package requestutil

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taibuivan/marketplace-auth/internal/platform/apperr"
	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
	"github.com/taibuivan/marketplace-auth/internal/platform/ctxutil"
	"github.com/taibuivan/marketplace-auth/internal/platform/sec"
	"github.com/taibuivan/marketplace-auth/internal/platform/validate"
)

// MaxBodyBytes caps JSON request bodies; auth payloads are tiny.
const MaxBodyBytes = 64 << 10

// ClientInfo describes the caller's device, stored alongside refresh tokens.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

/*
DecodeJSON reads the request body and decodes it into the target structure.

Unknown fields and trailing data are rejected.

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target any) error {
	request.Body = http.MaxBytesReader(writer, request.Body, MaxBodyBytes)

	decoder := json.NewDecoder(request.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	if decoder.More() {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Client extracts the user agent and caller IP.
*/
func Client(request *http.Request) ClientInfo {
	ip := request.Header.Get(constants.HeaderXRealIP)
	if ip == "" {
		if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
			ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
		}
	}
	if ip == "" {
		ip, _, _ = net.SplitHostPort(request.RemoteAddr)
	}

	return ClientInfo{
		UserAgent: request.UserAgent(),
		IPAddress: ip,
	}
}

/*
RequiredClaims ensures the request is authenticated and returns the user claims.

Returns:
  - *sec.AuthClaims: The authenticated user claims
  - error: apperr.Unauthorized if the request is not authenticated
*/
func RequiredClaims(request *http.Request) (*sec.AuthClaims, error) {
	claims := ctxutil.Claims(request.Context())
	if claims == nil {
		return nil, apperr.Unauthorized("Authentication required")
	}
	return claims, nil
}
