// Package testutil drives gin engines and single handlers in tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

func newJSONRequest(method, target string, body interface{}) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// MakeJSONRequest sends body to r with authToken as bearer token and decodes
// the JSON answer. An empty token sends no Authorization header.
func MakeJSONRequest(body gin.H, authToken string, r http.Handler, endpoint string, method string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var payload interface{}
	if body != nil {
		payload = body
	}
	req, err := newJSONRequest(method, endpoint, payload)
	if err != nil {
		panic(err)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	resp := map[string]interface{}{}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

// CallHandler runs one handler outside any engine, so no middleware has put
// a caller in the context. The error reports an undecodable response body.
func CallHandler(handler gin.HandlerFunc, target string, method string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	req, err := newJSONRequest(method, target, body)
	if err != nil {
		return nil, nil, err
	}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	handler(c)

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		return rec, nil, err
	}
	return rec, resp, nil
}
