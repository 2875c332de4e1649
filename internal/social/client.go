package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const maxVendorResponse = 1 << 20

// vendorClient sends one request to a platform API and decodes the reply.
type vendorClient struct {
	platform Platform
	http     *http.Client
}

func (c vendorClient) postForm(ctx context.Context, endpoint string, form url.Values, header http.Header) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return gjson.Result{}, transportError(c.platform, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header[k] = v
	}
	return c.do(req)
}

func (c vendorClient) postJSON(ctx context.Context, endpoint string, body any, header http.Header) (gjson.Result, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encoding %s request: %w", c.platform, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return gjson.Result{}, transportError(c.platform, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	for k, v := range header {
		req.Header[k] = v
	}
	return c.do(req)
}

func (c vendorClient) do(req *http.Request) (gjson.Result, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, transportError(c.platform, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxVendorResponse))
	if err != nil {
		return gjson.Result{}, transportError(c.platform, err)
	}
	body := gjson.ParseBytes(raw)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, classify(c.platform, resp.StatusCode, body)
	}
	// Graph can answer 200 with an error object.
	if body.Get("error").IsObject() && body.Get("error.code").Type == gjson.Number {
		return body, classify(c.platform, resp.StatusCode, body)
	}
	return body, nil
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func missingID(p Platform, field string) *PublishError {
	return &PublishError{Platform: p, Kind: ErrVendor, Message: "response has no " + field}
}
