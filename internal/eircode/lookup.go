package eircode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Address is the resolved location for an eircode.
type Address struct {
	Eircode      string `json:"eircode"`
	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	County       string `json:"county,omitempty"`
}

// LookupClient queries an address-lookup provider. The provider contract:
// GET <base>/addresses?key=<key>&eircode=<code>, JSON response with an
// addresses array.
type LookupClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewLookupClient(baseURL, apiKey string, timeout time.Duration) *LookupClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LookupClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type lookupResponse struct {
	Addresses []struct {
		Line1  string `json:"line1"`
		Line2  string `json:"line2"`
		Town   string `json:"town"`
		County string `json:"county"`
	} `json:"addresses"`
}

// Lookup resolves one eircode. The code must already be valid; transport
// and provider errors come back as errors, an empty provider result as
// (nil, nil).
func (c *LookupClient) Lookup(ctx context.Context, code string) (*Address, error) {
	normalized := Normalize(code)

	endpoint := fmt.Sprintf("%s/addresses?key=%s&eircode=%s",
		c.baseURL, url.QueryEscape(c.apiKey), url.QueryEscape(normalized))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eircode lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("eircode lookup read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eircode lookup returned status %d", resp.StatusCode)
	}

	var parsed lookupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("eircode lookup response invalid: %w", err)
	}
	if len(parsed.Addresses) == 0 {
		return nil, nil
	}

	first := parsed.Addresses[0]
	formatted, _ := Format(normalized)
	return &Address{
		Eircode:      formatted,
		AddressLine1: first.Line1,
		AddressLine2: first.Line2,
		City:         first.Town,
		County:       first.County,
	}, nil
}
