package herosms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Provider actions. The upstream exposes a single endpoint and dispatches
// on the action query parameter.
const (
	actionGetBalance      = "getBalance"
	actionGetNumber       = "getNumber"
	actionSetStatus       = "setStatus"
	actionGetStatus       = "getStatus"
	actionGetPrices       = "getPrices"
	actionGetCountries    = "getCountries"
	actionGetServices     = "getServicesList"
	actionGetOperators    = "getOperators"
	actionGetActive       = "getActiveActivations"
	actionGetHistory      = "getHistory"
	actionGetTopCountries = "getTopCountriesByService"
)

// Upstream sentinel strings.
const (
	sentinelBadKey       = "BAD_KEY"
	sentinelNoNumbers    = "NO_NUMBERS"
	sentinelNoBalance    = "NO_BALANCE"
	sentinelNoActivation = "NO_ACTIVATION"

	balancePrefix  = "ACCESS_BALANCE:"
	numberPrefix   = "ACCESS_NUMBER:"
	statusOKPrefix = "STATUS_OK:"

	statusWaitCode  = "STATUS_WAIT_CODE"
	statusWaitRetry = "STATUS_WAIT_RETRY"
	statusCancel    = "STATUS_CANCEL"
)

// Client calls the hero-sms handler API and decodes its replies into typed
// results. The wire format mixes delimited strings and JSON for the same
// logical operations, so every reply goes through one shape-sniffing decode
// step and callers only ever see typed results or typed errors.
//
// The api key is supplied per call and never cached here; the proxy resolves
// which credential to use for each request.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

// payload is the tagged decode of one upstream reply: either a bare string
// or a JSON document, never both.
type payload struct {
	text   string
	doc    json.RawMessage
	isJSON bool
}

func decodePayload(body []byte) payload {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return payload{}
	}
	switch trimmed[0] {
	case '{', '[':
		if json.Valid(trimmed) {
			return payload{doc: json.RawMessage(trimmed), isJSON: true}
		}
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return payload{text: s}
		}
	}
	return payload{text: string(trimmed)}
}

func (p payload) raw() string {
	if p.isJSON {
		return string(p.doc)
	}
	return p.text
}

func (c *Client) request(ctx context.Context, key, action string, params url.Values) (payload, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", key)
	params.Set("action", action)

	endpoint := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return payload{}, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Warn("upstream request failed", zap.String("action", action), zap.Error(err))
		return payload{}, &UnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return payload{}, &UnavailableError{Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return payload{}, &UnavailableError{Cause: fmt.Errorf("http status %d: %s", resp.StatusCode, msg)}
	}
	return decodePayload(body), nil
}

func unexpected(action string, p payload) error {
	return &UnexpectedResponseError{Action: action, Raw: p.raw()}
}

// GetBalance returns the account balance. The reply is always the string
// "ACCESS_BALANCE:<amount>"; anything else is an error.
func (c *Client) GetBalance(ctx context.Context, key string) (float64, error) {
	p, err := c.request(ctx, key, actionGetBalance, nil)
	if err != nil {
		return 0, err
	}
	if p.isJSON {
		return 0, unexpected(actionGetBalance, p)
	}
	if p.text == sentinelBadKey {
		return 0, ErrInvalidCredential
	}
	rest, ok := strings.CutPrefix(p.text, balancePrefix)
	if !ok {
		return 0, unexpected(actionGetBalance, p)
	}
	amount, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, unexpected(actionGetBalance, p)
	}
	return amount, nil
}

// GetServices lists purchasable services, optionally narrowed to a country.
// The provider has shipped both a bare array and an object wrapping it in a
// "services" field; both shapes are accepted and normalized to a list.
func (c *Client) GetServices(ctx context.Context, key string, country *int) ([]ServiceEntry, error) {
	params := url.Values{}
	params.Set("lang", "en")
	if country != nil {
		params.Set("country", strconv.Itoa(*country))
	}
	p, err := c.request(ctx, key, actionGetServices, params)
	if err != nil {
		return nil, err
	}
	if !p.isJSON {
		if p.text == sentinelBadKey {
			return nil, ErrInvalidCredential
		}
		return nil, unexpected(actionGetServices, p)
	}

	var list []ServiceEntry
	if err := json.Unmarshal(p.doc, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Services []ServiceEntry `json:"services"`
	}
	if err := json.Unmarshal(p.doc, &wrapped); err == nil && wrapped.Services != nil {
		return wrapped.Services, nil
	}
	return nil, unexpected(actionGetServices, p)
}

// GetCountries returns the country catalog as upstream JSON, validated for
// shape only.
func (c *Client) GetCountries(ctx context.Context, key string) (json.RawMessage, error) {
	return c.passthroughJSON(ctx, key, actionGetCountries, nil)
}

// GetOperators returns the operator catalog, optionally per country.
func (c *Client) GetOperators(ctx context.Context, key string, country *int) (json.RawMessage, error) {
	params := url.Values{}
	if country != nil {
		params.Set("country", strconv.Itoa(*country))
	}
	return c.passthroughJSON(ctx, key, actionGetOperators, params)
}

// GetPrices returns the price catalog keyed by country and service.
func (c *Client) GetPrices(ctx context.Context, key, service string, country *int) (json.RawMessage, error) {
	params := url.Values{}
	if service != "" {
		params.Set("service", service)
	}
	if country != nil {
		params.Set("country", strconv.Itoa(*country))
	}
	return c.passthroughJSON(ctx, key, actionGetPrices, params)
}

// GetActiveActivations returns the provider-held set of active orders.
func (c *Client) GetActiveActivations(ctx context.Context, key string) (json.RawMessage, error) {
	return c.passthroughJSON(ctx, key, actionGetActive, nil)
}

// GetHistory returns past activations.
func (c *Client) GetHistory(ctx context.Context, key string) (json.RawMessage, error) {
	return c.passthroughJSON(ctx, key, actionGetHistory, nil)
}

func (c *Client) passthroughJSON(ctx context.Context, key, action string, params url.Values) (json.RawMessage, error) {
	p, err := c.request(ctx, key, action, params)
	if err != nil {
		return nil, err
	}
	if !p.isJSON {
		if p.text == sentinelBadKey {
			return nil, ErrInvalidCredential
		}
		return nil, unexpected(action, p)
	}
	return p.doc, nil
}

type topCountryWire struct {
	Country  flexString           `json:"country"`
	Count    int                  `json:"count"`
	Price    *flexFloat           `json:"price"`
	PriceMap map[string]flexFloat `json:"priceMap"`
}

// GetTopCountries lists countries with availability for one service. Each
// upstream row carries its price either directly or nested in a per-operator
// map; rows with no resolvable price keep a nil Price instead of failing.
func (c *Client) GetTopCountries(ctx context.Context, key, service string) ([]TopCountryQuote, error) {
	params := url.Values{}
	params.Set("service", service)
	params.Set("freePrice", "true")
	p, err := c.request(ctx, key, actionGetTopCountries, params)
	if err != nil {
		return nil, err
	}
	if !p.isJSON {
		if p.text == sentinelBadKey {
			return nil, ErrInvalidCredential
		}
		return nil, unexpected(actionGetTopCountries, p)
	}

	var byCountry map[string]topCountryWire
	if err := json.Unmarshal(p.doc, &byCountry); err != nil {
		return nil, unexpected(actionGetTopCountries, p)
	}

	out := make([]TopCountryQuote, 0, len(byCountry))
	for id, row := range byCountry {
		q := TopCountryQuote{Count: row.Count}
		q.CountryID = resolveCountryID(id, row.Country)
		if price, ok := resolvePrice(row); ok {
			q.Price = &price
		}
		out = append(out, q)
	}
	sortQuotes(out)
	return out, nil
}

func resolveCountryID(mapKey string, field flexString) int {
	if v, err := strconv.Atoi(string(field)); err == nil {
		return v
	}
	if v, err := strconv.Atoi(mapKey); err == nil {
		return v
	}
	return -1
}

func resolvePrice(row topCountryWire) (float64, bool) {
	if row.Price != nil {
		return float64(*row.Price), true
	}
	// Fall back to the first entry of the per-operator price map; iterate
	// keys in sorted order so the pick is stable.
	if len(row.PriceMap) > 0 {
		for _, op := range sortedKeys(row.PriceMap) {
			return float64(row.PriceMap[op]), true
		}
	}
	return 0, false
}

func sortedKeys(m map[string]flexFloat) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortQuotes(qs []TopCountryQuote) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].CountryID < qs[j].CountryID })
}

// GetNumber purchases a number for one verification attempt. Two legacy wire
// formats exist and the reply's runtime shape picks the decode path: the
// delimited string "ACCESS_NUMBER:<id>:<number>" and a JSON object with
// activationId/phoneNumber fields.
func (c *Client) GetNumber(ctx context.Context, key, service string, country int, operator string) (*Order, error) {
	params := url.Values{}
	params.Set("service", service)
	params.Set("country", strconv.Itoa(country))
	if operator != "" {
		params.Set("operator", operator)
	}
	p, err := c.request(ctx, key, actionGetNumber, params)
	if err != nil {
		return nil, err
	}

	if p.isJSON {
		var wire struct {
			ActivationID       flexString `json:"activationId"`
			PhoneNumber        flexString `json:"phoneNumber"`
			ActivationCost     flexFloat  `json:"activationCost"`
			ActivationOperator flexString `json:"activationOperator"`
			CountryCode        flexString `json:"countryCode"`
		}
		if err := json.Unmarshal(p.doc, &wire); err != nil || wire.ActivationID == "" {
			return nil, unexpected(actionGetNumber, p)
		}
		return &Order{
			ID:       string(wire.ActivationID),
			Number:   strings.TrimPrefix(string(wire.PhoneNumber), "+"),
			Cost:     float64(wire.ActivationCost),
			Operator: string(wire.ActivationOperator),
			Country:  string(wire.CountryCode),
		}, nil
	}

	switch p.text {
	case sentinelNoNumbers:
		return nil, ErrNoInventory
	case sentinelNoBalance:
		return nil, ErrInsufficientBalance
	case sentinelBadKey:
		return nil, ErrInvalidCredential
	}

	if rest, ok := strings.CutPrefix(p.text, numberPrefix); ok {
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return &Order{
				ID:     parts[0],
				Number: strings.TrimPrefix(parts[1], "+"),
			}, nil
		}
	}
	return nil, unexpected(actionGetNumber, p)
}

// GetStatus reads the current provider-owned state of an activation. The
// decode is total: any unrecognized reply becomes StatusUnknown with the raw
// payload preserved, so a poll never fails on new provider text.
func (c *Client) GetStatus(ctx context.Context, key, id string) (StatusSnapshot, error) {
	params := url.Values{}
	params.Set("id", id)
	p, err := c.request(ctx, key, actionGetStatus, params)
	if err != nil {
		return StatusSnapshot{}, err
	}
	if !p.isJSON {
		if code, ok := strings.CutPrefix(p.text, statusOKPrefix); ok {
			return StatusSnapshot{Status: StatusOK, Code: code}, nil
		}
		switch p.text {
		case statusWaitCode:
			return StatusSnapshot{Status: StatusWaiting}, nil
		case statusWaitRetry:
			return StatusSnapshot{Status: StatusRetry}, nil
		case statusCancel:
			return StatusSnapshot{Status: StatusCancelled}, nil
		case sentinelNoActivation:
			return StatusSnapshot{}, ErrOrderNotFound
		}
	}
	return StatusSnapshot{Status: StatusUnknown, Raw: p.raw()}, nil
}

// SetStatus asks the provider to advance an activation (ready, retry,
// complete, cancel) and passes the acknowledgement through verbatim.
func (c *Client) SetStatus(ctx context.Context, key, id string, status int) (string, error) {
	params := url.Values{}
	params.Set("id", id)
	params.Set("status", strconv.Itoa(status))
	p, err := c.request(ctx, key, actionSetStatus, params)
	if err != nil {
		return "", err
	}
	switch p.text {
	case sentinelBadKey:
		return "", ErrInvalidCredential
	case sentinelNoActivation:
		return "", ErrOrderNotFound
	}
	return p.raw(), nil
}
