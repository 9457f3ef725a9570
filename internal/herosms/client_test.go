package herosms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newStubClient serves every upstream request with the given body and
// returns a client pointed at the stub.
func newStubClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, zap.NewNop())
}

func staticReply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func TestGetBalance(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    float64
		wantErr error
	}{
		{name: "plain amount", reply: "ACCESS_BALANCE:42.50", want: 42.5},
		{name: "integer amount", reply: "ACCESS_BALANCE:0", want: 0},
		{name: "bad key sentinel", reply: "BAD_KEY", wantErr: ErrInvalidCredential},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newStubClient(t, staticReply(tt.reply))
			got, err := c.GetBalance(context.Background(), "k")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetBalanceRejectsOtherShapes(t *testing.T) {
	for _, reply := range []string{"WRONG_PREFIX:10", "ACCESS_BALANCE:abc", `{"balance": 10}`, ""} {
		c := newStubClient(t, staticReply(reply))
		_, err := c.GetBalance(context.Background(), "k")
		var unexpected *UnexpectedResponseError
		assert.ErrorAs(t, err, &unexpected, "reply %q must not decode", reply)
	}
}

func TestGetNumberJSONFormat(t *testing.T) {
	c := newStubClient(t, staticReply(`{
		"activationId": "123",
		"phoneNumber": "+12345",
		"activationCost": 20.5,
		"activationOperator": "any",
		"countryCode": "0"
	}`))

	order, err := c.GetNumber(context.Background(), "k", "tg", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "123", order.ID)
	assert.Equal(t, "12345", order.Number, "leading + must be stripped")
	assert.Equal(t, 20.5, order.Cost)
	assert.Equal(t, "any", order.Operator)
	assert.Equal(t, "0", order.Country)
}

func TestGetNumberNumericActivationID(t *testing.T) {
	c := newStubClient(t, staticReply(`{"activationId": 987, "phoneNumber": "79261234", "activationCost": "12.3"}`))

	order, err := c.GetNumber(context.Background(), "k", "tg", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "987", order.ID)
	assert.Equal(t, 12.3, order.Cost)
}

func TestGetNumberLegacyStringFormat(t *testing.T) {
	c := newStubClient(t, staticReply("ACCESS_NUMBER:9:5551234"))

	order, err := c.GetNumber(context.Background(), "k", "tg", 0, "")
	require.NoError(t, err)
	assert.Equal(t, "9", order.ID)
	assert.Equal(t, "5551234", order.Number)
}

func TestGetNumberSentinels(t *testing.T) {
	tests := []struct {
		reply   string
		wantErr error
	}{
		{reply: "NO_NUMBERS", wantErr: ErrNoInventory},
		{reply: "NO_BALANCE", wantErr: ErrInsufficientBalance},
		{reply: "BAD_KEY", wantErr: ErrInvalidCredential},
	}
	for _, tt := range tests {
		c := newStubClient(t, staticReply(tt.reply))
		_, err := c.GetNumber(context.Background(), "k", "tg", 0, "")
		assert.ErrorIs(t, err, tt.wantErr, "reply %q", tt.reply)
	}
}

func TestGetNumberUnknownTextCarriesPayload(t *testing.T) {
	c := newStubClient(t, staticReply("WRONG_SERVICE"))

	_, err := c.GetNumber(context.Background(), "k", "tg", 0, "")
	var unexpected *UnexpectedResponseError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, "WRONG_SERVICE", unexpected.Raw)
}

func TestGetStatusIsTotal(t *testing.T) {
	tests := []struct {
		reply string
		want  StatusSnapshot
	}{
		{reply: "STATUS_OK:482913", want: StatusSnapshot{Status: StatusOK, Code: "482913"}},
		{reply: "STATUS_WAIT_CODE", want: StatusSnapshot{Status: StatusWaiting}},
		{reply: "STATUS_WAIT_RETRY", want: StatusSnapshot{Status: StatusRetry}},
		{reply: "STATUS_CANCEL", want: StatusSnapshot{Status: StatusCancelled}},
		{reply: "SOMETHING_NEW", want: StatusSnapshot{Status: StatusUnknown, Raw: "SOMETHING_NEW"}},
		{reply: `{"weird": true}`, want: StatusSnapshot{Status: StatusUnknown, Raw: `{"weird": true}`}},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			c := newStubClient(t, staticReply(tt.reply))
			snap, err := c.GetStatus(context.Background(), "k", "1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap)
		})
	}
}

func TestGetStatusNoActivation(t *testing.T) {
	c := newStubClient(t, staticReply("NO_ACTIVATION"))
	_, err := c.GetStatus(context.Background(), "k", "1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetServicesAcceptsBothShapes(t *testing.T) {
	bare := `[{"code":"tg","name":"Telegram"},{"code":"wa","name":"WhatsApp"}]`
	wrapped := `{"services":[{"code":"tg","name":"Telegram"},{"code":"wa","name":"WhatsApp"}]}`
	want := []ServiceEntry{{Code: "tg", Name: "Telegram"}, {Code: "wa", Name: "WhatsApp"}}

	for _, reply := range []string{bare, wrapped} {
		c := newStubClient(t, staticReply(reply))
		got, err := c.GetServices(context.Background(), "k", nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestGetServicesIsIdempotent(t *testing.T) {
	c := newStubClient(t, staticReply(`[{"code":"tg","name":"Telegram"}]`))

	first, err := c.GetServices(context.Background(), "k", nil)
	require.NoError(t, err)
	second, err := c.GetServices(context.Background(), "k", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetTopCountriesPriceFallback(t *testing.T) {
	c := newStubClient(t, staticReply(`{
		"0": {"country": 0, "count": 100, "price": 20.5},
		"7": {"country": 7, "count": 3, "priceMap": {"beeline": 12.5, "mts": 14}},
		"16": {"country": 16, "count": 0}
	}`))

	quotes, err := c.GetTopCountries(context.Background(), "k", "tg")
	require.NoError(t, err)
	require.Len(t, quotes, 3)

	require.NotNil(t, quotes[0].Price)
	assert.Equal(t, 20.5, *quotes[0].Price)
	assert.Equal(t, 100, quotes[0].Count)

	require.NotNil(t, quotes[1].Price, "nested operator price must resolve")
	assert.Equal(t, 12.5, *quotes[1].Price)

	assert.Nil(t, quotes[2].Price, "missing price must be tagged, not an error")
	assert.Equal(t, 16, quotes[2].CountryID)
}

func TestRequestSendsKeyAndAction(t *testing.T) {
	var gotKey, gotAction string
	c := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		gotAction = r.URL.Query().Get("action")
		_, _ = w.Write([]byte("ACCESS_BALANCE:1"))
	})

	_, err := c.GetBalance(context.Background(), "secret-key")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, "getBalance", gotAction)
}

func TestTransportFailuresWrapAsUnavailable(t *testing.T) {
	c := newStubClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := c.GetBalance(context.Background(), "k")
	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Error(), "upstream exploded")

	// Connection refused takes the same path.
	dead := NewClient("http://127.0.0.1:1", time.Second, zap.NewNop())
	_, err = dead.GetBalance(context.Background(), "k")
	assert.ErrorAs(t, err, &unavailable)
}

func TestSetStatusPassesAckThrough(t *testing.T) {
	c := newStubClient(t, staticReply("ACCESS_ACTIVATION"))

	ack, err := c.SetStatus(context.Background(), "k", "9", ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, "ACCESS_ACTIVATION", ack)
}

func TestSetStatusRejectsMissingActivation(t *testing.T) {
	c := newStubClient(t, staticReply("NO_ACTIVATION"))
	_, err := c.SetStatus(context.Background(), "k", "9", ActionCancel)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
