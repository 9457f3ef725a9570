package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/welovename555/hero-sms-dashboard/internal/credential"
	"github.com/welovename555/hero-sms-dashboard/internal/herosms"
	"github.com/welovename555/hero-sms-dashboard/internal/poll"
)

// Handler maps each dashboard route onto one upstream client call. The
// proxy keeps no business state; every response is rebuilt from the
// provider on demand.
type Handler struct {
	Client       *herosms.Client
	Keys         *credential.Store
	Poller       *poll.Poller
	Log          *zap.Logger
	CookieName   string
	CookieMaxAge time.Duration
	EnvKey       string
}

func NewHandler(client *herosms.Client, keys *credential.Store, poller *poll.Poller, log *zap.Logger, cookieName string, cookieMaxAge time.Duration, envKey string) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Client:       client,
		Keys:         keys,
		Poller:       poller,
		Log:          log,
		CookieName:   cookieName,
		CookieMaxAge: cookieMaxAge,
		EnvKey:       envKey,
	}
}

// resolveKey picks the credential for this request: cookie, then persisted
// file, then environment.
func (h *Handler) resolveKey(r *http.Request) (string, error) {
	var cookieKey string
	if c, err := r.Cookie(h.CookieName); err == nil {
		cookieKey = c.Value
	}
	return credential.Resolve(cookieKey, h.Keys.Load(), h.EnvKey)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	balance, err := h.Client.GetBalance(r.Context(), key)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (h *Handler) Services(w http.ResponseWriter, r *http.Request) {
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	country, ok := optionalIntQuery(w, r, "country")
	if !ok {
		return
	}
	services, err := h.Client.GetServices(r.Context(), key, country)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (h *Handler) Countries(w http.ResponseWriter, r *http.Request) {
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	countries, err := h.Client.GetCountries(r.Context(), key)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, countries)
}

func (h *Handler) Operators(w http.ResponseWriter, r *http.Request) {
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	country, ok := optionalIntQuery(w, r, "country")
	if !ok {
		return
	}
	operators, err := h.Client.GetOperators(r.Context(), key, country)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, operators)
}

func (h *Handler) Prices(w http.ResponseWriter, r *http.Request) {
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	country, ok := optionalIntQuery(w, r, "country")
	if !ok {
		return
	}
	prices, err := h.Client.GetPrices(r.Context(), key, r.URL.Query().Get("service"), country)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, prices)
}

func (h *Handler) TopPrices(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	if service == "" {
		writeError(w, http.StatusBadRequest, "service is required")
		return
	}
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	quotes, err := h.Client.GetTopCountries(r.Context(), key, service)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

type buyRequest struct {
	Country  *int   `json:"country"`
	Service  string `json:"service"`
	Operator string `json:"operator"`
}

func (h *Handler) BuyNumber(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Service == "" {
		writeError(w, http.StatusBadRequest, "service is required")
		return
	}
	if req.Country == nil {
		writeError(w, http.StatusBadRequest, "country is required")
		return
	}
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	order, err := h.Client.GetNumber(r.Context(), key, req.Service, *req.Country, req.Operator)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	orders, err := h.Client.GetActiveActivations(r.Context(), key)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, orders)
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	history, err := h.Client.GetHistory(r.Context(), key)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, history)
}

func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	snap, err := h.Client.GetStatus(r.Context(), key, id)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type actionRequest struct {
	Status *int `json:"status"`
}

func (h *Handler) OrderAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "orderId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Status == nil || !herosms.ValidAction(*req.Status) {
		writeError(w, http.StatusBadRequest, "status must be one of 1, 3, 6, 8")
		return
	}
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}
	ack, err := h.Client.SetStatus(r.Context(), key, id, *req.Status)
	if err != nil {
		writeClientError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": ack})
}

type dashboardResponse struct {
	Orders    json.RawMessage        `json:"orders"`
	Services  []herosms.ServiceEntry `json:"services"`
	Countries json.RawMessage        `json:"countries"`
}

// Dashboard joins the three independent catalog fetches the initial page
// needs. The fetches run concurrently and the response waits for all of
// them; any single failure fails the load.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	key, err := h.resolveKey(r)
	if err != nil {
		writeClientError(w, err)
		return
	}

	var (
		resp dashboardResponse
		errs [3]error
		wg   sync.WaitGroup
	)
	ctx := r.Context()
	wg.Add(3)
	go func() {
		defer wg.Done()
		resp.Orders, errs[0] = h.Client.GetActiveActivations(ctx, key)
	}()
	go func() {
		defer wg.Done()
		resp.Services, errs[1] = h.Client.GetServices(ctx, key, nil)
	}()
	go func() {
		defer wg.Done()
		resp.Countries, errs[2] = h.Client.GetCountries(ctx, key)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			writeClientError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// optionalIntQuery parses an optional integer query parameter. A malformed
// value writes a 400 and reports ok=false.
func optionalIntQuery(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return nil, false
	}
	return &v, true
}
