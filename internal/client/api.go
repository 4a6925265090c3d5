package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventhub/internal/handler"
	"eventhub/internal/model"
	"eventhub/internal/service"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Temporary reports whether the failure came from the server side and the
// request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.Status >= http.StatusInternalServerError
}

// EventParams are the listing parameters accepted by ListEvents.
type EventParams struct {
	Page     int
	Limit    int
	Category string
	Location string
	Search   string
	Date     string
	Status   string
	Featured *bool
	Sort     string
}

func (p EventParams) values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("category", p.Category)
	set("location", p.Location)
	set("search", p.Search)
	set("date", p.Date)
	set("status", p.Status)
	set("sort", p.Sort)
	if p.Featured != nil {
		v.Set("featured", strconv.FormatBool(*p.Featured))
	}
	return v
}

// EventList is one page of events with its pagination metadata.
type EventList struct {
	Events      []model.Event `json:"data"`
	Count       int           `json:"count"`
	Total       int64         `json:"total"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
}

// API is a typed client for the event HTTP API.
type API struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPI creates a client for the server at baseURL (e.g. http://host:8080).
// A nil httpClient gets a client with a default timeout.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		http:    httpClient,
	}
}

// SetToken sets the bearer token sent with every request.
func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

// Token returns the current bearer token.
func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Login authenticates and stores the returned access token.
func (a *API) Login(ctx context.Context, email, password string) (*service.Session, error) {
	var session service.Session
	body := handler.LoginRequest{Email: email, Password: password}
	if err := a.do(ctx, http.MethodPost, "/auth/login", nil, body, &session); err != nil {
		return nil, err
	}
	a.SetToken(session.AccessToken)
	return &session, nil
}

func (a *API) ListEvents(ctx context.Context, params EventParams) (*EventList, error) {
	var list EventList
	if err := a.doRaw(ctx, http.MethodGet, "/events", params.values(), nil, &list); err != nil {
		return nil, err
	}
	if list.Events == nil {
		list.Events = []model.Event{}
	}
	return &list, nil
}

func (a *API) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var event model.Event
	if err := a.do(ctx, http.MethodGet, "/events/"+id.String(), nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (a *API) CreateEvent(ctx context.Context, req handler.CreateEventRequest) (*model.Event, error) {
	var event model.Event
	if err := a.do(ctx, http.MethodPost, "/events", nil, req, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (a *API) UpdateEvent(ctx context.Context, id uuid.UUID, req handler.UpdateEventRequest) (*model.Event, error) {
	var event model.Event
	if err := a.do(ctx, http.MethodPut, "/events/"+id.String(), nil, req, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (a *API) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	return a.do(ctx, http.MethodDelete, "/events/"+id.String(), nil, nil, nil)
}

func (a *API) Register(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var event model.Event
	if err := a.do(ctx, http.MethodPost, "/events/"+id.String()+"/register", nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (a *API) Unregister(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	var event model.Event
	if err := a.do(ctx, http.MethodDelete, "/events/"+id.String()+"/register", nil, nil, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// UserEvents lists the caller's events; kind is all, created or registered.
func (a *API) UserEvents(ctx context.Context, kind string) ([]model.Event, error) {
	q := url.Values{}
	if kind != "" {
		q.Set("type", kind)
	}
	var events []model.Event
	if err := a.do(ctx, http.MethodGet, "/events/user/me", q, nil, &events); err != nil {
		return nil, err
	}
	if events == nil {
		events = []model.Event{}
	}
	return events, nil
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// do sends the request and decodes the envelope's data field into out.
func (a *API) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var env envelope
	if err := a.doRaw(ctx, method, path, query, in, &env); err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// doRaw sends the request and decodes the whole body into out.
func (a *API) doRaw(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	endpoint := a.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env envelope
		if json.Unmarshal(raw, &env) == nil {
			if env.Message != "" {
				apiErr.Message = env.Message
			}
			apiErr.Code = env.Code
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
