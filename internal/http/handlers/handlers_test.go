package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/http/middleware"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/services"
)

// ----- Fakes -----

type fakeDispatcher struct {
	gotUpdate gateway.Update
	updateErr error

	gotPost gateway.ChannelPost
	result  *services.IngestResult
	postErr error
}

func (f *fakeDispatcher) HandleUpdate(_ context.Context, upd gateway.Update) error {
	f.gotUpdate = upd
	return f.updateErr
}

func (f *fakeDispatcher) HandleChannelPost(_ context.Context, p gateway.ChannelPost) (*services.IngestResult, error) {
	f.gotPost = p
	return f.result, f.postErr
}

type fakeOrders struct {
	view *repo.OrderView
	err  error
}

func (f *fakeOrders) Get(context.Context, string) (*repo.OrderView, error) { return f.view, f.err }

type fakeCompleter struct {
	gotOperator int64
	gotCode     string
	err         error
}

func (f *fakeCompleter) Complete(_ context.Context, op int64, code string) (*domain.Order, error) {
	f.gotOperator, f.gotCode = op, code
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{Code: code, Status: domain.OrderStatusCompleted}, nil
}

type fakePosts struct {
	gotKeyword string
	gotLimit   int
	posts      []domain.Post
	err        error
}

func (f *fakePosts) SearchLimit(_ context.Context, kw string, limit int) ([]domain.Post, error) {
	f.gotKeyword, f.gotLimit = kw, limit
	return f.posts, f.err
}

type fakeUsers struct {
	calls []string
	err   error
}

func (f *fakeUsers) record(op string, id int64) error {
	f.calls = append(f.calls, op+":"+strconv.FormatInt(id, 10))
	return f.err
}
func (f *fakeUsers) Block(_ context.Context, id int64) error   { return f.record("block", id) }
func (f *fakeUsers) Unblock(_ context.Context, id int64) error { return f.record("unblock", id) }
func (f *fakeUsers) Delete(_ context.Context, id int64) error  { return f.record("delete", id) }
func (f *fakeUsers) Stats(context.Context) (repo.DeskStats, error) {
	return repo.DeskStats{Users: 3, Posts: 7}, f.err
}

type fixture struct {
	r     *gin.Engine
	disp  *fakeDispatcher
	ords  *fakeOrders
	comp  *fakeCompleter
	posts *fakePosts
	users *fakeUsers
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		disp:  &fakeDispatcher{},
		ords:  &fakeOrders{},
		comp:  &fakeCompleter{},
		posts: &fakePosts{},
		users: &fakeUsers{},
	}
	h := New(Deps{Dispatcher: f.disp, Orders: f.ords, Completer: f.comp, Posts: f.posts, Users: f.users, MaxPostLimit: 50})
	r := gin.New()
	r.POST("/webhook/updates", h.Update)
	r.POST("/webhook/channel-posts", h.ChannelPost)
	api := r.Group("/api", middleware.Operator(func(id int64) bool { return id == 900 }))
	api.GET("/stats", h.Stats)
	api.GET("/orders/:code", h.GetOrder)
	api.POST("/orders/:code/complete", h.CompleteOrder)
	api.GET("/posts", h.SearchPosts)
	api.POST("/users/:id/block", h.BlockUser)
	api.POST("/users/:id/unblock", h.UnblockUser)
	api.DELETE("/users/:id", h.DeleteUser)
	f.r = r
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if strings.HasPrefix(path, "/api") {
		req.Header.Set(middleware.HeaderOperatorID, "900")
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er.Code
}

// ----- Webhook -----

func TestUpdate_DecodesCallback(t *testing.T) {
	f := newFixture()
	body := `{"update_id":5,"callback_query":{"id":"cb","from":{"id":7},"data":"service_3"}}`
	w := f.do(http.MethodPost, "/webhook/updates", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	cb := f.disp.gotUpdate.Callback
	if f.disp.gotUpdate.ID != 5 || cb == nil || cb.From.ID != 7 || cb.Data != "service_3" {
		t.Fatalf("update = %+v", f.disp.gotUpdate)
	}
}

func TestUpdate_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		body string
		want int
		code string
	}{
		{nil, `not json`, http.StatusBadRequest, ErrCodeBadRequest},
		{nil, `{"update_id":1,"message":{"message_id":1,"from":{},"text":"x"}}`, http.StatusBadRequest, ErrCodeBadRequest},
		{services.ErrMalformedUpdate, `{"update_id":1}`, http.StatusBadRequest, ErrCodeMalformedUpdate},
		{domain.ErrUnknownAction, `{"update_id":1}`, http.StatusBadRequest, ErrCodeUnknownAction},
		{errors.New("db down"), `{"update_id":1}`, http.StatusInternalServerError, ErrCodeUpdateFailed},
	}
	for _, tc := range cases {
		f := newFixture()
		f.disp.updateErr = tc.err
		w := f.do(http.MethodPost, "/webhook/updates", tc.body)
		if w.Code != tc.want || errCode(t, w) != tc.code {
			t.Errorf("err=%v body=%s: got %d %s", tc.err, tc.body, w.Code, w.Body.String())
		}
	}
}

func TestChannelPost(t *testing.T) {
	f := newFixture()
	f.disp.result = &services.IngestResult{
		Post:    &domain.Post{ID: 11},
		Tags:    []string{"deals"},
		Evicted: []uint{1},
		Report: services.DeliveryReport{Attempts: []services.DeliveryAttempt{
			{Recipient: 1}, {Recipient: 2, Err: errors.New("x")},
		}},
	}
	w := f.do(http.MethodPost, "/webhook/channel-posts", `{"update_id":9,"message_id":42,"caption":"Sale #deals"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp IngestResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.PostID != 11 || resp.Delivered != 1 || resp.Failed != 1 || len(resp.Evicted) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if f.disp.gotPost.MessageID != 42 || f.disp.gotPost.Caption != "Sale #deals" {
		t.Fatalf("post = %+v", f.disp.gotPost)
	}

	f.disp.result = nil
	w = f.do(http.MethodPost, "/webhook/channel-posts", `{"update_id":9,"message_id":42}`)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || !resp.Duplicate {
		t.Fatalf("duplicate: %d %s", w.Code, w.Body.String())
	}

	if w := f.do(http.MethodPost, "/webhook/channel-posts", `{"update_id":9}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing message_id: %d", w.Code)
	}
	f.disp.postErr = errors.New("db down")
	if w := f.do(http.MethodPost, "/webhook/channel-posts", `{"message_id":1}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("ingest failure: %d", w.Code)
	}
}

// ----- Operator API -----

func TestGetOrder(t *testing.T) {
	f := newFixture()
	docs := "need urgent"
	f.ords.view = &repo.OrderView{Code: "abcd1234", UserID: 5, ServiceTitle: "Certificate", Status: "new", Docs: &docs, CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	w := f.do(http.MethodGet, "/api/orders/abcd1234", "")
	var got OrderResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if w.Code != http.StatusOK || got.ServiceTitle != "Certificate" || got.CreatedAt != "2025-01-02T03:04:05Z" {
		t.Fatalf("%d %+v", w.Code, got)
	}

	f.ords.view, f.ords.err = nil, services.ErrOrderNotFound
	if w := f.do(http.MethodGet, "/api/orders/zzz", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing order: %d", w.Code)
	}
}

func TestCompleteOrder_UsesCallingOperator(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodPost, "/api/orders/abcd1234/complete", "")
	if w.Code != http.StatusOK || f.comp.gotOperator != 900 || f.comp.gotCode != "abcd1234" {
		t.Fatalf("%d op=%d code=%s", w.Code, f.comp.gotOperator, f.comp.gotCode)
	}
	f.comp.err = services.ErrOrderNotFound
	if w := f.do(http.MethodPost, "/api/orders/nope/complete", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown code: %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/orders/x/complete", nil)
	req.Header.Set(middleware.HeaderOperatorID, "1")
	w = httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-operator: %d", w.Code)
	}
}

func TestSearchPosts(t *testing.T) {
	f := newFixture()
	f.posts.posts = []domain.Post{{ID: 1, SourceID: 42, Title: "Sale"}}
	w := f.do(http.MethodGet, "/api/posts?q=sale&limit=500", "")
	if w.Code != http.StatusOK || f.posts.gotKeyword != "sale" || f.posts.gotLimit != 50 {
		t.Fatalf("%d kw=%q limit=%d", w.Code, f.posts.gotKeyword, f.posts.gotLimit)
	}
	if !strings.Contains(w.Body.String(), `"source_id":42`) {
		t.Fatalf("body = %s", w.Body.String())
	}
	f.posts.err = services.ErrEmptyKeyword
	if w := f.do(http.MethodGet, "/api/posts", ""); w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeEmptyKeyword {
		t.Fatalf("empty keyword: %d", w.Code)
	}
}

func TestModeration(t *testing.T) {
	f := newFixture()
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/users/5/block"},
		{http.MethodPost, "/api/users/5/unblock"},
		{http.MethodDelete, "/api/users/5"},
	} {
		if w := f.do(tc.method, tc.path, ""); w.Code != http.StatusNoContent {
			t.Fatalf("%s %s: %d", tc.method, tc.path, w.Code)
		}
	}
	if strings.Join(f.users.calls, ",") != "block:5,unblock:5,delete:5" {
		t.Fatalf("calls = %v", f.users.calls)
	}
	if w := f.do(http.MethodPost, "/api/users/abc/block", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}
	f.users.err = services.ErrUserNotFound
	if w := f.do(http.MethodDelete, "/api/users/6", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing user: %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	f := newFixture()
	w := f.do(http.MethodGet, "/api/stats", "")
	var st repo.DeskStats
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if w.Code != http.StatusOK || st.Users != 3 || st.Posts != 7 {
		t.Fatalf("%d %+v", w.Code, st)
	}
}

func TestFail_LogsServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	lg := zerolog.New(&buf)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-1")
		c.Set("logger", &lg)
		c.Next()
	})
	r.GET("/boom", func(c *gin.Context) { fail(c, http.StatusInternalServerError, ErrCodeInternal, "kaboom") })
	r.GET("/missing", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "nope") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != 500 || er.RequestID != "rid-1" || !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("%d %+v log=%s", w.Code, er, buf.String())
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if buf.Len() != 0 {
		t.Fatalf("4xx should not log: %s", buf.String())
	}
}
