package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/edgeagent/internal/log"
	"github.com/mattjoyce/edgeagent/internal/requests/mocks"
)

const (
	testRequestPayload  = `{"prop2":"foo","prop1":100}`
	testResponsePayload = `{"prop3":"foo","prop4":100}`
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json") // Suppress logs in tests
	os.Exit(m.Run())
}

func newMockHandler(ctrl *gomock.Controller, name string) *mocks.MockHandler {
	h := mocks.NewMockHandler(ctrl)
	h.EXPECT().Name().Return(name).AnyTimes()
	return h
}

// requireErrorMessage asserts the payload is a JSON object with a non-blank message.
func requireErrorMessage(t *testing.T, resp Response) string {
	t.Helper()
	require.NotNil(t, resp.Payload, "error responses must carry a payload")
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(*resp.Payload), &body))
	msg, ok := body["message"].(string)
	require.True(t, ok, "message must be a string: %s", *resp.Payload)
	require.NotEmpty(t, strings.TrimSpace(msg))
	return msg
}

func TestProcessRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newMockHandler(ctrl, "req1")
	h.EXPECT().Handle(gomock.Any(), gomock.Any()).Return(Ptr(testResponsePayload), nil).Times(2)

	d := New([]Handler{h}, 60*time.Second)
	ctx := context.Background()

	resp := d.ProcessRequest(ctx, "req", Ptr(testRequestPayload))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	requireErrorMessage(t, resp)

	resp = d.ProcessRequest(ctx, "", Ptr(testRequestPayload))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	requireErrorMessage(t, resp)

	resp = d.ProcessRequest(ctx, "   ", Ptr(testRequestPayload))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	requireErrorMessage(t, resp)

	resp = d.ProcessRequest(ctx, "req1", Ptr(testRequestPayload))
	assert.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Payload)
	assert.Equal(t, testResponsePayload, *resp.Payload)

	resp = d.ProcessRequest(ctx, "ReQ1", Ptr(testRequestPayload))
	assert.Equal(t, http.StatusOK, resp.Status)
	require.NotNil(t, resp.Payload)
	assert.Equal(t, testResponsePayload, *resp.Payload)
}

func TestProcessRequest_PassesPayloadThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := newMockHandler(ctrl, "req1")
	h.EXPECT().Handle(gomock.Any(), Ptr(testRequestPayload)).Return(nil, nil)
	h.EXPECT().Handle(gomock.Any(), gomock.Nil()).Return(nil, nil)

	d := New([]Handler{h}, time.Minute)

	resp := d.ProcessRequest(context.Background(), "req1", Ptr(testRequestPayload))
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Nil(t, resp.Payload)

	resp = d.ProcessRequest(context.Background(), "req1", nil)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Nil(t, resp.Payload)
}

func TestProcessRequest_UnknownNameMessage(t *testing.T) {
	d := New(nil, time.Minute)
	resp := d.ProcessRequest(context.Background(), "restartModule", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Contains(t, requireErrorMessage(t, resp), "restartModule")

	resp = d.ProcessRequest(context.Background(), "", nil)
	assert.Equal(t, "request name missing", requireErrorMessage(t, resp))
}

func TestProcessRequestWithHandlerError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"null argument", NullArgument("payload"), http.StatusBadRequest},
		{"invalid argument", InvalidArgument("id %q is not valid", "x"), http.StatusBadRequest},
		{"wrapped invalid argument sentinel", fmt.Errorf("decode: %w", ErrInvalidArgument), http.StatusBadRequest},
		{"client error", ClientError("bad schema", errors.New("eof")), http.StatusBadRequest},
		{"invalid operation", InvalidOperation("module %s not found", "m"), http.StatusInternalServerError},
		{"unclassified error", errors.New("boom"), http.StatusInternalServerError},
		{"blank error text", errors.New(" "), http.StatusInternalServerError},
		{"caller cancellation surfaced by handler", context.Canceled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := newMockHandler(ctrl, "req1")
			h.EXPECT().Handle(gomock.Any(), Ptr(testRequestPayload)).Return(nil, tt.err)

			d := New([]Handler{h}, time.Minute)
			resp := d.ProcessRequest(context.Background(), "req1", Ptr(testRequestPayload))

			assert.Equal(t, tt.wantStatus, resp.Status)
			requireErrorMessage(t, resp)
		})
	}
}

func TestProcessRequest_HandlerPanic(t *testing.T) {
	h := NewHandlerFunc("req1", func(ctx context.Context, payload *string) (*string, error) {
		panic("unexpected state")
	})
	d := New([]Handler{h}, time.Minute)

	resp := d.ProcessRequest(context.Background(), "req1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, requireErrorMessage(t, resp), "unexpected state")
}

func TestRequestCancelled(t *testing.T) {
	// The handler ignores ctx entirely; the dispatcher must stop waiting anyway.
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	h := NewHandlerFunc("req1", func(ctx context.Context, payload *string) (*string, error) {
		select {
		case <-release:
		case <-time.After(60 * time.Second):
		}
		return Ptr(testResponsePayload), nil
	})
	d := New([]Handler{h}, 100*time.Millisecond)

	done := make(chan Response, 1)
	go func() { done <- d.ProcessRequest(context.Background(), "req1", Ptr(testRequestPayload)) }()

	select {
	case resp := <-done:
		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		assert.Contains(t, requireErrorMessage(t, resp), "timed out")
	case <-time.After(2 * time.Second):
		t.Fatal("ProcessRequest did not resolve after the timeout elapsed")
	}
}

func TestRequestCancelled_CooperativeHandler(t *testing.T) {
	observed := make(chan error, 1)
	h := NewHandlerFunc("req1", func(ctx context.Context, payload *string) (*string, error) {
		<-ctx.Done()
		observed <- ctx.Err()
		return nil, ctx.Err()
	})
	d := New([]Handler{h}, 50*time.Millisecond)

	resp := d.ProcessRequest(context.Background(), "req1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	requireErrorMessage(t, resp)

	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("handler never observed cancellation")
	}
}

func TestProcessRequest_CallerDeadlineShorterThanTimeout(t *testing.T) {
	h := NewHandlerFunc("req1", func(ctx context.Context, payload *string) (*string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	d := New([]Handler{h}, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	resp := d.ProcessRequest(ctx, "req1", nil)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)

	msg := requireErrorMessage(t, resp)
	assert.True(t, strings.HasPrefix(msg, "request timed out after "), msg)
	assert.NotContains(t, msg, "1m0s")
}

func TestProcessRequest_TimeoutMessageNamesDispatcherTimeout(t *testing.T) {
	h := NewHandlerFunc("req1", func(ctx context.Context, payload *string) (*string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	d := New([]Handler{h}, 50*time.Millisecond)

	// A looser caller deadline leaves the dispatcher's own timeout in charge.
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	resp := d.ProcessRequest(ctx, "req1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Equal(t, "request timed out after 50ms", requireErrorMessage(t, resp))
}

func TestProcessRequest_CallerCancellation(t *testing.T) {
	h := NewHandlerFunc("req1", func(ctx context.Context, payload *string) (*string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	d := New([]Handler{h}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	resp := d.ProcessRequest(ctx, "req1", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.NotContains(t, requireErrorMessage(t, resp), "timed out")
}

func TestProcessRequest_TimeoutScopesAreIndependent(t *testing.T) {
	slow := NewHandlerFunc("slow", func(ctx context.Context, payload *string) (*string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	fast := NewHandlerFunc("fast", func(ctx context.Context, payload *string) (*string, error) {
		time.Sleep(20 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return payload, nil
	})
	d := New([]Handler{slow, fast}, 150*time.Millisecond)

	var wg sync.WaitGroup
	results := make([]Response, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "fast"
			if i%2 == 0 {
				name = "slow"
			}
			results[i] = d.ProcessRequest(context.Background(), name, Ptr(fmt.Sprintf(`{"n":%d}`, i)))
		}(i)
	}
	wg.Wait()

	for i, resp := range results {
		if i%2 == 0 {
			assert.Equal(t, http.StatusInternalServerError, resp.Status, "slow request %d", i)
			continue
		}
		assert.Equal(t, http.StatusOK, resp.Status, "fast request %d", i)
		require.NotNil(t, resp.Payload)
		assert.Equal(t, fmt.Sprintf(`{"n":%d}`, i), *resp.Payload)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []map[string]any
}

func (p *recordingPublisher) Publish(eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, _ := data.(map[string]any)
	m["type"] = eventType
	p.events = append(p.events, m)
}

func TestProcessRequest_PublishesCompletion(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewHandlerFunc("ping", func(ctx context.Context, payload *string) (*string, error) {
		return nil, nil
	})
	d := New([]Handler{h}, time.Minute, WithPublisher(pub))

	d.ProcessRequest(context.Background(), "PING", nil)
	d.ProcessRequest(context.Background(), "nope", nil)

	require.Len(t, pub.events, 2)
	assert.Equal(t, EventRequestCompleted, pub.events[0]["type"])
	assert.Equal(t, http.StatusOK, pub.events[0]["status"])
	assert.Equal(t, "success", pub.events[0]["outcome"])
	assert.NotEmpty(t, pub.events[0]["request_id"])
	assert.Equal(t, http.StatusBadRequest, pub.events[1]["status"])
	assert.Equal(t, "invalid_request", pub.events[1]["outcome"])
}

func TestNew_AppliesMiddlewareInOrder(t *testing.T) {
	var calls []string
	tag := func(label string) Middleware {
		return func(h Handler) Handler {
			return NewHandlerFunc(h.Name(), func(ctx context.Context, payload *string) (*string, error) {
				calls = append(calls, label)
				return h.Handle(ctx, payload)
			})
		}
	}
	h := NewHandlerFunc("req1", func(ctx context.Context, payload *string) (*string, error) {
		calls = append(calls, "handler")
		return Ptr("ok"), nil
	})

	d := New([]Handler{h}, time.Minute, WithMiddleware(tag("outer"), tag("inner"), Traced()))
	resp := d.ProcessRequest(context.Background(), "REQ1", nil)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
	assert.Equal(t, []string{"req1"}, d.Handlers())
}

func TestNew_NonPositiveTimeoutUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New(nil, 0).Timeout())
	assert.Equal(t, DefaultTimeout, New(nil, -time.Second).Timeout())
	assert.Equal(t, 5*time.Second, New(nil, 5*time.Second).Timeout())
}
