package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerDeliversToSubscribers(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	a, unsubA := b.Subscribe()
	c, unsubC := b.Subscribe()
	defer unsubA()
	defer unsubC()

	n := b.Publish(Event{Type: PreviewReady, SessionID: "s1"})
	assert.Equal(t, 2, n)

	for _, ch := range []<-chan Event{a, c} {
		ev := <-ch
		assert.Equal(t, PreviewReady, ev.Type)
		assert.False(t, ev.Time.IsZero())
	}
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	_, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBuffer; i++ {
		require.Equal(t, 1, b.Publish(Event{Type: ListingReady}))
	}
	assert.Equal(t, 0, b.Publish(Event{Type: ListingReady}))
}

func TestBrokerUnsubscribeAndClose(t *testing.T) {
	b := NewBroker()

	ch, unsub := b.Subscribe()
	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())

	ch2, unsub2 := b.Subscribe()
	b.Close()
	_, ok = <-ch2
	assert.False(t, ok)
	unsub2()

	ch3, _ := b.Subscribe()
	_, ok = <-ch3
	assert.False(t, ok, "subscribing after close yields a closed channel")
}

func TestOriginChecker(t *testing.T) {
	req := func(origin, host string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+"/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	same := NewOriginChecker(nil)
	assert.True(t, same.Check(req("", "api.example.com")))
	assert.True(t, same.Check(req("https://api.example.com", "api.example.com")))
	assert.False(t, same.Check(req("https://evil.example.com", "api.example.com")))

	dev := NewOriginChecker([]string{"http://localhost:*"})
	assert.True(t, dev.Check(req("http://localhost:3000", "api")))
	assert.False(t, dev.Check(req("http://localhost:abc", "api")))
	assert.False(t, dev.Check(req("http://localhost:", "api")))

	all := NewOriginChecker([]string{"*"})
	assert.True(t, all.Check(req("https://anything", "api")))
}

func TestServeStreamsEvents(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve(w, r, b, NewOriginChecker([]string{"*"}))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	b.Publish(Event{Type: MutationDone, SessionID: "s1", Data: map[string]string{"op": "rename"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, MutationDone, ev.Type)
	assert.Equal(t, "s1", ev.SessionID)

	b.Close()
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
