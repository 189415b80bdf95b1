package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newBufferedConn() *Conn {
	return &Conn{
		send:   make(chan interface{}, sendBuffer),
		closed: make(chan struct{}),
	}
}

func fill(c *Conn) {
	for i := 0; i < sendBuffer; i++ {
		c.send <- i
	}
}

func TestSendDropsWhenBufferFull(t *testing.T) {
	c := newBufferedConn()
	fill(c)

	assert.False(t, c.Send("tick"))
}

func TestSendWaitDeliversOnceRoomFrees(t *testing.T) {
	c := newBufferedConn()
	fill(c)

	go func() {
		time.Sleep(20 * time.Millisecond)
		<-c.send
	}()

	assert.True(t, c.SendWait("navigate", time.Second))

	var last interface{}
	for len(c.send) > 0 {
		last = <-c.send
	}
	assert.Equal(t, "navigate", last)
}

func TestSendWaitGivesUp(t *testing.T) {
	c := newBufferedConn()
	fill(c)

	assert.False(t, c.SendWait("navigate", 20*time.Millisecond))

	c.Close()
	assert.False(t, c.SendWait("navigate", time.Second))
}
