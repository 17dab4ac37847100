package proxy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_NormalizesEntries(t *testing.T) {
	p := NewPool([]string{"10.0.0.1:3128", " socks5://10.0.0.2:1080 ", "", "http://"})
	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "http://10.0.0.1:3128", p.Next())
	assert.Equal(t, "socks5://10.0.0.2:1080", p.Next())
}

func TestPool_RotationSkipsBenched(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewPool([]string{"http://p1", "http://p2", "http://p3"})
	p.now = func() time.Time { return now }

	assert.Equal(t, "http://p1", p.Next())
	p.Failed("http://p2")
	assert.Equal(t, "http://p3", p.Next())
	assert.Equal(t, "http://p1", p.Next())
	assert.Equal(t, "http://p3", p.Next())

	p.Succeeded("http://p2")
	assert.Equal(t, "http://p1", p.Next())
	assert.Equal(t, "http://p2", p.Next())
}

func TestPool_CooldownExpires(t *testing.T) {
	now := time.Unix(0, 0)
	p := NewPool([]string{"http://p1", "http://p2"})
	p.now = func() time.Time { return now }

	p.Failed("http://p1")
	assert.Equal(t, "http://p2", p.Next())
	assert.Equal(t, "http://p2", p.Next())

	now = now.Add(DefaultCooldown)
	assert.Equal(t, "http://p1", p.Next())
}

func TestPool_AllBenchedStillRotates(t *testing.T) {
	p := NewPool([]string{"http://p1", "http://p2"})
	p.Failed("http://p1")
	p.Failed("http://p2")

	assert.Equal(t, "http://p1", p.Next())
	assert.Equal(t, "http://p2", p.Next())
}

func TestPool_Empty(t *testing.T) {
	p := NewPool(nil)
	assert.Equal(t, "", p.Next())
	p.Failed("")
	assert.Zero(t, p.Len())
}

func TestTransport_UsesPinnedProxy(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://www.naiin.com/", nil)
	require.NoError(t, err)

	u, err := Transport(Pin(req, "http://10.0.0.1:3128"))
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "10.0.0.1:3128", u.Host)
}
