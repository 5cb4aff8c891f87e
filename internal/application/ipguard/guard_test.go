package ipguard

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"175.99.72.37", "175.99.72.37"},
		{"::ffff:175.99.72.37", "175.99.72.37"},
		{"175.99.72.37:54321", "175.99.72.37"},
		{"::ffff:175.99.72.37:443", "175.99.72.37"},
		{"  61.219.166.3 ", "61.219.166.3"},
		{"[::1]:8080", "::1"},
		{"::1", "::1"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestGuard_ProductionSources(t *testing.T) {
	g := New(Options{})

	tests := []struct {
		addr    string
		allowed bool
	}{
		{"175.99.72.1", true},
		{"175.99.72.37", true},
		{"175.99.72.255", true},
		{"61.219.166.8", true},
		{"61.219.166.200", true},
		{"::ffff:175.99.72.5", true},
		{"175.99.72.256", false},
		{"175.99.72.x", false},
		{"175.99.72.", false},
		{"175.99.72.1.5", false},
		{"175.99.72.+5", false},
		{"175.99.72.-0", false},
		{"175.99.72.05", false},
		{"175.99.72.0", true},
		{"8.8.8.8", false},
		{"127.0.0.1", false},
		{"59.124.47.1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.allowed, g.IsAllowed(tt.addr))
		})
	}
}

func TestValidOctet(t *testing.T) {
	for _, s := range []string{"0", "7", "42", "199", "255"} {
		assert.True(t, validOctet(s), s)
	}
	for _, s := range []string{"", "256", "999", "1000", "+5", "-0", "-1", "00", "012", "1a", " 1", "\u0661"} {
		assert.False(t, validOctet(s), s)
	}
}

func TestGuard_TestSources(t *testing.T) {
	g := New(Options{AllowTestSources: true})

	assert.True(t, g.AllowsTestSources())
	assert.True(t, g.IsAllowed("127.0.0.1"))
	assert.True(t, g.IsAllowed("[::1]:3000"))
	assert.True(t, g.IsAllowed("localhost"))
	assert.True(t, g.IsAllowed("59.124.47.3"))
	assert.True(t, g.IsAllowed("59.124.47.99"))
	assert.False(t, g.IsAllowed("10.0.0.1"))
}

func TestGuard_ValidateReportsReason(t *testing.T) {
	g := New(Options{})

	res := g.Validate("8.8.8.8:80")

	assert.False(t, res.Allowed)
	assert.Equal(t, "8.8.8.8", res.Normalized)
	assert.Contains(t, res.Reason, "8.8.8.8")

	ok := g.Validate("175.99.72.37")
	assert.True(t, ok.Allowed)
	assert.Empty(t, ok.Reason)
}

func TestGuard_CustomAddresses(t *testing.T) {
	g := New(Options{Extra: []string{"10.1.1.1"}})

	assert.True(t, g.IsAllowed("10.1.1.1"))

	g.AddIP("::ffff:10.2.2.2")
	assert.True(t, g.IsAllowed("10.2.2.2:9999"))

	g.RemoveIP("10.1.1.1")
	assert.False(t, g.IsAllowed("10.1.1.1"))

	g.AddIP("   ")
	assert.False(t, g.IsAllowed(""))
}

func TestGuard_ConcurrentMutation(t *testing.T) {
	g := New(Options{})
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		ip := fmt.Sprintf("10.0.0.%d", i)
		go func() {
			defer wg.Done()
			g.AddIP(ip)
		}()
		go func() {
			defer wg.Done()
			_ = g.IsAllowed(ip)
		}()
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		assert.True(t, g.IsAllowed(fmt.Sprintf("10.0.0.%d", i)))
	}
}
