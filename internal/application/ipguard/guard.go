package ipguard

import (
	"fmt"
	"strings"
	"sync"
)

// Published notification sources of the processor.
var productionSources = []string{
	"175.99.72.1", "175.99.72.2", "175.99.72.3", "175.99.72.4", "175.99.72.5",
	"175.99.72.6", "175.99.72.7", "175.99.72.8", "175.99.72.9", "175.99.72.10",
	"175.99.72.11", "175.99.72.12", "175.99.72.13", "175.99.72.14", "175.99.72.15",
	"175.99.72.16", "175.99.72.17", "175.99.72.18", "175.99.72.19", "175.99.72.20",
	"61.219.166.1", "61.219.166.2", "61.219.166.3", "61.219.166.4",
	"61.219.166.5", "61.219.166.6", "61.219.166.7", "61.219.166.8",
}

var testSources = []string{
	"127.0.0.1", "::1", "localhost",
	"59.124.47.1", "59.124.47.2", "59.124.47.3", "59.124.47.4", "59.124.47.5",
}

var (
	productionRanges = []string{"175.99.72.", "61.219.166."}
	testRanges       = []string{"59.124.47."}
)

type Options struct {
	AllowTestSources bool
	Extra            []string
}

type Result struct {
	Allowed    bool
	Normalized string
	Reason     string
}

// Guard decides whether a webhook caller is a trusted processor address.
type Guard struct {
	static    map[string]struct{}
	ranges    []string
	allowTest bool

	mu     sync.RWMutex
	custom map[string]struct{}
}

func New(opts Options) *Guard {
	g := &Guard{
		static:    make(map[string]struct{}, len(productionSources)+len(testSources)),
		ranges:    append([]string{}, productionRanges...),
		allowTest: opts.AllowTestSources,
		custom:    make(map[string]struct{}),
	}
	for _, ip := range productionSources {
		g.static[ip] = struct{}{}
	}
	if opts.AllowTestSources {
		for _, ip := range testSources {
			g.static[ip] = struct{}{}
		}
		g.ranges = append(g.ranges, testRanges...)
	}
	for _, ip := range opts.Extra {
		g.AddIP(ip)
	}
	return g
}

func (g *Guard) AllowsTestSources() bool {
	return g.allowTest
}

func (g *Guard) IsAllowed(addr string) bool {
	return g.Validate(addr).Allowed
}

func (g *Guard) Validate(addr string) Result {
	ip := Normalize(addr)
	if g.matches(ip) {
		return Result{Allowed: true, Normalized: ip}
	}
	return Result{
		Normalized: ip,
		Reason:     fmt.Sprintf("source %s is not a trusted processor address", ip),
	}
}

func (g *Guard) AddIP(addr string) {
	ip := Normalize(addr)
	if ip == "" {
		return
	}
	g.mu.Lock()
	g.custom[ip] = struct{}{}
	g.mu.Unlock()
}

func (g *Guard) RemoveIP(addr string) {
	g.mu.Lock()
	delete(g.custom, Normalize(addr))
	g.mu.Unlock()
}

func (g *Guard) matches(ip string) bool {
	if ip == "" {
		return false
	}
	if _, ok := g.static[ip]; ok {
		return true
	}

	g.mu.RLock()
	_, ok := g.custom[ip]
	g.mu.RUnlock()
	if ok {
		return true
	}

	for _, prefix := range g.ranges {
		if rest, found := strings.CutPrefix(ip, prefix); found {
			return validOctet(rest)
		}
	}
	return false
}

// Normalize strips an IPv4-mapped IPv6 prefix and a trailing port.
func Normalize(addr string) string {
	ip := strings.TrimSpace(addr)
	ip = strings.TrimPrefix(ip, "::ffff:")

	if strings.HasPrefix(ip, "[") {
		if end := strings.Index(ip, "]"); end > 0 {
			return ip[1:end]
		}
	}
	if i := strings.LastIndex(ip, ":"); i > 0 && strings.Contains(ip, ".") {
		ip = ip[:i]
	}
	return ip
}

// validOctet accepts only the canonical decimal form: no sign, no leading zero.
func validOctet(s string) bool {
	if s == "" || len(s) > 3 || (len(s) > 1 && s[0] == '0') {
		return false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n <= 255
}
