package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-enricher/pkg/dnc"
	"github.com/sells-group/lead-enricher/pkg/skiptrace"
	"github.com/sells-group/lead-enricher/pkg/telnyx"
)

// --- Skip-trace Mock ---

type mockSkipTracer struct {
	mock.Mock
}

func (m *mockSkipTracer) SearchByName(ctx context.Context, name, cityStateZip string) (*skiptrace.Person, error) {
	args := m.Called(ctx, name, cityStateZip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*skiptrace.Person), args.Error(1)
}

func (m *mockSkipTracer) SearchByPhone(ctx context.Context, phone string) (*skiptrace.Person, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*skiptrace.Person), args.Error(1)
}

func (m *mockSkipTracer) LookupAge(ctx context.Context, name, cityStateZip string) (*skiptrace.AgeRecord, error) {
	args := m.Called(ctx, name, cityStateZip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*skiptrace.AgeRecord), args.Error(1)
}

// --- Telnyx Mock ---

type mockTelnyx struct {
	mock.Mock
}

func (m *mockTelnyx) Lookup(ctx context.Context, e164 string) (*telnyx.Lookup, error) {
	args := m.Called(ctx, e164)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telnyx.Lookup), args.Error(1)
}

// --- DNC Mock ---

type mockDNC struct {
	mock.Mock
}

func (m *mockDNC) Check(ctx context.Context, phone, token string) (*dnc.Status, error) {
	args := m.Called(ctx, phone, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dnc.Status), args.Error(1)
}

// --- Token Mock ---

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) Token(ctx context.Context, forceRefresh bool) (string, error) {
	args := m.Called(ctx, forceRefresh)
	return args.String(0), args.Error(1)
}

// --- Lookup Cache Fake ---

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) GetLookup(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	b, ok := c.entries[key]
	return b, ok, nil
}

func (c *memCache) PutLookup(_ context.Context, key, _ string, body []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = body
	c.puts++
	return nil
}
