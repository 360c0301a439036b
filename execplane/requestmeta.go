package execplane

import (
	"log/slog"
	goruntime "runtime"
	"sync"
	"weak"

	"github.com/google/uuid"
)

// requestMeta is the per-request bundle of request-scoped fields the hook
// pipeline associates with an *ExecutionRequest without attaching anything
// to the request struct itself.
//
// The association is weak: entries are keyed by weak.Pointer[ExecutionRequest]
// and evicted via runtime.AddCleanup once the host drops its last strong
// reference to the request, so long-lived gateways don't leak one logger and
// one request ID per request forever.
type requestMetaStore struct {
	mu   sync.Mutex
	data map[weak.Pointer[ExecutionRequest]]requestMeta
}

type requestMeta struct {
	requestID string
	logger    *slog.Logger
}

func newRequestMetaStore() *requestMetaStore {
	return &requestMetaStore{data: make(map[weak.Pointer[ExecutionRequest]]requestMeta)}
}

// bind generates a request ID and registers a cleanup that removes the
// entry once req is collected.
func (s *requestMetaStore) bind(req *ExecutionRequest, logger *slog.Logger) requestMeta {
	meta := requestMeta{requestID: uuid.NewString(), logger: logger}

	key := weak.Make(req)

	s.mu.Lock()
	s.data[key] = meta
	s.mu.Unlock()

	goruntime.AddCleanup(req, func(k weak.Pointer[ExecutionRequest]) {
		s.mu.Lock()
		delete(s.data, k)
		s.mu.Unlock()
	}, key)

	return meta
}

func (s *requestMetaStore) lookup(req *ExecutionRequest) (requestMeta, bool) {
	key := weak.Make(req)
	s.mu.Lock()
	meta, ok := s.data[key]
	s.mu.Unlock()
	return meta, ok
}
