package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
	"github.com/bandwagon-dev/bandwagon/internal/log"
)

// fakeSession counts closes.
type fakeSession struct {
	closed atomic.Int32
}

func (f *fakeSession) Close() error {
	f.closed.Add(1)
	return nil
}

// fakeFactory fails session creation at the given indexes.
type fakeFactory struct {
	mu       sync.Mutex
	created  int
	failAt   map[int]bool
	sessions []*fakeSession
}

func (f *fakeFactory) NewSession(ctx context.Context) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.created
	f.created++
	if f.failAt[idx] {
		return nil, errors.New("boom")
	}
	sess := &fakeSession{}
	f.sessions = append(f.sessions, sess)
	return sess, nil
}

func TestNewPreWarm(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		failAt   map[int]bool
		wantSize int
		wantErr  bool
	}{
		{
			name:     "all sessions come up",
			size:     4,
			wantSize: 4,
		},
		{
			name:     "partial failure degrades size",
			size:     4,
			failAt:   map[int]bool{1: true, 3: true},
			wantSize: 2,
		},
		{
			name:    "total failure is an error",
			size:    3,
			failAt:  map[int]bool{0: true, 1: true, 2: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &fakeFactory{failAt: tt.failAt}
			p, err := New(context.Background(), factory, tt.size, nil, log.NullLogger())
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer p.Close()

			if p.Size() != tt.wantSize {
				t.Errorf("Size() = %d, want %d", p.Size(), tt.wantSize)
			}
		})
	}
}

func TestAcquireTimeout(t *testing.T) {
	factory := &fakeFactory{}
	p, err := New(context.Background(), factory, 1, nil, log.NullLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	sess, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Pool is empty now; a bounded wait must give up.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, domain.ErrPoolExhausted) {
		t.Errorf("Acquire() error = %v, want ErrPoolExhausted", err)
	}

	p.Release(sess)
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire() after release error = %v", err)
	}
}

func TestConcurrencyBound(t *testing.T) {
	const size = 3
	const tasks = 20

	factory := &fakeFactory{}
	p, err := New(context.Background(), factory, size, nil, log.NullLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer p.Close()

	var inUse, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := p.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer p.Release(sess)

			n := inUse.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inUse.Add(-1)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > size {
		t.Errorf("peak sessions in use = %d, want <= %d", got, size)
	}
}

func TestReleaseGuards(t *testing.T) {
	factory := &fakeFactory{}
	p, err := New(context.Background(), factory, 2, nil, log.NullLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Nil release must not panic.
	p.Release(nil)

	sess, _ := p.Acquire(context.Background())
	p.Close()

	// Release after close must close the session, not re-pool it.
	p.Release(sess)
	fs := sess.(*fakeSession)
	if fs.closed.Load() == 0 {
		t.Error("session not closed by Release after Close")
	}

	if _, err := p.Acquire(context.Background()); !errors.Is(err, domain.ErrPoolClosed) {
		t.Errorf("Acquire() after Close error = %v, want ErrPoolClosed", err)
	}
}

func TestCloseClosesAllSessions(t *testing.T) {
	factory := &fakeFactory{}
	p, err := New(context.Background(), factory, 3, nil, log.NullLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	p.Close()
	p.Close() // idempotent

	for i, sess := range factory.sessions {
		if sess.closed.Load() == 0 {
			t.Errorf("session %d not closed", i)
		}
	}
}
