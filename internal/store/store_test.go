package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

func TestStoreIfAbsent(t *testing.T) {
	tests := []struct {
		name    string
		seed    []domain.Item
		item    domain.Item
		want    bool
		wantLen int
	}{
		{
			name:    "stores new item",
			item:    domain.Item{ID: "101", Title: "First"},
			want:    true,
			wantLen: 1,
		},
		{
			name:    "rejects duplicate id",
			seed:    []domain.Item{{ID: "101", Title: "First"}},
			item:    domain.Item{ID: "101", Title: "Second"},
			want:    false,
			wantLen: 1,
		},
		{
			name:    "rejects empty id",
			item:    domain.Item{Title: "No ID"},
			want:    false,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewItemStore()
			for _, item := range tt.seed {
				s.StoreIfAbsent(item)
			}

			if got := s.StoreIfAbsent(tt.item); got != tt.want {
				t.Errorf("StoreIfAbsent() = %v, want %v", got, tt.want)
			}
			if s.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", s.Len(), tt.wantLen)
			}
		})
	}
}

func TestStoreFirstWriterWins(t *testing.T) {
	s := NewItemStore()
	s.StoreIfAbsent(domain.Item{ID: "7", Title: "Original"})
	s.StoreIfAbsent(domain.Item{ID: "7", Title: "Overwrite Attempt"})

	got, ok := s.Get("7")
	if !ok {
		t.Fatal("Get() returned no item")
	}
	if got.Title != "Original" {
		t.Errorf("Title = %q, want %q", got.Title, "Original")
	}
}

func TestStoreConcurrentSingleWinner(t *testing.T) {
	const writers = 32
	s := NewItemStore()

	var wg sync.WaitGroup
	wins := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			title := fmt.Sprintf("candidate-%d", n)
			if s.StoreIfAbsent(domain.Item{ID: "race", Title: title}) {
				wins <- title
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("got %d winners, want exactly 1", len(winners))
	}

	got, ok := s.Get("race")
	if !ok {
		t.Fatal("Get() returned no item after concurrent stores")
	}
	if got.Title != winners[0] {
		t.Errorf("retained Title = %q, want winner %q", got.Title, winners[0])
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
