package memory

import (
	"testing"

	"github.com/autonome/peek/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	s := New()
	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	storagetest.Run(t, s)
}
