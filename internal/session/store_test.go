package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docfill/backend/internal/models"
)

func newTestSession() *models.Session {
	return models.NewSession("/tmp/uploads/doc.docx", "doc.docx", nil, []models.Placeholder{
		{Key: "company_name", Name: "Company Name", Original: "[Company Name]"},
		{Key: "amount", Name: "Amount", Original: "$[Amount]"},
	}, "ctx")
}

func TestCreateAndGet(t *testing.T) {
	st := NewStore()

	id, err := st.Create(newTestSession())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty id")
	}

	got, err := st.Get(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("expected id %s, got %s", id, got.ID)
	}
	if got.Status != models.SessionStatusActive {
		t.Errorf("expected active status, got %s", got.Status)
	}

	if _, err := st.Get("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	st := NewStore()
	id, _ := st.Create(newTestSession())

	a, _ := st.Get(id)
	a.FilledValues["company_name"] = "tampered"

	b, _ := st.Get(id)
	if len(b.FilledValues) != 0 {
		t.Errorf("mutating a read snapshot leaked into the store: %v", b.FilledValues)
	}
}

func TestCommitAppliesMutation(t *testing.T) {
	st := NewStore()
	id, _ := st.Create(newTestSession())

	updated, err := st.Commit(id, func(s *models.Session) (*models.Session, error) {
		next := s.Clone()
		next.FilledValues["company_name"] = "Acme Corp"
		next.CurrentIndex = 1
		return next, nil
	})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if updated.FilledValues["company_name"] != "Acme Corp" {
		t.Errorf("commit result missing value: %v", updated.FilledValues)
	}

	got, _ := st.Get(id)
	if got.CurrentIndex != 1 {
		t.Errorf("expected cursor 1, got %d", got.CurrentIndex)
	}
}

func TestCommitFailureLeavesSessionUntouched(t *testing.T) {
	st := NewStore()
	id, _ := st.Create(newTestSession())

	wantErr := errors.New("validation failed")
	_, err := st.Commit(id, func(s *models.Session) (*models.Session, error) {
		s.FilledValues["company_name"] = "partial"
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error back, got %v", err)
	}

	got, _ := st.Get(id)
	if len(got.FilledValues) != 0 {
		t.Errorf("failed commit mutated the session: %v", got.FilledValues)
	}
}

func TestCommitUnknownID(t *testing.T) {
	st := NewStore()
	_, err := st.Commit("missing", func(s *models.Session) (*models.Session, error) {
		return s, nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentCommitsAreSerialized(t *testing.T) {
	st := NewStore()
	id, _ := st.Create(newTestSession())

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			_, err := st.Commit(id, func(s *models.Session) (*models.Session, error) {
				next := s.Clone()
				next.FilledValues[fmt.Sprintf("k%d", n)] = "v"
				next.CurrentIndex++
				return next, nil
			})
			if err != nil {
				t.Errorf("commit %d failed: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := st.Get(id)
	if len(got.FilledValues) != writers {
		t.Errorf("lost updates: expected %d values, got %d", writers, len(got.FilledValues))
	}
	if got.CurrentIndex != writers {
		t.Errorf("lost cursor increments: expected %d, got %d", writers, got.CurrentIndex)
	}
}

func TestRemoveReturnsResources(t *testing.T) {
	st := NewStore()
	id, _ := st.Create(newTestSession())

	res, err := st.Remove(id)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if res.UploadPath != "/tmp/uploads/doc.docx" {
		t.Errorf("unexpected upload path: %s", res.UploadPath)
	}

	if _, err := st.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("session still reachable after remove")
	}
	if _, err := st.Remove(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove should report ErrNotFound, got %v", err)
	}
}

func TestSweepExpired(t *testing.T) {
	st := NewStore()
	oldID, _ := st.Create(newTestSession())
	freshID, _ := st.Create(newTestSession())

	// Age the first session artificially.
	st.mu.Lock()
	st.entries[oldID].lastActivity = time.Now().Add(-25 * time.Hour)
	st.mu.Unlock()

	released := st.SweepExpired(time.Now(), 24*time.Hour)

	if len(released) != 1 {
		t.Fatalf("expected 1 released session, got %d", len(released))
	}
	if released[0].SessionID != oldID {
		t.Errorf("wrong session swept: %s", released[0].SessionID)
	}
	if released[0].UploadPath == "" {
		t.Error("released resources missing upload path")
	}

	if _, err := st.Get(oldID); !errors.Is(err, ErrNotFound) {
		t.Error("expired session still reachable after sweep")
	}
	if _, err := st.Get(freshID); err != nil {
		t.Errorf("fresh session swept: %v", err)
	}

	// Resources must be released exactly once.
	if again := st.SweepExpired(time.Now(), 24*time.Hour); len(again) != 0 {
		t.Errorf("second sweep released resources again: %v", again)
	}
}

func TestSweepSkipsRecentlyCommitted(t *testing.T) {
	st := NewStore()
	id, _ := st.Create(newTestSession())

	st.mu.Lock()
	st.entries[id].lastActivity = time.Now().Add(-25 * time.Hour)
	st.mu.Unlock()

	// A commit refreshes activity, so the sweep must keep the session.
	if _, err := st.Commit(id, func(s *models.Session) (*models.Session, error) {
		return s, nil
	}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if released := st.SweepExpired(time.Now(), 24*time.Hour); len(released) != 0 {
		t.Errorf("sweep removed a session with recent activity")
	}
}

func TestSweepConcurrentWithCommits(t *testing.T) {
	st := NewStore()
	ids := make([]string, 20)
	for i := range ids {
		ids[i], _ = st.Create(newTestSession())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, id := range ids {
			st.Commit(id, func(s *models.Session) (*models.Session, error) {
				next := s.Clone()
				next.FilledValues["company_name"] = "Acme Corp"
				return next, nil
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			st.SweepExpired(time.Now(), time.Hour)
		}
	}()
	wg.Wait()

	// Nothing was idle past the TTL, so every session must survive.
	if st.Len() != len(ids) {
		t.Errorf("expected %d sessions, got %d", len(ids), st.Len())
	}
}
