package retention_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"roomchat/backend/internal/filestore"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/retention"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu        sync.Mutex
	atts      map[uint]models.Attachment
	listCalls int
	listFail  int
	panicOnce bool
	deleteErr map[uint]error
}

func newFakeStore(atts ...models.Attachment) *fakeStore {
	s := &fakeStore{atts: map[uint]models.Attachment{}, deleteErr: map[uint]error{}}
	for _, a := range atts {
		s.atts[a.ID] = a
	}
	return s
}

func (s *fakeStore) ListAttachmentsCreatedBefore(_ context.Context, cutoff time.Time) ([]models.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.panicOnce {
		s.panicOnce = false
		panic("boom")
	}
	if s.listCalls <= s.listFail {
		return nil, errors.New("db unavailable")
	}
	var out []models.Attachment
	for _, a := range s.atts {
		if a.CreatedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteAttachment(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[id]; err != nil {
		return err
	}
	delete(s.atts, id)
	return nil
}

func (s *fakeStore) has(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.atts[id]
	return ok
}

func attachment(id uint, path string, age time.Duration) models.Attachment {
	return models.Attachment{ID: id, RoomID: "r1", StoredPath: path, CreatedAt: now.Add(-age)}
}

func writeFile(t *testing.T, store filestore.Store, name string) {
	t.Helper()
	w, err := store.Create(context.Background(), name)
	require.NoError(t, err)
	_, err = w.Write([]byte("bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Commit())
}

func newDisk(t *testing.T) *filestore.DiskStore {
	t.Helper()
	disk, err := filestore.NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return disk
}

func TestSweepOnce_RemovesOnlyExpired(t *testing.T) {
	disk := newDisk(t)
	writeFile(t, disk, "r1/old.txt")
	writeFile(t, disk, "r1/young.txt")
	store := newFakeStore(
		attachment(1, "r1/old.txt", 31*time.Minute),
		attachment(2, "r1/young.txt", 29*time.Minute),
	)
	sw := retention.NewSweeper(store, disk, time.Minute, 30*time.Minute, time.Second)
	sw.SetClock(func() time.Time { return now })

	report, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, now.Add(-30*time.Minute), report.Cutoff)
	assert.False(t, store.has(1))
	assert.True(t, store.has(2))

	ctx := context.Background()
	gone, err := disk.Exists(ctx, "r1/old.txt")
	require.NoError(t, err)
	assert.False(t, gone)
	kept, err := disk.Exists(ctx, "r1/young.txt")
	require.NoError(t, err)
	assert.True(t, kept)
}

func TestSweepOnce_MissingFileStillDeletesRecord(t *testing.T) {
	store := newFakeStore(attachment(1, "r1/vanished.txt", time.Hour))
	sw := retention.NewSweeper(store, newDisk(t), time.Minute, 30*time.Minute, time.Second)
	sw.SetClock(func() time.Time { return now })

	report, err := sw.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.MissingFiles)
	assert.Equal(t, 1, report.Deleted)
	assert.False(t, store.has(1))
}

func TestSweepOnce_ItemFailureDoesNotStopCycle(t *testing.T) {
	disk := newDisk(t)
	writeFile(t, disk, "r1/a.txt")
	writeFile(t, disk, "r1/b.txt")
	store := newFakeStore(
		attachment(1, "r1/a.txt", time.Hour),
		attachment(2, "r1/b.txt", time.Hour),
	)
	store.deleteErr[1] = errors.New("locked row")
	sw := retention.NewSweeper(store, disk, time.Minute, 30*time.Minute, time.Second)
	sw.SetClock(func() time.Time { return now })

	report, err := sw.SweepOnce(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "locked row"))
	assert.Equal(t, 1, report.Deleted)
	assert.True(t, store.has(1))
	assert.False(t, store.has(2))
}

func TestSweepOnce_ListFailure(t *testing.T) {
	store := newFakeStore()
	store.listFail = 1
	sw := retention.NewSweeper(store, newDisk(t), time.Minute, 30*time.Minute, time.Second)

	_, err := sw.SweepOnce(context.Background())
	assert.ErrorContains(t, err, "db unavailable")
}

func TestRun_SurvivesErrorsAndPanics(t *testing.T) {
	store := newFakeStore(attachment(1, "r1/a.txt", time.Hour))
	store.listFail = 2
	store.panicOnce = true
	sw := retention.NewSweeper(store, newDisk(t), 5*time.Millisecond, 30*time.Minute, time.Millisecond)
	sw.SetClock(func() time.Time { return now })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return !store.has(1) }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

// stuckFiles refuses to delete anything.
type stuckFiles struct {
	filestore.Store
}

func (stuckFiles) Delete(context.Context, string) error {
	return errors.New("device busy")
}

func TestSweepOnce_FileDeleteFailureKeepsRecord(t *testing.T) {
	disk := newDisk(t)
	writeFile(t, disk, "r1/a.txt")
	store := newFakeStore(attachment(1, "r1/a.txt", time.Hour))
	sw := retention.NewSweeper(store, stuckFiles{Store: disk}, time.Minute, 30*time.Minute, time.Second)
	sw.SetClock(func() time.Time { return now })

	report, err := sw.SweepOnce(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "device busy")
	assert.Equal(t, 1, report.Expired)
	assert.Equal(t, 0, report.Deleted)
	assert.True(t, store.has(1))

	kept, err := disk.Exists(context.Background(), "r1/a.txt")
	require.NoError(t, err)
	assert.True(t, kept)
}
