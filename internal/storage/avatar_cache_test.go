package storage

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comet-radar/internal/models"
)

type fakeArchiveLedger struct {
	archived map[string]string
	rows     []models.Creator
	setErr   error
}

func (l *fakeArchiveLedger) SetArchivedAvatar(_ context.Context, userID, url string) error {
	if l.setErr != nil {
		return l.setErr
	}
	if l.archived == nil {
		l.archived = make(map[string]string)
	}
	l.archived[userID] = url
	return nil
}

func (l *fakeArchiveLedger) ListUnarchivedAvatars(_ context.Context, limit int) ([]models.Creator, error) {
	if limit > len(l.rows) {
		limit = len(l.rows)
	}
	return l.rows[:limit], nil
}

type fakeMemo struct {
	entries map[string]string
}

func (m *fakeMemo) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.entries[key]; ok {
		return v, nil
	}
	return "", errors.New("redis: nil")
}

func (m *fakeMemo) Set(_ context.Context, key string, _ interface{}, _ time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]string)
	}
	m.entries[key] = "1"
	return nil
}

type fakeUploader struct {
	uploads int
	err     error
}

func (u *fakeUploader) UploadAvatar(userID, avatarHash string, _ []byte) (string, error) {
	u.uploads++
	if u.err != nil {
		return "", u.err
	}
	return "https://cdn.example/avatars/" + userID + "/" + avatarHash + ".png", nil
}

func avatarServer(status *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(*status)
		if *status == http.StatusOK {
			w.Write([]byte("fake png bytes"))
		}
	}))
}

func cacheUnderTest(ledger *fakeArchiveLedger, uploader *fakeUploader, memo *fakeMemo, client *http.Client) *AvatarCache {
	return &AvatarCache{
		store:      ledger,
		storage:    uploader,
		memo:       memo,
		httpClient: client,
		logger:     slog.New(slog.DiscardHandler),
	}
}

func TestArchiveMemoizesOnlyAfterSuccess(t *testing.T) {
	status := http.StatusOK
	server := avatarServer(&status)
	defer server.Close()

	ledger := &fakeArchiveLedger{}
	uploader := &fakeUploader{}
	memo := &fakeMemo{}
	cache := cacheUnderTest(ledger, uploader, memo, server.Client())

	cache.Archive(context.Background(), "u1", server.URL+"/avatar.png")

	if ledger.archived["u1"] == "" {
		t.Fatal("expected durable URL to be stored")
	}
	if len(memo.entries) != 1 {
		t.Fatalf("expected one memo entry, got %d", len(memo.entries))
	}

	cache.Archive(context.Background(), "u1", server.URL+"/avatar.png")
	if uploader.uploads != 1 {
		t.Fatalf("expected memoized second call to skip upload, got %d uploads", uploader.uploads)
	}
}

func TestArchiveDownloadFailureStaysRetryable(t *testing.T) {
	status := http.StatusInternalServerError
	server := avatarServer(&status)
	defer server.Close()

	ledger := &fakeArchiveLedger{}
	uploader := &fakeUploader{}
	memo := &fakeMemo{}
	cache := cacheUnderTest(ledger, uploader, memo, server.Client())

	cache.Archive(context.Background(), "u1", server.URL+"/avatar.png")

	if len(memo.entries) != 0 {
		t.Fatal("failed download must not leave a memo entry")
	}
	if len(ledger.archived) != 0 {
		t.Fatal("failed download must not store a URL")
	}

	status = http.StatusOK
	cache.Archive(context.Background(), "u1", server.URL+"/avatar.png")

	if ledger.archived["u1"] == "" {
		t.Fatal("retry after transient failure should archive")
	}
	if len(memo.entries) != 1 {
		t.Fatal("successful retry should be memoized")
	}
}

func TestArchiveUploadFailureStaysRetryable(t *testing.T) {
	status := http.StatusOK
	server := avatarServer(&status)
	defer server.Close()

	ledger := &fakeArchiveLedger{}
	uploader := &fakeUploader{err: errors.New("bucket unavailable")}
	memo := &fakeMemo{}
	cache := cacheUnderTest(ledger, uploader, memo, server.Client())

	cache.Archive(context.Background(), "u1", server.URL+"/avatar.png")
	if len(memo.entries) != 0 {
		t.Fatal("failed upload must not leave a memo entry")
	}

	uploader.err = nil
	cache.Archive(context.Background(), "u1", server.URL+"/avatar.png")
	if ledger.archived["u1"] == "" {
		t.Fatal("retry after upload failure should archive")
	}
}

func TestArchiveStoreFailureStaysRetryable(t *testing.T) {
	status := http.StatusOK
	server := avatarServer(&status)
	defer server.Close()

	ledger := &fakeArchiveLedger{setErr: errors.New("connection reset")}
	cache := cacheUnderTest(ledger, &fakeUploader{}, &fakeMemo{}, server.Client())

	cache.Archive(context.Background(), "u1", server.URL+"/avatar.png")
	if len(cache.memo.(*fakeMemo).entries) != 0 {
		t.Fatal("failed URL write must not leave a memo entry")
	}
}

func TestBackfillArchivesListedCreators(t *testing.T) {
	status := http.StatusOK
	server := avatarServer(&status)
	defer server.Close()

	ledger := &fakeArchiveLedger{rows: []models.Creator{
		{UserID: "u1", AvatarURL: server.URL + "/a.png"},
		{UserID: "u2", AvatarURL: ""},
		{UserID: "u3", AvatarURL: server.URL + "/c.png"},
	}}
	cache := cacheUnderTest(ledger, &fakeUploader{}, &fakeMemo{}, server.Client())

	count, err := cache.Backfill(context.Background(), 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts, got %d", count)
	}
	if ledger.archived["u1"] == "" || ledger.archived["u3"] == "" {
		t.Fatal("expected both creators with avatar URLs to be archived")
	}
}
