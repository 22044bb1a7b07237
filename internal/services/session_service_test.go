package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/convia/go-leadchat-backend/internal/dialog"
	"github.com/convia/go-leadchat-backend/internal/domain"
	"github.com/convia/go-leadchat-backend/internal/repo"
)

var svcDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	svcDBSeq++
	dsn := fmt.Sprintf("file:svcdb%d?mode=memory&cache=shared", svcDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestSessionService_Open_Fresh_SeedsGreeting(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	sess, restored, err := svc.Open(ctx, "", "/pricing", "https://example.com")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if restored {
		t.Fatalf("fresh open reported restored")
	}
	if sess.Stage != domain.StageGreeting {
		t.Fatalf("Stage = %q", sess.Stage)
	}
	if sess.Page != "/pricing" {
		t.Fatalf("Page = %q", sess.Page)
	}

	msgs, err := repo.ListMessages(ctx, db, sess.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("seeded messages = %d, want 1", len(msgs))
	}
	m := msgs[0]
	if m.Role != domain.RoleAssistant || m.Content != dialog.Greeting || m.Seq != 0 || !m.OffersQuickReplies {
		t.Fatalf("unexpected greeting message: %+v", m)
	}
}

func TestSessionService_Open_UnknownID_CreatesFresh(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)

	sess, restored, err := svc.Open(context.Background(), "11111111-1111-1111-1111-111111111111", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if restored {
		t.Fatalf("unknown ID reported restored")
	}
	if sess.ID == "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("requested ID must not be reused for a fresh session")
	}
}

func TestSessionService_Open_Restore_TouchesActivity(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	orig, _, err := svc.Open(ctx, "", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	later := orig.LastActivity.Add(6 * time.Hour).Truncate(time.Second)
	svc.now = func() time.Time { return later }

	sess, restored, err := svc.Open(ctx, orig.ID, "", "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !restored || sess.ID != orig.ID {
		t.Fatalf("expected restore of %s, got (%s, restored=%v)", orig.ID, sess.ID, restored)
	}
	if !sess.LastActivity.Equal(later) {
		t.Fatalf("LastActivity = %v, want touched to %v", sess.LastActivity, later)
	}

	stored, err := repo.GetSession(ctx, db, orig.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !stored.LastActivity.Equal(later) {
		t.Fatalf("stored LastActivity = %v, want %v", stored.LastActivity, later)
	}
}

func TestSessionService_Open_ExpiredExactlyAtTTL_Replaced(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	orig, _, err := svc.Open(ctx, "", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// The boundary instant itself is already expired.
	svc.now = func() time.Time { return orig.LastActivity.Add(svc.TTL) }

	sess, restored, err := svc.Open(ctx, orig.ID, "", "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if restored || sess.ID == orig.ID {
		t.Fatalf("expired session must be replaced, got (%s, restored=%v)", sess.ID, restored)
	}

	if _, err := repo.GetSession(ctx, db, orig.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expired session row should be destroyed, err = %v", err)
	}
}

func TestSessionService_Open_CorruptStage_Discarded(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	orig, _, err := svc.Open(ctx, "", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Model(&domain.Session{}).Where("id = ?", orig.ID).Update("stage", "bogus").Error; err != nil {
		t.Fatalf("corrupt stage: %v", err)
	}

	sess, restored, err := svc.Open(ctx, orig.ID, "", "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if restored || sess.ID == orig.ID {
		t.Fatalf("corrupt session must be replaced")
	}
	if _, err := repo.GetSession(ctx, db, orig.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("corrupt session row should be destroyed, err = %v", err)
	}
}

func TestSessionService_Get(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing err = %v", err)
	}

	sess, _, err := svc.Open(ctx, "", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	got, err := svc.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != sess.ID {
		t.Fatalf("ID = %s", got.ID)
	}

	svc.now = func() time.Time { return sess.LastActivity.Add(svc.TTL) }
	if _, err := svc.Get(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expired Get err = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionService_ListPage(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	if _, _, err := svc.ListPage(ctx, "missing", 1, 20); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing err = %v", err)
	}

	sess, _, err := svc.Open(ctx, "", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 1; i <= 4; i++ {
		if _, err := repo.CreateMessage(db, sess.ID, domain.RoleUser, fmt.Sprintf("m%d", i), i, false); err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}

	items, total, err := svc.ListPage(ctx, sess.ID, 1, 3)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 5 || len(items) != 3 || items[0].Seq != 0 {
		t.Fatalf("page 1: total=%d len=%d first=%d", total, len(items), items[0].Seq)
	}

	items, total, err = svc.ListPage(ctx, sess.ID, 2, 3)
	if err != nil {
		t.Fatalf("ListPage page 2: %v", err)
	}
	if total != 5 || len(items) != 2 || items[0].Seq != 3 {
		t.Fatalf("page 2: total=%d len=%d", total, len(items))
	}

	// Out-of-range arguments are clamped rather than rejected.
	items, _, err = svc.ListPage(ctx, sess.ID, 0, -1)
	if err != nil {
		t.Fatalf("clamped ListPage: %v", err)
	}
	if len(items) != 5 {
		t.Fatalf("clamped page len = %d", len(items))
	}
}

func TestReapOnce_DeletesOnlyExpired(t *testing.T) {
	db := newTestDB(t)
	svc := NewSessionService(db)
	ctx := context.Background()

	old, _, err := svc.Open(ctx, "", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fresh, _, err := svc.Open(ctx, "", "", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := repo.TouchSession(ctx, db, old.ID, time.Now().UTC().Add(-48*time.Hour)); err != nil {
		t.Fatalf("TouchSession: %v", err)
	}

	reapOnce(ctx, db, 24*time.Hour)

	if _, err := repo.GetSession(ctx, db, old.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("old session survived sweep, err = %v", err)
	}
	if _, err := repo.GetSession(ctx, db, fresh.ID); err != nil {
		t.Fatalf("fresh session reaped: %v", err)
	}
}
