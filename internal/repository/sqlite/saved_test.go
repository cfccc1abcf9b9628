package sqlite

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/model"
)

func save(t *testing.T, db *DB, userID, kind, itemID string) {
	t.Helper()
	item := &model.SavedItem{UserID: userID, Kind: kind, ItemID: itemID}
	if err := db.AddSaved(context.Background(), item); err != nil {
		t.Fatalf("AddSaved(%s, %s) error = %v", kind, itemID, err)
	}
}

func TestListSaved_Empty(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "empty@example.com")

	ids, err := db.ListSaved(context.Background(), u.ID, model.KindTips)
	if err != nil {
		t.Fatalf("ListSaved() error = %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ListSaved() = %#v, want empty non-nil slice", ids)
	}
}

func TestListSaved_InsertionOrderPerKind(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "order@example.com")

	save(t, db, u.ID, model.KindTips, "t-b")
	save(t, db, u.ID, model.KindResources, "r-1")
	save(t, db, u.ID, model.KindTips, "t-a")

	tips, err := db.ListSaved(context.Background(), u.ID, model.KindTips)
	if err != nil {
		t.Fatalf("ListSaved() error = %v", err)
	}
	if want := []string{"t-b", "t-a"}; !reflect.DeepEqual(tips, want) {
		t.Errorf("tips = %v, want %v", tips, want)
	}

	res, err := db.ListSaved(context.Background(), u.ID, model.KindResources)
	if err != nil {
		t.Fatalf("ListSaved() error = %v", err)
	}
	if want := []string{"r-1"}; !reflect.DeepEqual(res, want) {
		t.Errorf("resources = %v, want %v", res, want)
	}
}

func TestListSaved_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	save(t, db, alice.ID, model.KindTips, "t1")

	ids, err := db.ListSaved(context.Background(), bob.ID, model.KindTips)
	if err != nil {
		t.Fatalf("ListSaved() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("bob sees alice's items: %v", ids)
	}
}

func TestAddSaved_Duplicate(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "dup@example.com")
	save(t, db, u.ID, model.KindTips, "t1")

	err := db.AddSaved(context.Background(), &model.SavedItem{UserID: u.ID, Kind: model.KindTips, ItemID: "t1"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("AddSaved() error = %v, want ErrConflict", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperror.CodeAlreadySaved {
		t.Errorf("AddSaved() error code = %v, want %q", err, apperror.CodeAlreadySaved)
	}
}

func TestAddSaved_SameIDDifferentKind(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "kinds@example.com")

	save(t, db, u.ID, model.KindTips, "x")
	save(t, db, u.ID, model.KindResources, "x")
}

func TestRemoveSaved(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "rm@example.com")
	save(t, db, u.ID, model.KindTips, "t1")
	save(t, db, u.ID, model.KindTips, "t2")

	if err := db.RemoveSaved(context.Background(), u.ID, model.KindTips, "t1"); err != nil {
		t.Fatalf("RemoveSaved() error = %v", err)
	}

	ids, _ := db.ListSaved(context.Background(), u.ID, model.KindTips)
	if want := []string{"t2"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("after remove = %v, want %v", ids, want)
	}
}

func TestRemoveSaved_NotFound(t *testing.T) {
	db := newTestDB(t)
	u := createTestUser(t, db, "rm404@example.com")

	err := db.RemoveSaved(context.Background(), u.ID, model.KindTips, "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("RemoveSaved() error = %v, want ErrNotFound", err)
	}
}

func TestAddSaved_UnknownUserRejected(t *testing.T) {
	db := newTestDB(t)

	err := db.AddSaved(context.Background(), &model.SavedItem{UserID: "ghost", Kind: model.KindTips, ItemID: "t1"})
	if err == nil {
		t.Fatal("AddSaved() should fail the foreign key check for an unknown user")
	}
}
