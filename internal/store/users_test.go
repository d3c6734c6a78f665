package store

import (
	"context"
	"testing"

	"github.com/erazemk/surplus/internal/db"
	"github.com/erazemk/surplus/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "bakery", "hash123", model.RoleSeller)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "bakery" {
		t.Errorf("expected username 'bakery', got %q", user.Username)
	}
	if user.Role != model.RoleSeller {
		t.Errorf("expected role 'seller', got %q", user.Role)
	}

	got, err := GetUser(ctx, database, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Username != "bakery" {
		t.Errorf("expected username 'bakery', got %q", got.Username)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	database := db.NewTestDB(t)

	if _, err := CreateUser(context.Background(), database, "x", "hash", "manager"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestGetUserByUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "alice", "hash", model.RoleAdmin)

	user, err := GetUserByUsername(ctx, database, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if user == nil {
		t.Fatal("expected user, got nil")
	}

	missing, err := GetUserByUsername(ctx, database, "bob")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing user")
	}
}

func TestDeletedUsernameCanBeReused(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	old, _ := CreateUser(ctx, database, "market", "old", model.RoleSeller)
	if ok, err := DeleteUser(ctx, database, old.ID); err != nil || !ok {
		t.Fatalf("DeleteUser: ok=%v err=%v", ok, err)
	}

	if _, err := CreateUser(ctx, database, "market", "new", model.RoleSeller); err != nil {
		t.Fatalf("recreating user: %v", err)
	}

	got, _ := GetUserByUsername(ctx, database, "market")
	if got == nil || got.PasswordHash != "new" {
		t.Errorf("expected the live account, got %+v", got)
	}
}

func TestListUsersAndCountAdmins(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateUser(ctx, database, "a", "hash", model.RoleSeller)
	CreateUser(ctx, database, "b", "hash", model.RoleAdmin)

	users, err := ListUsers(ctx, database)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}

	n, err := CountAdmins(ctx, database)
	if err != nil {
		t.Fatalf("CountAdmins: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 admin, got %d", n)
	}
}

func TestDeleteUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "deleteme", "hash", model.RoleSeller)
	ok, err := DeleteUser(ctx, database, user.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteUser: ok=%v err=%v", ok, err)
	}

	users, _ := ListUsers(ctx, database)
	if len(users) != 0 {
		t.Errorf("expected 0 users after delete, got %d", len(users))
	}

	ok, _ = DeleteUser(ctx, database, user.ID)
	if ok {
		t.Error("expected second delete to report nothing deleted")
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pwuser", "oldhash", model.RoleSeller)
	UpdateUserPassword(ctx, database, user.ID, "newhash")

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "newhash" {
		t.Errorf("expected password hash 'newhash', got %q", got.PasswordHash)
	}
}
