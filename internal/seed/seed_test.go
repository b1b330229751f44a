package seed

import (
	"context"
	"testing"

	"patronage/internal/database"
	"patronage/internal/ledger"
	"patronage/internal/models"
	"patronage/internal/repository"
)

func TestFactory_Deterministic(t *testing.T) {
	a := NewFactory(Options{RandomSeed: 42})
	b := NewFactory(Options{RandomSeed: 42})

	ua, ub := a.BuildUser(3), b.BuildUser(3)
	if ua.Username != ub.Username || ua.DisplayName != ub.DisplayName {
		t.Fatalf("same seed produced different users: %q vs %q", ua.Username, ub.Username)
	}
	if len(ua.DisplayName) > 50 {
		t.Fatalf("display name too long: %d", len(ua.DisplayName))
	}

	post := a.BuildPost(&models.User{ID: 9})
	if post.UserID != 9 || post.Title == "" {
		t.Fatalf("unexpected post: %+v", post)
	}
}

func TestFactory_PickAmountUsesDenominations(t *testing.T) {
	f := NewFactory(Options{})
	seen := map[int64]bool{}
	for i := 0; i < 200; i++ {
		amount := f.PickAmount()
		if !ledger.ValidAmount(amount) {
			t.Fatalf("invalid amount %d", amount)
		}
		seen[amount] = true
	}
	if len(seen) != len(ledger.Denominations()) {
		t.Fatalf("expected every denomination to be drawn, got %v", seen)
	}
}

func TestFactory_AnonymousRatio(t *testing.T) {
	all := NewFactory(Options{AnonymousRatio: 1})
	if !all.BuildUser(0).IsAnonymous {
		t.Fatal("expected anonymous user with ratio 1")
	}
	none := NewFactory(Options{})
	if none.BuildUser(0).IsAnonymous {
		t.Fatal("expected named user with ratio 0")
	}
}

func TestSeed_SQLite(t *testing.T) {
	db, err := database.OpenSQLite("file:seed_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	ctx := context.Background()
	summary, err := Seed(ctx, db, Options{NumUsers: 6, NumPosts: 4, NumDonations: 25, RandomSeed: 7})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if summary.Users != 6 || summary.Posts != 4 || summary.Donations != 25 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	var donations []models.Donation
	if err := db.Find(&donations).Error; err != nil {
		t.Fatalf("load donations: %v", err)
	}
	if len(donations) != 25 {
		t.Fatalf("expected 25 donations, got %d", len(donations))
	}
	var gross int64
	for _, d := range donations {
		gross += d.Amount
	}
	if gross != summary.Gross {
		t.Fatalf("gross mismatch: ledger %d, summary %d", gross, summary.Gross)
	}

	report, err := repository.NewDonationRepository(db).Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if report.Any() {
		t.Fatalf("seeded aggregates drifted from ledger: %+v", report)
	}

	again, err := Seed(ctx, db, Options{NumUsers: 2, NumPosts: 1, NumDonations: 1, RandomSeed: 8, ShouldClean: true})
	if err != nil {
		t.Fatalf("reseed failed: %v", err)
	}
	var users int64
	db.Model(&models.User{}).Count(&users)
	if users != int64(again.Users) {
		t.Fatalf("clean did not remove previous users: %d", users)
	}
}
