// Package main provides admin and ledger maintenance utilities for Patronage.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"patronage/internal/config"
	"patronage/internal/database"
	"patronage/internal/exports"
	"patronage/internal/featureflags"
	"patronage/internal/middleware"
	"patronage/internal/models"
	"patronage/internal/repository"
	"patronage/internal/service"

	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin promote <user_id>             - Promote user to admin")
	fmt.Println("  go run ./cmd/admin demote <user_id>              - Demote user from admin")
	fmt.Println("  go run ./cmd/admin list-admins                   - List all admins")
	fmt.Println("  go run ./cmd/admin token <user_id> [ttl]         - Issue an API token (default ttl 24h)")
	fmt.Println("  go run ./cmd/admin reconcile                     - Rebuild cached totals from the ledger")
	fmt.Println("  go run ./cmd/admin export-statements <YYYY-MM>   - Upload monthly author statements to S3")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command := os.Args[1]

	// token only needs the signing secret.
	if command == "token" {
		if len(os.Args) < 3 {
			usage()
		}
		issueToken(cfg, os.Args[2], os.Args[3:])
		return
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	users := service.NewUserService(repository.NewUserRepository(db))

	switch command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			usage()
		}
		setAdmin(ctx, users, os.Args[2], command == "promote")
	case "list-admins":
		listAdmins(ctx, users)
	case "reconcile":
		reconcile(ctx, cfg, db)
	case "export-statements":
		if len(os.Args) < 3 {
			usage()
		}
		exportStatements(ctx, cfg, db, os.Args[2])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func parseUserID(raw string) uint {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		fmt.Printf("Invalid user ID %q\n", raw)
		os.Exit(1)
	}
	return uint(id)
}

func issueToken(cfg *config.Config, rawID string, rest []string) {
	ttl := 24 * time.Hour
	if len(rest) > 0 {
		d, err := time.ParseDuration(rest[0])
		if err != nil {
			log.Fatalf("Invalid ttl %q: %v", rest[0], err)
		}
		ttl = d
	}
	verifier := middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, nil)
	token, err := verifier.Issue(parseUserID(rawID), ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}

func setAdmin(ctx context.Context, users *service.UserService, rawID string, admin bool) {
	id := parseUserID(rawID)
	current, err := users.GetUserByID(ctx, id)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			fmt.Printf("User with ID %d not found\n", id)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}
	if current.IsAdmin == admin {
		fmt.Printf("User %s (ID: %d) already has is_admin=%t\n", current.Username, current.ID, admin)
		return
	}

	user, err := users.SetAdmin(ctx, id, admin)
	if err != nil {
		log.Fatalf("Failed to update user: %v", err)
	}
	verb := "demoted"
	if admin {
		verb = "promoted"
	}
	fmt.Printf("✅ Successfully %s %s (ID: %d)\n", verb, user.Username, user.ID)
}

func listAdmins(ctx context.Context, users *service.UserService) {
	admins, err := users.ListAdmins(ctx)
	if err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}
	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Display name: %s\n", admin.ID, admin.Username, admin.DisplayName)
	}
	fmt.Println("─────────────────────────────────────")
}

func reconcile(ctx context.Context, cfg *config.Config, db *gorm.DB) {
	support := service.NewSupportService(
		repository.NewDonationRepository(db),
		repository.NewPostRepository(db),
		repository.NewUserRepository(db),
		service.SupportConfig{TopN: cfg.RankingTopN, Flags: featureflags.NewManager(cfg.FeatureFlags)},
	)
	report, err := support.Reconcile(ctx)
	if err != nil {
		log.Fatalf("Reconcile failed: %v", err)
	}
	if !report.Any() {
		fmt.Println("✅ Cached totals match the ledger")
		return
	}
	fmt.Printf("🔧 Repaired drift: %+v\n", report)
}

func exportStatements(ctx context.Context, cfg *config.Config, db *gorm.DB, rawMonth string) {
	if cfg.ExportS3Bucket == "" {
		log.Fatal("EXPORT_S3_BUCKET is not configured")
	}
	month, err := exports.ParseMonth(rawMonth)
	if err != nil {
		log.Fatalf("Invalid month: %v", err)
	}
	client, err := exports.NewS3Client(ctx, cfg.ExportS3Region)
	if err != nil {
		log.Fatalf("Failed to configure S3: %v", err)
	}

	exporter := exports.NewExporter(repository.NewDonationRepository(db), client, cfg.ExportS3Bucket, cfg.ExportS3Prefix)
	results, err := exporter.ExportMonth(ctx, month)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	for _, r := range results {
		fmt.Printf("author %d: %d lines, net ¥%d -> s3://%s/%s\n", r.AuthorID, r.Lines, r.Net, cfg.ExportS3Bucket, r.Key)
	}
	fmt.Printf("✅ Exported %d statements for %s\n", len(results), month.Format("2006-01"))
}
