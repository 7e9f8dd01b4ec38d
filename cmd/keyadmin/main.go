// Package main is the keyadmin CLI: tenant and key administration against
// the same stores the server uses. Bootstrap admin keys are minted here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keygate-io/keygate/internal/auth"
	"github.com/keygate-io/keygate/internal/cache"
	"github.com/keygate-io/keygate/internal/config"
	"github.com/keygate-io/keygate/internal/crypto"
	"github.com/keygate-io/keygate/internal/store"
	"github.com/keygate-io/keygate/internal/tenant"
	"github.com/keygate-io/keygate/internal/token"
	"github.com/keygate-io/keygate/pkg/models"
)

const usage = "expected 'create-tenant', 'assign', 'issue', 'list' or 'revoke' subcommands"

func main() {
	createCmd := flag.NewFlagSet("create-tenant", flag.ExitOnError)
	createName := createCmd.String("name", "", "Tenant name")

	assignCmd := flag.NewFlagSet("assign", flag.ExitOnError)
	assignUser := assignCmd.String("user", "", "User UUID")
	assignTenant := assignCmd.String("tenant", "", "Tenant name")

	issueCmd := flag.NewFlagSet("issue", flag.ExitOnError)
	issueOwner := issueCmd.String("owner", "", "Owner user UUID")
	issueName := issueCmd.String("name", "generic-key", "Description of the key")
	issueKind := issueCmd.String("kind", "endpoint", "Key kind (endpoint or query)")
	issueEndpoints := issueCmd.String("endpoints", "", "Comma-separated endpoint paths")
	issuePerms := issueCmd.String("permissions", "", `JSON permissions, e.g. [{"operation":"getUser","allowed_fields":["id"]}]`)

	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	listOwner := listCmd.String("owner", "", "Owner user UUID")

	revokeCmd := flag.NewFlagSet("revoke", flag.ExitOnError)
	revokeToken := revokeCmd.String("token", "", "Token to revoke")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	sealer, err := crypto.NewSealer(cfg.Token.Secret)
	if err != nil {
		log.Fatalf("create sealer: %v", err)
	}
	codec := token.NewCodec(sealer)

	pgStore := store.NewPostgresStore(pool)
	router := tenant.NewRouter(pgStore, cache.Noop{})
	issuer := auth.NewIssuer(pgStore, router, codec, cfg.Token.TTLDays)
	evaluator := auth.NewEvaluator(codec, pgStore, router)
	svc := auth.NewService(issuer, evaluator, codec, pgStore, router)

	switch os.Args[1] {
	case "create-tenant":
		mustParse(createCmd)
		createTenant(ctx, pgStore, *createName)
	case "assign":
		mustParse(assignCmd)
		assign(ctx, pgStore, router, *assignUser, *assignTenant)
	case "issue":
		mustParse(issueCmd)
		issue(ctx, svc, *issueOwner, *issueName, *issueKind, *issueEndpoints, *issuePerms)
	case "list":
		mustParse(listCmd)
		list(ctx, svc, *listOwner)
	case "revoke":
		mustParse(revokeCmd)
		revoke(ctx, svc, *revokeToken)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func mustParse(fs *flag.FlagSet) {
	if err := fs.Parse(os.Args[2:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
}

func createTenant(ctx context.Context, s store.Store, name string) {
	if name == "" {
		log.Fatal("-name is required")
	}
	t, err := s.CreateTenant(ctx, name)
	if err != nil {
		log.Fatalf("create tenant: %v", err)
	}
	fmt.Printf("tenant created: %s (id %s, schema %s)\n", t.Name, t.ID, t.SchemaName)
}

func assign(ctx context.Context, s store.Store, router *tenant.Router, user, tenantName string) {
	userID, err := uuid.Parse(user)
	if err != nil {
		log.Fatalf("-user must be a UUID: %v", err)
	}
	t, err := s.GetTenantByName(ctx, tenantName)
	if err != nil {
		log.Fatalf("look up tenant %q: %v", tenantName, err)
	}
	if err := router.SetTenant(ctx, userID, t.ID); err != nil {
		log.Fatalf("assign tenant: %v", err)
	}
	fmt.Printf("user %s assigned to tenant %s\n", userID, t.Name)
}

func issue(ctx context.Context, svc *auth.Service, owner, name, kind, endpoints, perms string) {
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		log.Fatalf("-owner must be a UUID: %v", err)
	}

	var (
		key *models.KeyRecord
		tok string
	)
	switch models.KeyKind(kind) {
	case models.KindEndpoint:
		var paths []string
		for _, p := range strings.Split(endpoints, ",") {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		key, tok, err = svc.IssueEndpointKey(ctx, ownerID, name, paths)
	case models.KindQuery:
		var permissions []models.FieldPermission
		if err := json.Unmarshal([]byte(perms), &permissions); err != nil {
			log.Fatalf("-permissions must be valid JSON: %v", err)
		}
		key, tok, err = svc.IssueQueryKey(ctx, ownerID, name, permissions)
	default:
		log.Fatalf("unknown kind %q", kind)
	}
	if err != nil {
		log.Fatalf("issue key: %v", err)
	}

	fmt.Printf("key %d (%s) issued, expires %s\n", key.ID, key.Kind, key.ExpiresAt().Format(time.RFC3339))
	fmt.Println("token (shown once, store it safely):")
	fmt.Println(tok)
}

func list(ctx context.Context, svc *auth.Service, owner string) {
	ownerID, err := uuid.Parse(owner)
	if err != nil {
		log.Fatalf("-owner must be a UUID: %v", err)
	}
	keys, err := svc.ListKeys(ctx, ownerID)
	if err != nil {
		log.Fatalf("list keys: %v", err)
	}
	for _, k := range keys {
		fmt.Printf("%d\t%s\t%s\tcreated %s\texpires %s\n",
			k.ID, k.Kind, k.Name,
			k.CreatedAt.Format(time.RFC3339), k.ExpiresAt().Format(time.RFC3339))
	}
}

func revoke(ctx context.Context, svc *auth.Service, tok string) {
	if tok == "" {
		log.Fatal("-token is required")
	}
	if err := svc.Revoke(ctx, tok); err != nil {
		log.Fatalf("revoke: %v", err)
	}
	fmt.Println("token revoked")
}
