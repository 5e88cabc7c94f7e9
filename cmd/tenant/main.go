// Package main provides the tenant and numbering administration CLI.
// Usage: tenant create --slug acme --name "ACME Corp"
//
//	tenant list
//	tenant suspend <tenant-id>
//	tenant scheme create --tenant <id> --template "INV-{YYYY}-{SEQ:4}" --reset YEARLY --from 2026-01-01
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"invoicenum/internal/app"
	"invoicenum/internal/config"
	"invoicenum/internal/core/id"
	"invoicenum/internal/core/numerator"
	"invoicenum/internal/core/tenant"
	"invoicenum/internal/domain/numbering"
	"invoicenum/internal/infrastructure/storage/postgres"
	"invoicenum/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), logger.Nop())

	switch os.Args[1] {
	case "create":
		createTenant(ctx)
	case "list":
		listTenants(ctx)
	case "migrate":
		migrate(ctx)
	case "suspend":
		setStatus(ctx, tenant.StatusSuspended)
	case "activate":
		setStatus(ctx, tenant.StatusActive)
	case "department":
		department(ctx)
	case "scheme":
		scheme(ctx)
	case "counters":
		counters(ctx)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Invoice Numbering Admin CLI

Usage:
  tenant <command> [options]

Commands:
  create      Create a new tenant
  list        List all tenants
  migrate     Apply database migrations
  suspend     Suspend a tenant
  activate    Activate a suspended tenant
  department  Manage departments (create, list)
  scheme      Manage numbering schemes (create, list, archive, preview)
  counters    Show the counter drift report for a tenant
  help        Show this help

Environment Variables:
  DATABASE_URL    Connection string (required)

Examples:
  tenant create --slug acme --name "ACME Corporation"
  tenant list
  tenant suspend <tenant-uuid>
  tenant department create --tenant <tenant-uuid> --code SALES --name "Sales"
  tenant scheme create --tenant <tenant-uuid> --template "INV-{YYYY}-{MM}-{SEQ:4}" --reset MONTHLY --from 2026-01-01
  tenant scheme list --tenant <tenant-uuid>
  tenant scheme archive --tenant <tenant-uuid> --id <scheme-uuid>
  tenant scheme preview --template "INV-{YYYY}-{SEQ:4}"
  tenant counters --tenant <tenant-uuid>`)
}

func fail(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}

// flags parses "--name value" pairs starting at os.Args[from].
func flags(from int) map[string]string {
	out := make(map[string]string)
	for i := from; i < len(os.Args); i++ {
		arg := os.Args[i]
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		if i+1 < len(os.Args) {
			out[strings.TrimPrefix(arg, "--")] = os.Args[i+1]
			i++
		}
	}
	return out
}

func required(f map[string]string, names ...string) {
	for _, n := range names {
		if f[n] == "" {
			fail("--%s is required", n)
		}
	}
}

func open(ctx context.Context) (*config.Config, *app.Storage) {
	cfg, err := config.Load()
	if err != nil {
		fail("%v", err)
	}
	// Schema changes are explicit in the CLI.
	cfg.Database.MigrateOnStart = false
	st, err := app.Open(ctx, cfg)
	if err != nil {
		fail("%v", err)
	}
	return cfg, st
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func createTenant(ctx context.Context) {
	f := flags(2)
	in := tenant.CreateTenantInput{Slug: f["slug"], DisplayName: f["name"]}
	if err := in.Validate(); err != nil {
		fail("%v", err)
	}

	_, st := open(ctx)
	defer st.Close()

	t := in.ToTenant()
	if err := st.Tenants.Create(ctx, t); err != nil {
		fail("creating tenant: %v", err)
	}

	fmt.Printf("Tenant '%s' created\n", t.Slug)
	fmt.Printf("  Tenant ID: %s\n", t.ID)
	fmt.Printf("  Status: %s\n", t.Status)
}

func listTenants(ctx context.Context) {
	_, st := open(ctx)
	defer st.Close()

	tenants, err := st.Tenants.ListAll(ctx)
	if err != nil {
		fail("listing tenants: %v", err)
	}
	if len(tenants) == 0 {
		fmt.Println("No tenants found")
		return
	}

	fmt.Printf("%-36s %-20s %-30s %-10s\n", "TENANT_ID", "SLUG", "NAME", "STATUS")
	fmt.Println(strings.Repeat("-", 100))
	for _, t := range tenants {
		fmt.Printf("%-36s %-20s %-30s %-10s\n",
			truncate(t.ID, 36),
			truncate(t.Slug, 20),
			truncate(t.DisplayName, 30),
			t.Status,
		)
	}
}

func migrate(ctx context.Context) {
	_, st := open(ctx)
	defer st.Close()

	if st.Pool == nil {
		fail("migrate requires STORAGE=postgres")
	}
	if err := postgres.Migrate(ctx, st.Pool); err != nil {
		fail("%v", err)
	}
	fmt.Println("Migrations applied")
}

func setStatus(ctx context.Context, status tenant.Status) {
	if len(os.Args) < 3 {
		fail("tenant id is required")
	}
	tenantID := os.Args[2]

	_, st := open(ctx)
	defer st.Close()

	if err := st.Tenants.UpdateStatusByID(ctx, tenantID, status); err != nil {
		fail("%v", err)
	}
	fmt.Printf("Tenant %s is now %s\n", tenantID, status)
}

func department(ctx context.Context) {
	if len(os.Args) < 3 {
		fail("department subcommand is required (create, list)")
	}
	f := flags(3)
	required(f, "tenant")

	cfg, st := open(ctx)
	defer st.Close()
	svc := app.NewServices(st, cfg, nil)

	switch os.Args[2] {
	case "create":
		required(f, "code", "name")
		dep, err := svc.Departments.Create(ctx, f["tenant"], f["code"], f["name"])
		if err != nil {
			fail("%v", err)
		}
		printJSON(dep)
	case "list":
		list, err := svc.Departments.List(ctx, f["tenant"])
		if err != nil {
			fail("%v", err)
		}
		printJSON(list)
	default:
		fail("unknown department subcommand %q", os.Args[2])
	}
}

func scheme(ctx context.Context) {
	if len(os.Args) < 3 {
		fail("scheme subcommand is required (create, list, archive, preview)")
	}
	f := flags(3)

	if os.Args[2] == "preview" {
		required(f, "template")
		out, err := numerator.Preview(f["template"])
		if err != nil {
			fail("%v", err)
		}
		fmt.Println(out)
		return
	}

	required(f, "tenant")
	cfg, st := open(ctx)
	defer st.Close()
	svc := app.NewServices(st, cfg, nil)

	switch os.Args[2] {
	case "create":
		required(f, "template", "reset")
		rp, err := numerator.ParseResetPeriod(f["reset"])
		if err != nil {
			fail("%v", err)
		}
		from := time.Now().UTC()
		if f["from"] != "" {
			if from, err = numerator.ParseDate("from", f["from"]); err != nil {
				fail("%v", err)
			}
		}
		s, err := svc.Schemes.CreateScheme(ctx, numbering.CreateSchemeInput{
			TenantID:      f["tenant"],
			Template:      f["template"],
			ResetPeriod:   rp,
			EffectiveFrom: from,
		})
		if err != nil {
			fail("%v", err)
		}
		printJSON(s)
	case "list":
		list, err := svc.Schemes.ListSchemes(ctx, f["tenant"], f["active"] == "true")
		if err != nil {
			fail("%v", err)
		}
		printJSON(list)
	case "archive":
		required(f, "id")
		schemeID, err := id.Parse(f["id"])
		if err != nil {
			fail("invalid scheme id: %v", err)
		}
		s, err := svc.Schemes.ArchiveScheme(ctx, f["tenant"], schemeID)
		if err != nil {
			fail("%v", err)
		}
		printJSON(s)
	default:
		fail("unknown scheme subcommand %q", os.Args[2])
	}
}

func counters(ctx context.Context) {
	f := flags(2)
	required(f, "tenant")

	cfg, st := open(ctx)
	defer st.Close()
	svc := app.NewServices(st, cfg, nil)

	report, err := svc.Observer.ListCounters(ctx, f["tenant"])
	if err != nil {
		fail("%v", err)
	}
	printJSON(report)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
