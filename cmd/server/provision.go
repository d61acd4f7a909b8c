package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jrsteele09/school-console/auth"
	"github.com/jrsteele09/school-console/directory"
	"github.com/jrsteele09/school-console/internal/config"
	"github.com/jrsteele09/school-console/users"
	"github.com/spf13/cobra"
)

var (
	grantEmail  string
	grantRole   string
	grantTenant string
	tenantName  string
)

// cliCaller acts on the directory from the command line.
var cliCaller = auth.Operator("cli")

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profiles",
}

var profileGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Create or replace the profile of an account",
	Long: `Creates the account for --email if needed and gives it a role. Staff must
name an existing tenant with --tenant; super admins are bound to no tenant.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePersistentStore(); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		repo := users.NewRepo(st)
		account, err := repo.EnsureAccount(ctx, grantEmail)
		if err != nil {
			return err
		}
		profile, err := repo.Grant(ctx, account.ID, users.RoleType(grantRole), grantTenant)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"account": account, "profile": profile})
	},
}

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage the tenant directory",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an active tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePersistentStore(); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		t, err := directory.New(st, cliCaller).CreateTenant(ctx, tenantName)
		if err != nil {
			return err
		}
		return printJSON(t)
	},
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requirePersistentStore(); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		list, err := directory.New(st, cliCaller).ListTenants(ctx)
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

func init() {
	profileGrantCmd.Flags().StringVar(&grantEmail, "email", "", "Account email")
	profileGrantCmd.Flags().StringVar(&grantRole, "role", string(users.RoleStaff), "Role: staff or super_admin")
	profileGrantCmd.Flags().StringVar(&grantTenant, "tenant", "", "Tenant id (staff only)")
	_ = profileGrantCmd.MarkFlagRequired("email")
	profileCmd.AddCommand(profileGrantCmd)

	tenantCreateCmd.Flags().StringVar(&tenantName, "name", "", "Tenant name")
	_ = tenantCreateCmd.MarkFlagRequired("name")
	tenantCmd.AddCommand(tenantCreateCmd)
	tenantCmd.AddCommand(tenantListCmd)
}

func requirePersistentStore() error {
	if cfg.GetDatabaseURL() == config.MemoryDatabaseURL {
		return fmt.Errorf("provisioning needs a persistent database (--db-url or DATABASE_URL)")
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
