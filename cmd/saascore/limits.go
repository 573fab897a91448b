package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/pg"
)

func newLimitsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Inspect plan limits",
	}
	cmd.AddCommand(newLimitsCheckCmd(flags))
	return cmd
}

func newLimitsCheckCmd(flags *rootFlags) *cobra.Command {
	var tenant, resource, lang string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print the limit decision for a tenant as JSON",
		Long: "Resolve the tenant's plan, count current usage and print the decision.\n" +
			"Without --resource every resource is checked.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := uuid.Parse(tenant)
			if err != nil {
				return fmt.Errorf("--tenant: %w", err)
			}
			var res limits.Resource
			if resource != "" {
				if res, err = limits.ParseResource(resource); err != nil {
					return err
				}
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx := cmd.Context()
			if lang != "" {
				tag, err := language.Parse(lang)
				if err != nil {
					return fmt.Errorf("--lang: %w", err)
				}
				ctx = limits.WithLanguage(ctx, tag)
			}

			pool, err := pg.Connect(ctx, cfg.PG)
			if err != nil {
				return err
			}
			defer pool.Close()

			enforcer, err := newEnforcer(ctx, cfg, pool, log)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if res == "" {
				return enc.Encode(enforcer.Report(ctx, tenantID))
			}
			d, err := enforcer.Check(ctx, tenantID, res)
			if err != nil {
				return err
			}
			return enc.Encode(d)
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant (user) id")
	cmd.Flags().StringVar(&resource, "resource", "", "resource type, e.g. customers or qr_codes")
	cmd.Flags().StringVar(&lang, "lang", "", "language of the denial message")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
