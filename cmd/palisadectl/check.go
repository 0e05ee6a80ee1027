package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/palisadeproject/palisade/pkg/access"
	"github.com/palisadeproject/palisade/pkg/config"
	"github.com/palisadeproject/palisade/pkg/passport"
)

func checkCmd() *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Evaluate a path against the access policy",
		Long:  `Check reports which firewall a path dispatches to and whether a principal with the given roles would be admitted. Without --role the request is evaluated as anonymous.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.Defaults()

			policy, err := buildPolicy(cfg)
			if err != nil {
				return err
			}

			var principal *passport.Principal
			if len(roles) > 0 {
				principal, err = passport.NewPrincipal("cli", "cli", roles)
				if err != nil {
					return err
				}
			}

			firewallName := matchFirewall(cfg, path)
			decision := policy.Evaluate(path, principal)

			if outputFormat == "json" {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"path":     path,
					"firewall": firewallName,
					"roles":    roles,
					"decision": decision.String(),
				})
			}

			fmt.Printf("path:     %s\n", path)
			fmt.Printf("firewall: %s\n", firewallName)
			fmt.Printf("decision: %s\n", decision)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&roles, "role", nil, "Role held by the hypothetical principal (repeatable)")
	return cmd
}

func buildPolicy(cfg *config.Config) (*access.Policy, error) {
	defaultDecision := access.Deny
	var specs []access.RuleSpec
	if cfg.Policy != nil {
		if cfg.Policy.Spec.DefaultDecision == "allow" {
			defaultDecision = access.Allow
		}
		for _, r := range cfg.Policy.Spec.Rules {
			specs = append(specs, access.RuleSpec{
				Pattern:    r.Pattern,
				Anonymous:  r.Anonymous,
				Roles:      r.Roles,
				Expression: r.Expression,
			})
		}
	}
	return access.NewPolicy(specs, defaultDecision)
}

func matchFirewall(cfg *config.Config, path string) string {
	for _, fw := range cfg.Firewalls {
		re, err := regexp.Compile(fw.Spec.Pattern)
		if err != nil {
			continue
		}
		if re.MatchString(path) {
			return fw.Metadata.Name
		}
	}
	return "(anonymous catch-all)"
}
