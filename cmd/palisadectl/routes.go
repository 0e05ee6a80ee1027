package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/palisadeproject/palisade/pkg/config"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List firewalls and access rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg.Defaults()

			switch outputFormat {
			case "json":
				return routesJSON(cfg)
			case "table":
				return routesTable(cfg)
			default:
				return fmt.Errorf("unsupported output format: %s", outputFormat)
			}
		},
	}
}

type routesOutput struct {
	Firewalls []firewallRoute   `json:"firewalls"`
	Rules     []config.RuleSpec `json:"rules"`
	Default   string            `json:"defaultDecision"`
}

type firewallRoute struct {
	Name           string   `json:"name"`
	Pattern        string   `json:"pattern"`
	Authenticators []string `json:"authenticators"`
	Session        bool     `json:"session"`
}

func collectRoutes(cfg *config.Config) routesOutput {
	out := routesOutput{Default: "deny"}
	for _, fw := range cfg.Firewalls {
		out.Firewalls = append(out.Firewalls, firewallRoute{
			Name:           fw.Metadata.Name,
			Pattern:        fw.Spec.Pattern,
			Authenticators: fw.Spec.Order,
			Session:        fw.Spec.Session != nil,
		})
	}
	if cfg.Policy != nil {
		out.Rules = cfg.Policy.Spec.Rules
		if cfg.Policy.Spec.DefaultDecision != "" {
			out.Default = cfg.Policy.Spec.DefaultDecision
		}
	}
	return out
}

func routesJSON(cfg *config.Config) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(collectRoutes(cfg))
}

func routesTable(cfg *config.Config) error {
	routes := collectRoutes(cfg)

	fmt.Println("Firewalls (dispatch order):")
	fwTable := tablewriter.NewWriter(os.Stdout)
	fwTable.Append([]string{"Name", "Pattern", "Authenticators", "Session"})
	for _, fw := range routes.Firewalls {
		session := "no"
		if fw.Session {
			session = "yes"
		}
		fwTable.Append([]string{fw.Name, fw.Pattern, strings.Join(fw.Authenticators, ", "), session})
	}
	fwTable.Render()

	fmt.Println("\nAccess rules (evaluation order):")
	ruleTable := tablewriter.NewWriter(os.Stdout)
	ruleTable.Append([]string{"Pattern", "Requirement"})
	for _, rule := range routes.Rules {
		ruleTable.Append([]string{rule.Pattern, describeRule(rule)})
	}
	ruleTable.Append([]string{"(no match)", routes.Default})
	ruleTable.Render()

	return nil
}

func describeRule(rule config.RuleSpec) string {
	switch {
	case rule.Anonymous:
		return "anonymous"
	case len(rule.Roles) > 0:
		return "role: " + strings.Join(rule.Roles, " | ")
	default:
		return "expr: " + rule.Expression
	}
}
