// Package config provides configuration loading for the API server
package config

import (
	"fmt"
	"os"

	"github.com/camforge/camforge/pkg/models"
	"github.com/camforge/camforge/pkg/schema"
	"gopkg.in/yaml.v3"
)

// ServerConfigFile represents the structure of the camforge.yaml file
type ServerConfigFile struct {
	Governance *GovernanceConfig  `yaml:"governance"`
	Schemas    []SchemaConfigFile `yaml:"schemas"`
}

// GovernanceConfig overrides the default governance knobs applied to new
// sessions created without an explicit policy
type GovernanceConfig struct {
	AllowRedOverride                     *bool    `yaml:"allow_red_override"`
	TreatUnknownAsRed                    *bool    `yaml:"treat_unknown_as_red"`
	RequireExplicitApproval              *bool    `yaml:"require_explicit_approval"`
	MinScoreToApprove                    *float64 `yaml:"min_score_to_approve"`
	RequireServerSideFeasibilityForPaths *bool    `yaml:"require_server_side_feasibility_for_toolpaths"`
}

// SchemaConfigFile represents one document schema registration in the YAML file
type SchemaConfigFile struct {
	Mode   string         `yaml:"mode"`
	Role   string         `yaml:"role"`
	Schema map[string]any `yaml:"schema"`
}

// LoadServerConfig loads server configuration from a YAML file
func LoadServerConfig(filepath string) (*ServerConfigFile, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ServerConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	for i, s := range configFile.Schemas {
		if s.Role != string(schema.RoleDesign) && s.Role != string(schema.RoleContext) {
			return nil, fmt.Errorf("schemas[%d]: unknown document role %q", i, s.Role)
		}

		if len(s.Schema) == 0 {
			return nil, fmt.Errorf("schemas[%d]: schema body is empty", i)
		}
	}

	return &configFile, nil
}

// GovernancePolicy materializes the configured overrides on top of the
// built-in defaults.
func (c *ServerConfigFile) GovernancePolicy() models.GovernancePolicy {
	policy := models.DefaultGovernancePolicy()
	if c.Governance == nil {
		return policy
	}

	if v := c.Governance.AllowRedOverride; v != nil {
		policy.AllowRedOverride = *v
	}

	if v := c.Governance.TreatUnknownAsRed; v != nil {
		policy.TreatUnknownAsRed = *v
	}

	if v := c.Governance.RequireExplicitApproval; v != nil {
		policy.RequireExplicitApproval = *v
	}

	if v := c.Governance.MinScoreToApprove; v != nil {
		policy.MinScoreToApprove = *v
	}

	if v := c.Governance.RequireServerSideFeasibilityForPaths; v != nil {
		policy.RequireServerSideFeasibilityForPaths = *v
	}

	return policy
}

// BuildSchemaRegistry registers every configured document schema.
func (c *ServerConfigFile) BuildSchemaRegistry() *schema.Registry {
	registry := schema.NewRegistry()
	for _, s := range c.Schemas {
		registry.Register(models.WorkflowMode(s.Mode), schema.DocumentRole(s.Role), s.Schema)
	}

	return registry
}
