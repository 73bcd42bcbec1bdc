package server

// Plugin metadata returned from DataSource.init. Static: the connector
// always bills in USD, accepts manually entered secrets only, and tells
// the platform to match records to service accounts through the scope
// org id carried in additional_info.
type Metadata struct {
	Currency             string           `json:"currency"`
	SupportedSecretTypes []string         `json:"supported_secret_types"`
	DataSourceRules      []DataSourceRule `json:"data_source_rules"`
}

// DataSourceRule is one record-routing rule evaluated by the platform
// during ingestion.
type DataSourceRule struct {
	Name             string      `json:"name"`
	ConditionsPolicy string      `json:"conditions_policy"`
	Actions          RuleActions `json:"actions"`
	Options          RuleOptions `json:"options"`
}

// RuleActions holds the single action this plugin uses.
type RuleActions struct {
	MatchServiceAccount MatchServiceAccount `json:"match_service_account"`
}

// MatchServiceAccount maps a record field onto the account it bills to.
type MatchServiceAccount struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// RuleOptions controls rule chaining.
type RuleOptions struct {
	StopProcessing bool `json:"stop_processing"`
}

// InitMetadata builds the static init-time plugin metadata.
func InitMetadata() Metadata {
	return Metadata{
		Currency:             "USD",
		SupportedSecretTypes: []string{"MANUAL"},
		DataSourceRules: []DataSourceRule{
			{
				Name:             "match_service_account",
				ConditionsPolicy: "ALWAYS",
				Actions: RuleActions{
					MatchServiceAccount: MatchServiceAccount{
						Source: "additional_info.X-Scope-OrgID",
						Target: "service_account_id",
					},
				},
				Options: RuleOptions{StopProcessing: true},
			},
		},
	}
}
