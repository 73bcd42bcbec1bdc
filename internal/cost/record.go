// Package cost implements the extraction pipeline: it turns one
// (account, month) synchronization task into a stream of normalized
// billing records pulled from the cluster cost-allocation metrics.
package cost

// Record is one normalized billing line item, produced once per
// (series, sample) pair. Optional fields stay nil when the source
// carried no value; absence is never encoded as an empty string.
type Record struct {
	Cost           float64           `json:"cost"`
	UsageQuantity  float64           `json:"usage_quantity"`
	UsageType      *string           `json:"usage_type,omitempty"`
	UsageUnit      *string           `json:"usage_unit,omitempty"`
	Provider       string            `json:"provider"`
	RegionCode     string            `json:"region_code"`
	Product        string            `json:"product"`
	BilledDate     string            `json:"billed_date"`
	AdditionalInfo map[string]string `json:"additional_info"`
	Tags           map[string]string `json:"tags"`
}

// Batch is the wire unit sent downstream. The terminal batch of every
// stream is empty: {"results": []}.
type Batch struct {
	Results []Record `json:"results"`
}

// EmptyBatch returns a batch that serializes as {"results": []} rather
// than {"results": null}.
func EmptyBatch() Batch {
	return Batch{Results: []Record{}}
}
