package cost

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finopshq/mimir-cost-datasource/internal/apperr"
	"github.com/finopshq/mimir-cost-datasource/internal/billing"
	"github.com/finopshq/mimir-cost-datasource/internal/mimir"
)

// Series labels consumed by the normalizer.
const (
	labelType             = "type"
	labelCluster          = "cluster"
	labelNode             = "node"
	labelNamespace        = "namespace"
	labelPod              = "pod"
	labelContainer        = "container"
	labelPersistentVolume = "persistentvolume"
	labelServiceName      = "service_name"

	clusterLabelRegion      = "region"
	clusterLabelProvisioner = "provisioner"
)

// Adjustment line items that carry cost but no usage category of their
// own; their type label never becomes a usage_type.
const (
	typeIdle         = "idle"
	typeLoadBalancer = "Load Balancer"
)

const (
	// providerKubernetes is the fixed provider of every record.
	providerKubernetes = "kubernetes"

	// scopeOrgIDKey is the additional-info key the platform's
	// data-source rule matches against the service account.
	scopeOrgIDKey = "X-Scope-OrgID"

	// idleMarkerKey flags idle-cost records for downstream drill-down.
	idleMarkerKey = "Idle"

	billedDateLayout = "2006-01-02"
)

// additionalInfoKeys maps series labels to the additional-info keys the
// platform shows. A label absent from the series yields no entry at all.
var additionalInfoKeys = [...]struct {
	label string
	key   string
}{
	{labelCluster, "Cluster"},
	{labelNode, "Node"},
	{labelNamespace, "Namespace"},
	{labelPod, "Pod"},
	{labelContainer, "Container"},
	{labelPersistentVolume, "PersistentVolume"},
	{labelServiceName, "Service"},
}

// Normalizer converts matrix series into billing records, resolving
// region and product against the cluster metadata fetched once per run.
type Normalizer struct {
	cluster    mimir.ClusterInfo
	accountRef string
}

// NewNormalizer builds a normalizer scoped to one account reference.
func NewNormalizer(cluster mimir.ClusterInfo, accountRef string) *Normalizer {
	return &Normalizer{cluster: cluster, accountRef: accountRef}
}

// NormalizePage emits one record per (series, sample) pair, preserving
// series and sample order. A sample without a cost value aborts the
// whole page with a required-parameter error.
func (n *Normalizer) NormalizePage(page []mimir.TimeSeries) ([]Record, error) {
	records := make([]Record, 0, len(page))
	for _, series := range page {
		for _, sample := range series.Samples {
			record, err := n.normalizeSample(series.Labels, sample)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
	}
	return records, nil
}

func (n *Normalizer) normalizeSample(labels map[string]string, sample mimir.Sample) (Record, error) {
	cost, err := parseCost(sample)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Cost:           cost,
		UsageQuantity:  0,
		UsageType:      usageType(labels[labelType]),
		Provider:       providerKubernetes,
		RegionCode:     n.regionCode(labels),
		Product:        n.product(),
		BilledDate:     time.Unix(sample.Timestamp, 0).UTC().Format(billedDateLayout),
		AdditionalInfo: n.additionalInfo(labels),
		Tags:           map[string]string{},
	}, nil
}

// parseCost rejects samples without a value; malformed upstream data
// must fail the task rather than produce a partial record.
func parseCost(sample mimir.Sample) (float64, error) {
	if sample.Value == "" {
		return 0, &apperr.RequiredParameter{Key: "cost"}
	}
	cost, err := strconv.ParseFloat(sample.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", &apperr.RequiredParameter{Key: "cost"}, err)
	}
	return cost, nil
}

// usageType keeps the series type label except for adjustment items,
// which stay uncategorized.
func usageType(seriesType string) *string {
	if seriesType == "" || seriesType == typeLoadBalancer || strings.EqualFold(seriesType, typeIdle) {
		return nil
	}
	return &seriesType
}

// regionCode prefers the cluster-level region label and falls back to
// the region token embedded in the node name.
func (n *Normalizer) regionCode(labels map[string]string) string {
	if region, ok := n.cluster.Label(clusterLabelRegion); ok {
		return billing.RegionName(region)
	}
	if parts := strings.Split(labels[labelNode], "."); len(parts) > 1 {
		return billing.RegionName(parts[1])
	}
	return billing.UnknownRegion
}

func (n *Normalizer) product() string {
	if provisioner, ok := n.cluster.Label(clusterLabelProvisioner); ok {
		return provisioner
	}
	return providerKubernetes
}

// additionalInfo copies only the labels actually present on the series;
// omitted labels produce no entry, never an empty-string placeholder.
func (n *Normalizer) additionalInfo(labels map[string]string) map[string]string {
	info := make(map[string]string, len(additionalInfoKeys)+2)
	for _, mapping := range additionalInfoKeys {
		if v := labels[mapping.label]; v != "" {
			info[mapping.key] = v
		}
	}
	info[scopeOrgIDKey] = n.accountRef
	if strings.EqualFold(labels[labelType], typeIdle) {
		info[idleMarkerKey] = "true"
	}
	return info
}
