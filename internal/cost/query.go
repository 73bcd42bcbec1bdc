package cost

import (
	"fmt"
	"strings"

	"github.com/finopshq/mimir-cost-datasource/internal/billing"
)

// Query building blocks. Each component joins a workload's resource
// allocation against the node's hourly rate, sums it per workload, and
// scales the averaged hourly dollar figure to a full-month total. The
// subquery resolution is fixed at one sample per hour, so a month of d
// days contributes 24*d samples.
const (
	queryResolution = "1h"
	hoursPerDay     = 24

	bytesPerGiB = "1024 / 1024 / 1024"
)

// usageType values tagged onto each component so the normalizer can
// tell them apart later.
const (
	UsageTypeCPU = "CPU"
	UsageTypeRAM = "RAM"
	UsageTypeGPU = "GPU"
	UsageTypePV  = "PV"
)

// MonthlyAllocationQuery renders the cost-allocation query for one
// billing month: CPU, RAM, GPU and persistent-volume dollar totals per
// (cluster, node, namespace, pod), the storage component additionally
// keyed by persistentvolume. The embedded window always matches the
// exact day count of the month.
func MonthlyAllocationQuery(m billing.Month) string {
	days := m.Days()
	steps := hoursPerDay * days

	components := []string{
		workloadComponent(UsageTypeCPU, "container_cpu_allocation", "node_cpu_hourly_cost", days, steps),
		workloadComponent(UsageTypeRAM, fmt.Sprintf("(container_memory_allocation_bytes / %s)", bytesPerGiB), "node_ram_hourly_cost", days, steps),
		workloadComponent(UsageTypeGPU, "container_gpu_allocation", "node_gpu_hourly_cost", days, steps),
		volumeComponent(days, steps),
	}

	return strings.Join(components, "\nor\n")
}

// workloadComponent costs a node-level resource: allocation joined with
// the node's hourly rate, summed per workload.
func workloadComponent(usageType, allocation, hourlyCost string, days, steps int) string {
	return fmt.Sprintf(
		`label_replace(sum by (cluster, node, namespace, pod) (sum_over_time((%s * on (cluster, node) group_left () %s)[%dd:%s])) / %d * %d * %d, "type", "%s", "", "")`,
		allocation, hourlyCost, days, queryResolution, steps, hoursPerDay, days, usageType,
	)
}

// volumeComponent costs persistent volumes: claimed bytes converted to
// gibibytes, joined with the volume's hourly per-GiB rate, and keyed by
// the volume as well as the workload.
func volumeComponent(days, steps int) string {
	return fmt.Sprintf(
		`label_replace(sum by (persistentvolume, cluster, node, namespace, pod) (sum_over_time(((pod_pvc_allocation / %s) * on (cluster, persistentvolume) group_left () pv_hourly_cost)[%dd:%s])) / %d * %d * %d, "type", "%s", "", "")`,
		bytesPerGiB, days, queryResolution, steps, hoursPerDay, days, UsageTypePV,
	)
}

// ClusterInfoQuery is the instant query for cluster-level metadata
// (provisioner, region) reused by every record of a pipeline run.
const ClusterInfoQuery = "kubecost_cluster_info"
