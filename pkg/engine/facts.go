package engine

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// HostFacts is the diagnostic identity of the converged machine.
type HostFacts struct {
	Hostname        string `json:"hostname,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	KernelArch      string `json:"kernel_arch,omitempty"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	Virtualization  string `json:"virtualization,omitempty"`
}

// FactsFunc collects host facts. Failures are not errors: the report
// simply carries fewer fields.
type FactsFunc func(ctx context.Context) HostFacts

// CollectFacts reads host facts through gopsutil.
func CollectFacts(ctx context.Context) HostFacts {
	facts := HostFacts{KernelArch: runtime.GOARCH}

	info, err := host.InfoWithContext(ctx)
	if err != nil || info == nil {
		return facts
	}

	facts.Hostname = info.Hostname
	facts.KernelVersion = info.KernelVersion
	if info.KernelArch != "" {
		facts.KernelArch = info.KernelArch
	}
	facts.Platform = info.Platform
	facts.PlatformVersion = info.PlatformVersion
	facts.Virtualization = info.VirtualizationSystem
	return facts
}
