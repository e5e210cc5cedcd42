package sysinfo

import (
	"fmt"
	"strconv"
	"time"
)

// Tokens flattens a snapshot into named, pre-formatted strings. The
// same names serve the sysinfo.* variable namespace and the sysinfo
// module's format templates.
func (m Metrics) Tokens() map[string]string {
	t := map[string]string{
		"cpu_percent":      strconv.Itoa(int(m.CPU.Total + 0.5)),
		"cpu_count":        strconv.Itoa(m.CPU.Count),
		"memory_percent":   strconv.Itoa(int(m.Memory.UsedPercent + 0.5)),
		"memory_used":      HumanBytes(m.Memory.Used),
		"memory_total":     HumanBytes(m.Memory.Total),
		"memory_available": HumanBytes(m.Memory.Available),
		"swap_percent":     strconv.Itoa(int(m.Memory.SwapUsedPercent + 0.5)),
		"load1":            strconv.FormatFloat(m.Load.Load1, 'f', 2, 64),
		"load5":            strconv.FormatFloat(m.Load.Load5, 'f', 2, 64),
		"load15":           strconv.FormatFloat(m.Load.Load15, 'f', 2, 64),
		"net_rx":           HumanRate(m.Net.RxPerSec),
		"net_tx":           HumanRate(m.Net.TxPerSec),
		"uptime":           HumanDuration(m.Uptime),
	}
	if m.TempC > 0 {
		t["temp_c"] = strconv.Itoa(int(m.TempC + 0.5))
	}
	if len(m.Disks) > 0 {
		d := m.Disks[0]
		t["disk_percent"] = strconv.Itoa(int(d.UsedPercent + 0.5))
		t["disk_free"] = HumanBytes(d.Free)
		t["disk_used"] = HumanBytes(d.Used)
		t["disk_total"] = HumanBytes(d.Total)
	}
	return t
}

// HumanBytes renders a byte count in binary units with one decimal
// place.
func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// HumanRate renders a bytes-per-second rate.
func HumanRate(perSec float64) string {
	if perSec < 0 {
		perSec = 0
	}
	return HumanBytes(uint64(perSec)) + "/s"
}

// HumanDuration renders an uptime as its two most significant units,
// e.g. "3d 4h" or "12m 30s".
func HumanDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
}
