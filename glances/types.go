package glances

// Wire shapes for the Glances v4 REST API. Only displayed fields are
// decoded.

type cpuStats struct {
	Total float64 `json:"total"`
}

type memStats struct {
	Total   int64   `json:"total"`
	Used    int64   `json:"used"`
	Percent float64 `json:"percent"`
}

type loadStats struct {
	Min1    float64 `json:"min1"`
	Min5    float64 `json:"min5"`
	Min15   float64 `json:"min15"`
	CPUCore int     `json:"cpucore"`
}

type networkStats struct {
	InterfaceName string `json:"interface_name"`
	BytesRecv     int64  `json:"bytes_recv"`
	BytesSent     int64  `json:"bytes_sent"`
}

type fsStats struct {
	DeviceName string  `json:"device_name"`
	MountPoint string  `json:"mnt_point"`
	FsType     string  `json:"fs_type"`
	Size       int64   `json:"size"`
	Used       int64   `json:"used"`
	Percent    float64 `json:"percent"`
}

type sensorStats struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// CPU is the shaped processor reading.
type CPU struct {
	TotalPercent float64 `json:"totalPercent"`
}

// Memory is the shaped memory reading.
type Memory struct {
	Total   int64   `json:"total"`
	Used    int64   `json:"used"`
	Percent float64 `json:"percent"`
}

// Load is the shaped load average. PerCorePercent is the one-minute load
// weighted by core count, so a fully busy 8-core box reads 100 rather
// than 8.
type Load struct {
	Min1           float64 `json:"min1"`
	Min5           float64 `json:"min5"`
	Min15          float64 `json:"min15"`
	Cores          int     `json:"cores"`
	PerCorePercent float64 `json:"perCorePercent"`
}

// Interface is one physical network interface.
type Interface struct {
	Name      string `json:"name"`
	BytesRecv int64  `json:"bytesRecv"`
	BytesSent int64  `json:"bytesSent"`
}

// Filesystem is one mounted filesystem.
type Filesystem struct {
	Device     string  `json:"device"`
	MountPoint string  `json:"mountPoint"`
	Size       int64   `json:"size"`
	Used       int64   `json:"used"`
	Percent    float64 `json:"percent"`
}

// Sensor is one hardware sensor reading.
type Sensor struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Snapshot is the shaped poll composite for a Glances instance. Fields are
// refreshed independently; a failed sub-request keeps the prior value.
type Snapshot struct {
	CPU         CPU          `json:"cpu"`
	Memory      Memory       `json:"memory"`
	Load        Load         `json:"load"`
	Network     []Interface  `json:"network"`
	Filesystems []Filesystem `json:"filesystems"`
	Sensors     []Sensor     `json:"sensors"`
}
