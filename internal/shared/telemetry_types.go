package shared

// ConnectionInfo is one row of the host TCP table.
type ConnectionInfo struct {
	Pid           int    `json:"pid"`
	LocalAddress  string `json:"local_address"`
	LocalPort     int    `json:"local_port"`
	RemoteAddress string `json:"remote_address"`
	RemotePort    int    `json:"remote_port"`
	State         string `json:"state"`
}

const StateEstablished = "ESTABLISHED"
