package models

// StartServerRequest is the body of POST /mcp/start
type StartServerRequest struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// StopServerRequest is the body of POST /mcp/stop
type StopServerRequest struct {
	Name string `json:"name"`
}

// ServerInfo describes one registered server in GET /mcp/list responses
type ServerInfo struct {
	Name      string   `json:"name"`
	Command   string   `json:"command"`
	Args      []string `json:"args"`
	Connected bool     `json:"connected"`
}

// ListServersResponse is the body of GET /mcp/list
type ListServersResponse struct {
	Servers []ServerInfo `json:"servers"`
}
