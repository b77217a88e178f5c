package portainer

import "errors"

var errMissingCredentials = errors.New("an access token or username and password are required")

// endpoint is the wire shape of one entry from /api/endpoints. Status 1
// means the environment is up.
type endpoint struct {
	ID     int    `json:"Id"`
	Name   string `json:"Name"`
	Status int    `json:"Status"`
}

// Environment is one Portainer environment shaped for display.
type Environment struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Up   bool   `json:"up"`
}

// Snapshot is the shaped poll composite for a Portainer instance.
type Snapshot struct {
	Environments   []Environment `json:"environments"`
	EnvironmentsUp int           `json:"environmentsUp"`
}
