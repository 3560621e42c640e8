package sshserver

// Config defines SSH bridge settings.
type Config struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
}
