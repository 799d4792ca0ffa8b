package transport

import "errors"

var (
	ErrClosed            = errors.New("transport is closed")
	ErrServerUnreachable = errors.New("server unreachable")

	ErrSSHAuth             = errors.New("ssh authentication failed")
	ErrSSHTunnel           = errors.New("ssh tunnel failed")
	ErrSSHHostKey          = errors.New("ssh host key verification failed")
	ErrSSHUnreachable      = errors.New("ssh host unreachable")
	ErrSSHAgentUnavailable = errors.New("ssh agent unavailable")
)
