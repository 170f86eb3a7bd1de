// Package ssh wraps the SSH plumbing used by the remote launch mode.
package ssh

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"
)

// Config holds the SSH settings shared by all nodes of a run. The host is
// supplied per connection from the node list.
type Config struct {
	Port           int
	User           string
	KeyPath        string
	Password       string
	ConnectTimeout time.Duration
}

// Client is one node's SSH connection.
type Client struct {
	config Config
	host   string
	client *ssh.Client
}

// Result is the outcome of a remote command.
type Result struct {
	Output   string
	ExitCode int
}

// NewClient creates a client for host with the shared settings.
func NewClient(config Config, host string) *Client {
	if config.Port == 0 {
		config.Port = 22
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	return &Client{config: config, host: host}
}

// Host returns the remote hostname.
func (c *Client) Host() string { return c.host }

// Connect establishes the SSH connection.
func (c *Client) Connect(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	var authMethods []ssh.AuthMethod
	if c.config.KeyPath != "" {
		key, err := loadPrivateKey(c.config.KeyPath)
		if err != nil {
			return fmt.Errorf("failed to load private key: %w", err)
		}
		authMethods = append(authMethods, ssh.PublicKeys(key))
	}
	if c.config.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.config.Password))
	}
	if len(authMethods) == 0 {
		return fmt.Errorf("no authentication method provided for %s", c.host)
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.ConnectTimeout,
	}

	address := fmt.Sprintf("%s:%d", c.host, c.config.Port)
	conn, err := dialWithContext(ctx, address, sshConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	c.client = conn
	return nil
}

// Run executes a command remotely and waits for it. The command's stdout and
// stderr are combined. Cancelling ctx tears the session down, which
// terminates the remote command.
func (c *Client) Run(ctx context.Context, command string) (*Result, error) {
	if c.client == nil {
		return nil, fmt.Errorf("not connected to %s", c.host)
	}

	session, err := c.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session on %s: %w", c.host, err)
	}
	defer session.Close()

	done := make(chan struct{})
	result := &Result{}
	var runErr error

	go func() {
		defer close(done)
		output, err := session.CombinedOutput(command)
		result.Output = string(output)
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				result.ExitCode = exitErr.ExitStatus()
			} else {
				runErr = err
			}
		}
	}()

	select {
	case <-done:
		return result, runErr
	case <-ctx.Done():
		session.Close()
		<-done
		return result, ctx.Err()
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

func loadPrivateKey(keyPath string) (ssh.Signer, error) {
	if len(keyPath) > 0 && keyPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		keyPath = filepath.Join(home, keyPath[1:])
	}

	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(keyData)
}

func dialWithContext(ctx context.Context, address string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}
