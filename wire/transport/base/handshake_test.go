package base

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshakeNegotiation(t *testing.T) {
	tests := []struct {
		name          string
		wantShared    bool
		serverGrants  bool
		expectGranted bool
	}{
		{"inline stays inline", false, false, false},
		{"shm granted", true, true, true},
		{"shm downgraded to inline", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer server.Close()
			defer client.Close()

			serverDone := make(chan error, 1)
			go func() {
				wantShared, err := readHandshake(server, 0)
				if err != nil {
					serverDone <- err
					return
				}
				serverDone <- writeHandshakeReply(server, wantShared && tt.serverGrants, 0)
			}()

			granted, err := ClientHandshake(client, tt.wantShared, 0)
			require.NoError(t, err)
			require.NoError(t, <-serverDone)
			require.Equal(t, tt.expectGranted, granted)
		})
	}
}

func TestHandshakeRejectsUnknownGreeting(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		_, _ = client.Write([]byte("http/1.1 GET\n"))
	}()

	_, err := readHandshake(server, 0)
	require.Error(t, err)
}

func TestHandshakeRejectsOversizedLine(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		junk := make([]byte, 256)
		for i := range junk {
			junk[i] = 'x'
		}
		_, _ = client.Write(junk)
	}()

	_, err := readHandshake(server, 0)
	require.Error(t, err)
}
