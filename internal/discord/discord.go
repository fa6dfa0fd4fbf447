// Package discord mirrors the current playback session to Discord Rich
// Presence. Everything here is best-effort: no Discord client, no presence,
// no error surfaced to the user.
package discord

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tr1xem/go-discordrpc/client"

	"github.com/gotaku-app/gotaku/internal/util"
)

// ClientID is the Discord application this app registers its activity under.
const ClientID = "1327594821053651086"

var (
	clientMu sync.Mutex
	rpc      *client.Client
	loggedIn bool
)

// Login connects to the local Discord client. Calling it while connected is
// a no-op.
func Login() error {
	clientMu.Lock()
	defer clientMu.Unlock()

	if rpc != nil && loggedIn {
		return nil
	}
	rpc = client.NewClient(ClientID)
	if err := rpc.Login(); err != nil {
		return errors.Wrap(err, "discord login")
	}
	loggedIn = true
	util.Debug("discord rpc connected")
	return nil
}

// Logout disconnects from the Discord client.
func Logout() error {
	clientMu.Lock()
	defer clientMu.Unlock()

	if rpc == nil || !loggedIn {
		return nil
	}
	if err := rpc.Logout(); err != nil {
		return errors.Wrap(err, "discord logout")
	}
	loggedIn = false
	rpc = nil
	util.Debug("discord rpc disconnected")
	return nil
}

// LoggedIn reports whether a Discord connection is up.
func LoggedIn() bool {
	clientMu.Lock()
	defer clientMu.Unlock()
	return loggedIn
}

func postActivity(a client.Activity) error {
	clientMu.Lock()
	defer clientMu.Unlock()
	if rpc == nil || !loggedIn {
		return errors.New("discord client is not connected")
	}
	return rpc.SetActivity(a)
}
