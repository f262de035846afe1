package remote

import (
	"github.com/godbus/dbus/v5"

	"github.com/nocturnehq/nocturne/config"
	"github.com/nocturnehq/nocturne/errors"
)

// Client is a short-lived connection to a running instance, used by a
// second invocation to hand over its command line instead of starting a
// second player.
type Client struct {
	conn   *dbus.Conn
	object dbus.BusObject
}

// Connect dials the session bus and checks that an instance actually owns
// the name. Returns ErrRemoteUnavailable when nothing is running.
func Connect() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryRemote, "BUS_UNAVAILABLE", "could not connect to the session bus")
	}

	var owner string
	err = conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, BusName).Store(&owner)
	if err != nil || owner == "" {
		conn.Close()
		return nil, errors.ErrRemoteUnavailable
	}

	return &Client{conn: conn, object: conn.Object(BusName, ObjectPath)}, nil
}

func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) call(method string, args ...interface{}) error {
	call := c.object.Call(method, 0, args...)
	if call.Err != nil {
		return errors.Wrap(call.Err, errors.CategoryRemote, "CALL_FAILED", "remote call failed").
			WithContext("method", method)
	}
	return nil
}

// SendAction forwards a one-shot playback command.
func (c *Client) SendAction(action config.Action) error {
	var method string
	switch action {
	case config.ActionPlayPause:
		method = "PlayPause"
	case config.ActionPlay:
		method = "Play"
	case config.ActionPause:
		method = "Pause"
	case config.ActionStop:
		method = "Stop"
	case config.ActionPrevious:
		method = "Backward"
	case config.ActionNext:
		method = "Forward"
	default:
		return nil
	}
	return c.call(InterfacePlayer + "." + method)
}

// AddSong asks the running instance to import a path or URI. Returns the
// number of songs the instance added.
func (c *Client) AddSong(uri string) (int, error) {
	call := c.object.Call(InterfaceApplication+".AddSong", 0, uri)
	if call.Err != nil {
		return 0, errors.Wrap(call.Err, errors.CategoryRemote, "CALL_FAILED", "remote call failed").
			WithContext("method", "AddSong")
	}
	var added int32
	if err := call.Store(&added); err != nil {
		return 0, errors.Wrap(err, errors.CategoryRemote, "CALL_FAILED", "unexpected reply to AddSong")
	}
	return int(added), nil
}

// Raise asks the running instance to present itself.
func (c *Client) Raise() error {
	return c.call(InterfaceApplication + ".Raise")
}
