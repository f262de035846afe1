// Package remote exposes the player on the session bus: a native facet for
// the project's own remotes and a standard media-player facet for desktop
// interoperability.
package remote

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/errors"
	"github.com/nocturnehq/nocturne/library"
	"github.com/nocturnehq/nocturne/models"
	"github.com/nocturnehq/nocturne/playback"
	"github.com/nocturnehq/nocturne/songmanager"
)

const (
	BusName    = "net.nocturne.Nocturne"
	ObjectPath = dbus.ObjectPath("/net/nocturne/Nocturne")

	InterfaceApplication = "net.nocturne.Application"
	InterfacePlayer      = "net.nocturne.Player"
)

// Remote is the bus-side presence of a running instance.
type Remote struct {
	logger  *logrus.Logger
	library *library.Library
	manager *songmanager.Manager
	session *playback.Session

	// quit asks the main loop to shut down; raise asks a front-end to
	// present itself.
	quit  func()
	raise func()

	conn       *dbus.Conn
	props      *prop.Properties
	mprisProps *prop.Properties
}

func New(lib *library.Library, manager *songmanager.Manager, session *playback.Session,
	quit, raise func(), logger *logrus.Logger) *Remote {
	return &Remote{
		logger:  logger,
		library: lib,
		manager: manager,
		session: session,
		quit:    quit,
		raise:   raise,
	}
}

// Start claims the bus name and exports both facets. A second instance
// fails to claim the name and should hand its work to the first one.
func (r *Remote) Start() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "BUS_UNAVAILABLE", "could not connect to the session bus")
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "NAME_REQUEST_FAILED", "could not request the bus name")
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New(errors.CategoryRemote, "ALREADY_RUNNING", "another instance owns the bus name")
	}

	r.conn = conn

	// Dispatch goes through a static method table instead of reflection
	// over a receiver.
	if err := conn.ExportMethodTable(r.applicationTable(), ObjectPath, InterfaceApplication); err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "EXPORT_FAILED", "could not export the application facet")
	}
	if err := conn.ExportMethodTable(r.playerTable(), ObjectPath, InterfacePlayer); err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "EXPORT_FAILED", "could not export the player facet")
	}

	props, err := prop.Export(conn, ObjectPath, r.propertySpec())
	if err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "EXPORT_FAILED", "could not export the properties")
	}
	r.props = props

	if err := r.exportMPRIS(conn); err != nil {
		return err
	}

	r.logger.WithField("name", BusName).Info("Session bus surface ready")
	return nil
}

// Stop releases the bus name.
func (r *Remote) Stop() {
	if r.conn == nil {
		return
	}
	if _, err := r.conn.ReleaseName(BusName); err != nil {
		r.logger.WithError(err).Warn("Could not release the bus name")
	}
	if r.mprisProps != nil {
		if _, err := r.conn.ReleaseName(mprisBusName); err != nil {
			r.logger.WithError(err).Warn("Could not release the media-player bus name")
		}
	}
	r.conn.Close()
	r.conn = nil
}

func (r *Remote) applicationTable() map[string]interface{} {
	return map[string]interface{}{
		"Quit": func() *dbus.Error {
			r.logger.Info("Quit requested over the bus")
			if r.quit != nil {
				r.quit()
			}
			return nil
		},
		"Raise": func() *dbus.Error {
			if r.raise != nil {
				r.raise()
			}
			return nil
		},
		"RefreshMetadata": func() (int32, *dbus.Error) {
			updated := r.library.RefreshMetadata(context.Background(), false)
			r.manager.SongsUpdated()
			return int32(updated), nil
		},
		"AddSong": func(uri string) (int32, *dbus.Error) {
			added := r.library.AddPath(uri, models.CheckDefault, nil)
			if added > 0 {
				r.library.RefreshMetadata(context.Background(), false)
				r.manager.SongsUpdated()
			}
			return int32(added), nil
		},
	}
}

func (r *Remote) playerTable() map[string]interface{} {
	return map[string]interface{}{
		"Play":      func() *dbus.Error { r.session.Play(); return nil },
		"Pause":     func() *dbus.Error { r.session.Pause(); return nil },
		"PlayPause": func() *dbus.Error { r.session.PlayPause(); return nil },
		"Stop":      func() *dbus.Error { r.session.Stop(); return nil },
		"Backward":  func() *dbus.Error { r.session.Previous(); return nil },
		"Forward":   func() *dbus.Error { r.session.Next(); return nil },
		"Seek": func(percentage float64) *dbus.Error {
			r.session.Seek(percentage)
			return nil
		},
		"SetPlaying": func(id uint32) *dbus.Error {
			song := r.library.ByHash(id)
			if song == nil {
				return dbus.MakeFailedError(errors.ErrSongNotFound)
			}
			r.session.PlaySong(song)
			return nil
		},
		"SetQueue": func(id uint32, queued bool) *dbus.Error {
			song := r.library.ByHash(id)
			if song == nil {
				return dbus.MakeFailedError(errors.ErrSongNotFound)
			}
			r.manager.SetQueued(song, queued)
			return nil
		},
		"StopAfterSong": func(id uint32) *dbus.Error {
			song := r.library.ByHash(id)
			if song == nil {
				return dbus.MakeFailedError(errors.ErrSongNotFound)
			}
			song.StopAfter = !song.StopAfter
			r.manager.RefreshNext()
			return nil
		},
	}
}

func songID(song *models.Song) uint32 {
	if song == nil {
		return 0
	}
	return song.Hash
}

func (r *Remote) propertySpec() prop.Map {
	return prop.Map{
		InterfacePlayer: {
			"SongPrevious": {
				Value:    songID(r.manager.Previous()),
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"SongPlaying": {
				Value:    songID(r.manager.Current()),
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"SongNext": {
				Value:    songID(r.manager.GetNextSong()),
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			"Incognito": {
				Value:    r.manager.Incognito(),
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: func(c *prop.Change) *dbus.Error {
					enabled, ok := c.Value.(bool)
					if !ok {
						return &dbus.ErrMsgInvalidArg
					}
					r.manager.SetIncognito(enabled)
					return nil
				},
			},
			"Volume": {
				Value:    r.session.Volume(),
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: func(c *prop.Change) *dbus.Error {
					volume, ok := c.Value.(float64)
					if !ok {
						return &dbus.ErrMsgInvalidArg
					}
					r.session.SetVolume(volume)
					return nil
				},
			},
			"Position": {
				Value:    r.session.Position(),
				Writable: true,
				Emit:     prop.EmitFalse,
				Callback: func(c *prop.Change) *dbus.Error {
					seconds, ok := c.Value.(float64)
					if !ok {
						return &dbus.ErrMsgInvalidArg
					}
					r.session.SetPosition(seconds)
					return nil
				},
			},
		},
	}
}

// HandleEvent keeps the bus properties in step with the core. Installed as
// (part of) the notify hook.
func (r *Remote) HandleEvent(event models.Event) {
	if r.props == nil {
		return
	}

	switch event.Type {
	case models.EventSongsChanged:
		r.props.SetMust(InterfacePlayer, "SongPrevious", songID(event.Previous))
		r.props.SetMust(InterfacePlayer, "SongPlaying", songID(event.Current))
		r.props.SetMust(InterfacePlayer, "SongNext", songID(event.Next))
		r.updateMPRISMetadata(event.Current)
	case models.EventStateChanged:
		r.updateMPRISState(event.State)
	}
}
