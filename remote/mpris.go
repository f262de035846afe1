package remote

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"github.com/nocturnehq/nocturne/errors"
	"github.com/nocturnehq/nocturne/models"
)

const (
	mprisBusName    = "org.mpris.MediaPlayer2.nocturne"
	mprisObjectPath = dbus.ObjectPath("/org/mpris/MediaPlayer2")

	mprisInterfaceRoot   = "org.mpris.MediaPlayer2"
	mprisInterfacePlayer = "org.mpris.MediaPlayer2.Player"
)

// exportMPRIS publishes the standard media-player facet so generic desktop
// controls work without knowing the native interface. Losing the MPRIS name
// to another claimant is not fatal; the native facet keeps working.
func (r *Remote) exportMPRIS(conn *dbus.Conn) error {
	reply, err := conn.RequestName(mprisBusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "NAME_REQUEST_FAILED", "could not request the media-player bus name")
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		r.logger.WithField("name", mprisBusName).Warn("Media-player bus name taken, desktop controls unavailable")
		return nil
	}

	if err := conn.ExportMethodTable(r.mprisRootTable(), mprisObjectPath, mprisInterfaceRoot); err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "EXPORT_FAILED", "could not export the media-player root facet")
	}
	if err := conn.ExportMethodTable(r.mprisPlayerTable(), mprisObjectPath, mprisInterfacePlayer); err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "EXPORT_FAILED", "could not export the media-player player facet")
	}

	props, err := prop.Export(conn, mprisObjectPath, r.mprisPropertySpec())
	if err != nil {
		return errors.Wrap(err, errors.CategoryRemote, "EXPORT_FAILED", "could not export the media-player properties")
	}
	r.mprisProps = props
	return nil
}

func (r *Remote) mprisRootTable() map[string]interface{} {
	return map[string]interface{}{
		"Raise": func() *dbus.Error {
			if r.raise != nil {
				r.raise()
			}
			return nil
		},
		"Quit": func() *dbus.Error {
			if r.quit != nil {
				r.quit()
			}
			return nil
		},
	}
}

func (r *Remote) mprisPlayerTable() map[string]interface{} {
	return map[string]interface{}{
		"Next":      func() *dbus.Error { r.session.Next(); return nil },
		"Previous":  func() *dbus.Error { r.session.Previous(); return nil },
		"Play":      func() *dbus.Error { r.session.Play(); return nil },
		"Pause":     func() *dbus.Error { r.session.Pause(); return nil },
		"PlayPause": func() *dbus.Error { r.session.PlayPause(); return nil },
		"Stop":      func() *dbus.Error { r.session.Stop(); return nil },
		"Seek": func(offset int64) *dbus.Error {
			// MPRIS seeks by a microsecond offset relative to the
			// current position.
			r.session.SetPosition(r.session.Position() + float64(offset)/1e6)
			return nil
		},
	}
}

func (r *Remote) mprisPropertySpec() prop.Map {
	return prop.Map{
		mprisInterfaceRoot: {
			"CanQuit":             {Value: true, Emit: prop.EmitTrue},
			"CanRaise":            {Value: r.raise != nil, Emit: prop.EmitTrue},
			"HasTrackList":        {Value: false, Emit: prop.EmitTrue},
			"Identity":            {Value: "Nocturne", Emit: prop.EmitTrue},
			"SupportedUriSchemes": {Value: []string{"file"}, Emit: prop.EmitTrue},
			"SupportedMimeTypes":  {Value: []string{"audio/*"}, Emit: prop.EmitTrue},
		},
		mprisInterfacePlayer: {
			"PlaybackStatus": {Value: r.session.State().String(), Emit: prop.EmitTrue},
			"Metadata":       {Value: mprisMetadata(r.manager.Current()), Emit: prop.EmitTrue},
			"Volume": {
				Value:    r.session.Volume() / 100,
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: func(c *prop.Change) *dbus.Error {
					volume, ok := c.Value.(float64)
					if !ok {
						return &dbus.ErrMsgInvalidArg
					}
					r.session.SetVolume(volume * 100)
					return nil
				},
			},
			"Position":      {Value: int64(r.session.Position() * 1e6), Emit: prop.EmitFalse},
			"CanGoNext":     {Value: true, Emit: prop.EmitTrue},
			"CanGoPrevious": {Value: true, Emit: prop.EmitTrue},
			"CanPlay":       {Value: true, Emit: prop.EmitTrue},
			"CanPause":      {Value: true, Emit: prop.EmitTrue},
			"CanSeek":       {Value: true, Emit: prop.EmitTrue},
			"CanControl":    {Value: true, Emit: prop.EmitTrue},
		},
	}
}

// mprisMetadata maps a song to the conventional metadata dictionary. An
// empty map (not nil) signals "nothing playing" to well-behaved clients.
func mprisMetadata(song *models.Song) map[string]dbus.Variant {
	meta := map[string]dbus.Variant{}
	if song == nil {
		return meta
	}

	meta["mpris:trackid"] = dbus.MakeVariant(dbus.ObjectPath(
		fmt.Sprintf("/net/nocturne/Nocturne/track/%d", song.Hash)))
	meta["xesam:url"] = dbus.MakeVariant(song.URI)
	if song.Title != "" {
		meta["xesam:title"] = dbus.MakeVariant(song.Title)
	}
	if song.Artist != "" {
		meta["xesam:artist"] = dbus.MakeVariant([]string{song.Artist})
	}
	if song.AlbumArtist != "" {
		meta["xesam:albumArtist"] = dbus.MakeVariant([]string{song.AlbumArtist})
	}
	if song.Album != "" {
		meta["xesam:album"] = dbus.MakeVariant(song.Album)
	}
	if song.TrackNumber > 0 {
		meta["xesam:trackNumber"] = dbus.MakeVariant(int32(song.TrackNumber))
	}
	if song.Duration > 0 {
		meta["mpris:length"] = dbus.MakeVariant(int64(song.Duration) * 1e6)
	}
	return meta
}

func (r *Remote) updateMPRISMetadata(song *models.Song) {
	if r.mprisProps == nil {
		return
	}
	r.mprisProps.SetMust(mprisInterfacePlayer, "Metadata", mprisMetadata(song))
}

func (r *Remote) updateMPRISState(state models.PlaybackState) {
	if r.mprisProps == nil {
		return
	}
	r.mprisProps.SetMust(mprisInterfacePlayer, "PlaybackStatus", state.String())
}
