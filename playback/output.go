package playback

import (
	"github.com/sirupsen/logrus"

	"github.com/nocturnehq/nocturne/models"
)

// LogOutput is the built-in output: it accepts every command and only logs
// it. Decoding and rendering live behind the Output interface so a real
// backend can be swapped in without touching the session.
type LogOutput struct {
	logger *logrus.Logger
}

func NewLogOutput(logger *logrus.Logger) *LogOutput {
	return &LogOutput{logger: logger}
}

func (o *LogOutput) Start(song *models.Song) error {
	o.logger.WithField("uri", song.URI).Debug("Output start")
	return nil
}

func (o *LogOutput) SetPaused(paused bool) {
	o.logger.WithField("paused", paused).Debug("Output pause state")
}

func (o *LogOutput) Seek(seconds float64) {
	o.logger.WithField("seconds", seconds).Debug("Output seek")
}

func (o *LogOutput) Stop() {
	o.logger.Debug("Output stop")
}
