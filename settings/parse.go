package settings

import (
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// reader pulls typed values out of a key file, falling back to the default
// and flagging a coercion whenever a value is missing its range or type.
type reader struct {
	logger  *logrus.Logger
	coerced *bool
}

func (r *reader) reject(section *ini.Section, key, value string) {
	r.logger.WithFields(logrus.Fields{
		"group": section.Name(),
		"key":   key,
		"value": value,
	}).Warn("Settings value rejected; keeping the default")
	*r.coerced = true
}

func (r *reader) str(section *ini.Section, key, def string) string {
	if !section.HasKey(key) {
		return def
	}
	return section.Key(key).String()
}

func (r *reader) boolean(section *ini.Section, key string, def bool) bool {
	if !section.HasKey(key) {
		return def
	}
	v, err := section.Key(key).Bool()
	if err != nil {
		r.reject(section, key, section.Key(key).String())
		return def
	}
	return v
}

func (r *reader) int(section *ini.Section, key string, def, min, max int) int {
	if !section.HasKey(key) {
		return def
	}
	v, err := section.Key(key).Int()
	if err != nil || v < min || v > max {
		r.reject(section, key, section.Key(key).String())
		return def
	}
	return v
}

func (r *reader) int64(section *ini.Section, key string, def, min, max int64) int64 {
	if !section.HasKey(key) {
		return def
	}
	v, err := section.Key(key).Int64()
	if err != nil || v < min || v > max {
		r.reject(section, key, section.Key(key).String())
		return def
	}
	return v
}

func (r *reader) float(section *ini.Section, key string, def, min, max float64) float64 {
	if !section.HasKey(key) {
		return def
	}
	v, err := section.Key(key).Float64()
	if err != nil || v < min || v > max {
		r.reject(section, key, section.Key(key).String())
		return def
	}
	return v
}

func setBool(section *ini.Section, key string, value bool) {
	section.Key(key).SetValue(strconv.FormatBool(value))
}

func setFloat(section *ini.Section, key string, value float64) {
	section.Key(key).SetValue(strconv.FormatFloat(value, 'g', -1, 64))
}

func formatInt(value int) string {
	return strconv.Itoa(value)
}

func formatInt64(value int64) string {
	return strconv.FormatInt(value, 10)
}
