// Package settings keeps the reply message and trigger between runs.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Archie3d/mesh-responder/pkg/meshtastic"
	"github.com/Archie3d/mesh-responder/pkg/responder"
	"github.com/charmbracelet/log"
)

const (
	MaxReplyLength = 120

	// The date stamp and a space go in front of the reply.
	MaxReplyBytes = meshtastic.MaxPayloadSize - len(responder.DateLayout) - 1

	DefaultFileName = "settings.txt"

	keyReplyMessage = "reply_message"
	keyTrigger      = "signal"
)

type Settings struct {
	ReplyMessage string
	Trigger      string
}

// Complete reports whether both values are set.
func (s Settings) Complete() bool {
	return s.ReplyMessage != "" && s.Trigger != ""
}

type ReplyTooLongError struct {
	Length int
}

func (e *ReplyTooLongError) Error() string {
	return fmt.Sprintf("reply message is %d characters long, at most %d allowed", e.Length, MaxReplyLength)
}

// ReplyTooLargeError is returned for a reply short enough in characters
// that does not fit in a mesh packet once date stamped.
type ReplyTooLargeError struct {
	Bytes int
}

func (e *ReplyTooLargeError) Error() string {
	return fmt.Sprintf("reply message takes %d bytes, at most %d fit in a packet", e.Bytes, MaxReplyBytes)
}

// Validate checks the reply length in characters and in encoded bytes.
func Validate(s Settings) error {
	if n := utf8.RuneCountInString(s.ReplyMessage); n > MaxReplyLength {
		return &ReplyTooLongError{Length: n}
	}
	if n := len(s.ReplyMessage); n > MaxReplyBytes {
		return &ReplyTooLargeError{Bytes: n}
	}
	return nil
}

// FileStore keeps settings in a key=value file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFileName
	}
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns empty settings if the file is missing or cannot be parsed.
func (s *FileStore) Load() Settings {
	content, err := os.ReadFile(s.path)
	if err != nil {
		log.With("path", s.path, "err", err).Debug("No saved settings")
		return Settings{}
	}

	values, err := decode(string(content))
	if err != nil {
		log.With("path", s.path, "err", err).Debug("Ignoring unreadable settings")
		return Settings{}
	}

	return Settings{
		ReplyMessage: values[keyReplyMessage],
		Trigger:      values[keyTrigger],
	}
}

// Save replaces the settings file atomically.
func (s *FileStore) Save(settings Settings) error {
	content := encode(settings)

	dir := filepath.Dir(s.path)

	f, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return fmt.Errorf("save settings: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	if err := os.Rename(f.Name(), s.path); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	log.With("path", s.path).Debug("Settings saved")

	return nil
}

// encode writes Go quoted values so any text reads back unchanged.
func encode(settings Settings) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s=%s\n", keyReplyMessage, strconv.Quote(settings.ReplyMessage))
	fmt.Fprintf(&sb, "%s=%s\n", keyTrigger, strconv.Quote(settings.Trigger))

	return sb.String()
}

// decode reads quoted values as written by encode and unquoted
// values literally, everything after the first '=' up to the end of line.
func decode(content string) (map[string]string, error) {
	values := map[string]string{}

	for n, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: missing '='", n+1)
		}

		if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			if unquoted, err := strconv.Unquote(value); err == nil {
				value = unquoted
			}
		}

		values[strings.TrimSpace(key)] = value
	}

	return values, nil
}

// Editor lets the operator review the settings before the responder starts.
// Cancelling returns empty settings.
type Editor interface {
	Edit(initial Settings) (Settings, error)
}

// StaticEditor accepts the initial settings as they are.
type StaticEditor struct{}

func (StaticEditor) Edit(initial Settings) (Settings, error) {
	result := Settings{
		ReplyMessage: strings.TrimSpace(initial.ReplyMessage),
		Trigger:      initial.Trigger,
	}

	if err := Validate(result); err != nil {
		return Settings{}, err
	}

	return result, nil
}
