package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/Archie3d/mesh-responder/pkg/client"
	"github.com/Archie3d/mesh-responder/pkg/client/clienttest"
	"github.com/Archie3d/mesh-responder/pkg/meshtastic"
	"github.com/Archie3d/mesh-responder/pkg/settings"
	"github.com/Archie3d/mesh-responder/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cancelEditor struct {
	initial settings.Settings
}

func (e *cancelEditor) Edit(initial settings.Settings) (settings.Settings, error) {
	e.initial = initial
	return settings.Settings{}, nil
}

func execute(t *testing.T, ctx context.Context, opts *rootOptions, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(out)

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestNoInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")

	out, err := execute(t, context.Background(), &rootOptions{}, "--no-edit", "--settings", path)
	require.NoError(t, err)

	assert.Contains(t, out, noInputMessage)
	assert.NoFileExists(t, path)
}

func TestNoInputWithoutSignal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")

	out, err := execute(t, context.Background(), &rootOptions{}, "--no-edit", "--settings", path, "--reply", "Back online")
	require.NoError(t, err)
	assert.Contains(t, out, noInputMessage)
}

func TestEditorCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")
	require.NoError(t, settings.NewFileStore(path).Save(settings.Settings{ReplyMessage: "Back online", Trigger: "PING"}))

	editor := &cancelEditor{}
	out, err := execute(t, context.Background(), &rootOptions{editor: editor}, "--settings", path, "--signal", "HELLO")
	require.NoError(t, err)

	assert.Contains(t, out, noInputMessage)
	assert.Equal(t, settings.Settings{ReplyMessage: "Back online", Trigger: "HELLO"}, editor.initial)
}

func TestReplyTooLong(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")
	long := string(bytes.Repeat([]byte("x"), settings.MaxReplyLength+1))

	_, err := execute(t, context.Background(), &rootOptions{}, "--no-edit", "--settings", path, "--reply", long, "--signal", "PING")
	assert.Error(t, err)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, context.Background(), &rootOptions{}, "--log-level", "loud")
	assert.Error(t, err)
}

func TestConnectFailure(t *testing.T) {
	dongle := clienttest.NewDongle()
	dongle.SetSilent(true)

	path := filepath.Join(t.TempDir(), "settings.txt")

	_, err := execute(t, context.Background(), &rootOptions{opener: dongle.Opener()},
		"--no-edit", "--settings", path, "--reply", "Back online", "--signal", "PING", "--port", "test")
	assert.ErrorContains(t, err, "failed to connect to the radio")
}

func TestMissingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.txt")

	_, err := execute(t, context.Background(), &rootOptions{opener: clienttest.NewDongle().Opener()},
		"--no-edit", "--settings", path, "--reply", "Back online", "--signal", "PING", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load configuration")
}

func TestRespondsToTrigger(t *testing.T) {
	dongle := clienttest.NewDongle()
	path := filepath.Join(t.TempDir(), "settings.txt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, &rootOptions{opener: dongle.Opener()},
			"--no-edit", "--settings", path, "--reply", "Back online", "--signal", "PING", "--port", "test")
		done <- err
	}()

	// Wait for the radio to be switched to receive
	require.Eventually(t, func() bool {
		for _, r := range dongle.Requests() {
			if r.Type == client.MSG_SET_RX {
				return true
			}
		}
		return false
	}, 3*time.Second, 10*time.Millisecond)

	channel := meshtastic.NewChannel(0, "LongFast", types.CryptoKey{0x01})

	for id, text := range map[uint32]string{1: "pong", 2: "please PING now"} {
		data, err := channel.EncodePacket(&meshtastic.MeshPacket{
			To:       types.BroadcastNodeId,
			From:     0x433c74c0,
			Id:       id,
			HopLimit: 3,
			Decoded:  &meshtastic.Data{Portnum: meshtastic.PortNum_TEXT_MESSAGE_APP, Payload: []byte(text)},
		})
		require.NoError(t, err)
		dongle.Receive(data)
	}

	var transmitted []byte
	select {
	case transmitted = <-dongle.Transmitted:
	case <-time.After(3 * time.Second):
		require.FailNow(t, "no reply transmitted")
	}

	reply, err := channel.DecodePacket(&client.PacketReceived{Data: transmitted})
	require.NoError(t, err)
	require.NotNil(t, reply.Decoded)
	assert.Equal(t, types.BroadcastNodeId, reply.To)
	assert.Regexp(t, regexp.MustCompile(`^\d{2}-\d{2}-\d{4} Back online$`), string(reply.Decoded.Payload))

	// "pong" does not get a reply
	select {
	case <-dongle.Transmitted:
		assert.Fail(t, "unexpected second reply")
	case <-time.After(300 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "responder did not stop")
	}

	assert.Equal(t, settings.Settings{ReplyMessage: "Back online", Trigger: "PING"}, settings.NewFileStore(path).Load())
}

func TestEnvFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.txt")
	envFile := filepath.Join(dir, "responder.env")

	content := "MESH_RESPONDER_REPLY=\"Back online\"\nMESH_RESPONDER_SIGNAL=PING\nMESH_RESPONDER_SETTINGS=" + path + "\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	editor := &cancelEditor{}
	_, err := execute(t, context.Background(), &rootOptions{editor: editor}, "--env-file", envFile)
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{ReplyMessage: "Back online", Trigger: "PING"}, editor.initial)

	// The environment wins over the file, the command line over both
	t.Setenv("MESH_RESPONDER_REPLY", "From env")
	editor = &cancelEditor{}
	_, err = execute(t, context.Background(), &rootOptions{editor: editor}, "--env-file", envFile, "--signal", "HELLO")
	require.NoError(t, err)
	assert.Equal(t, settings.Settings{ReplyMessage: "From env", Trigger: "HELLO"}, editor.initial)
}

func TestMissingEnvFile(t *testing.T) {
	_, err := execute(t, context.Background(), &rootOptions{editor: &cancelEditor{}},
		"--env-file", filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "env file")
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "MESH_RESPONDER_LOG_LEVEL", envName("log-level"))
	assert.Equal(t, "MESH_RESPONDER_NO_EDIT", envName("no-edit"))
}
