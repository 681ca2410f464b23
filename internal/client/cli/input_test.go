package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("hello world\n"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	require.NoError(t, err)
	require.Equal(t, "hello world", got)
	require.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("lastline"))
	var out bytes.Buffer
	got, err := GetSimpleText(in, "Name?", &out)
	require.NoError(t, err)
	require.Equal(t, "lastline", got)

	_, err = GetSimpleText(bufio.NewReader(strings.NewReader("")), "Name?", &out)
	require.Error(t, err)
}

func stubTerminal(t *testing.T, terminal bool, read func(int) ([]byte, error)) {
	t.Helper()
	oldRead, oldTerm := readPassword, isTerminal
	t.Cleanup(func() { readPassword, isTerminal = oldRead, oldTerm })
	readPassword = read
	isTerminal = func(int) bool { return terminal }
}

func TestGetSecret(t *testing.T) {
	stubTerminal(t, true, func(int) ([]byte, error) { return []byte(" eyJ.token \n"), nil })
	var out bytes.Buffer
	got, err := GetSecret("Access token", &out)
	require.NoError(t, err)
	require.Equal(t, "eyJ.token", got)
	require.Equal(t, "Access token: \n", out.String())
}

func TestGetSecret_Errors(t *testing.T) {
	stubTerminal(t, false, nil)
	_, err := GetSecret("Access token", &bytes.Buffer{})
	require.ErrorIs(t, err, ErrNoTerminal)

	stubTerminal(t, true, func(int) ([]byte, error) { return nil, errors.New("boom") })
	_, err = GetSecret("Access token", &bytes.Buffer{})
	require.Error(t, err)
}
