package qbportal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordUrl(t *testing.T) {
	session := &Session{opts: SessionOptions{
		Realm:           "example.quickbase.com",
		AppId:           "bq1234567",
		MaterialTableId: "bq7654321",
	}}

	require.Equal(t,
		"https://example.quickbase.com/nav/app/bq1234567/table/bq7654321/action/dr?rid=4518",
		session.RecordUrl(4518),
	)
}

func TestDefaultDelays(t *testing.T) {
	delays := DefaultDelays()
	require.Equal(t, 5, delays.DownloadRetries)
	require.Equal(t, time.Second*10, delays.LoginSettle)
	require.Equal(t, time.Second*3, delays.DownloadPoll)
}

func TestCloseIdempotent(t *testing.T) {
	session := &Session{}
	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
}

func TestDownloadRetriesExhausted(t *testing.T) {
	session := &Session{opts: SessionOptions{Delays: Delays{DownloadRetries: 5}}}
	destPath := filepath.Join(t.TempDir(), "image_1.png")

	attempts := 0
	done := session.downloadWithRetries(context.Background(), "https://cdn.example.com/a.png", destPath,
		func() ([]byte, error) {
			attempts++
			return nil, errors.New("still processing")
		})

	require.False(t, done)
	require.Equal(t, 5, attempts)
	require.NoFileExists(t, destPath)
}

func TestDownloadSucceedsMidway(t *testing.T) {
	session := &Session{opts: SessionOptions{Delays: Delays{DownloadRetries: 5}}}
	destPath := filepath.Join(t.TempDir(), "image_1.png")

	attempts := 0
	done := session.downloadWithRetries(context.Background(), "https://cdn.example.com/a.png", destPath,
		func() ([]byte, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("still processing")
			}
			return []byte("png-bytes"), nil
		})

	require.True(t, done)
	require.Equal(t, 3, attempts)
	require.FileExists(t, destPath)
}
