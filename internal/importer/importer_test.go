// SPDX-License-Identifier: AGPL-3.0-only
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	added     [][]string
	addErr    error
	walls     []vkapi.Wall
	groupsErr error
}

func (f *fakeBackend) AddGroups(ctx context.Context, store vkapi.TokenStore, handles []string) error {
	f.added = append(f.added, handles)
	return f.addErr
}

func (f *fakeBackend) GetGroups(ctx context.Context, store vkapi.TokenStore) ([]vkapi.Wall, error) {
	return f.walls, f.groupsErr
}

func TestParseLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"blank lines", "\n  \n123\n456", []string{"123", "456"}},
		{"crlf", "club1\r\nclub2\r\n\r\n", []string{"club1", "club2"}},
		{"links", "https://vk.com/furmarket\nvk.com/arttrade/\nHTTPS://VK.COM/Caps", []string{"furmarket", "arttrade", "Caps"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLines(tt.in))
		})
	}
}

func TestImport_SubmitsOnlyNonEmptyLines(t *testing.T) {
	be := &fakeBackend{walls: []vkapi.Wall{{ID: 123}, {ID: 456}}}
	store := session.NewMemory()
	store.SetToken("tok")

	lines := ParseLines(strings.Join([]string{"", "  ", "123", "456"}, "\n"))
	res, err := New(be, logging.Discard()).Import(context.Background(), store, lines)

	require.NoError(t, err)
	require.Len(t, be.added, 1)
	assert.Equal(t, []string{"123", "456"}, be.added[0])
	assert.Equal(t, be.walls, res.Walls)
}

func TestImport_ReconcilesSelection(t *testing.T) {
	be := &fakeBackend{walls: []vkapi.Wall{{ID: 1}, {ID: 2}}}
	store := session.NewMemory()
	store.SetSelected([]int64{2, 5})

	_, err := New(be, logging.Discard()).Import(context.Background(), store, []string{"x"})

	require.NoError(t, err)
	assert.Equal(t, []int64{2}, store.Selected())
}

func TestImport_FailureLeavesStateAlone(t *testing.T) {
	store := session.NewMemory()
	store.SetSelected([]int64{2, 5})

	be := &fakeBackend{addErr: &vkapi.APIError{Status: 500, Detail: "boom"}}
	_, err := New(be, logging.Discard()).Import(context.Background(), store, []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []int64{2, 5}, store.Selected())

	be = &fakeBackend{groupsErr: errors.New("timeout")}
	_, err = New(be, logging.Discard()).Import(context.Background(), store, []string{"x"})
	require.Error(t, err)
	assert.Equal(t, []int64{2, 5}, store.Selected())
}

func TestImport_EmptyMakesNoCall(t *testing.T) {
	be := &fakeBackend{}
	_, err := New(be, logging.Discard()).Import(context.Background(), session.NewMemory(), nil)

	assert.ErrorIs(t, err, ErrEmpty)
	assert.Empty(t, be.added)
}

func TestNewPreview(t *testing.T) {
	var lines []string
	for i := 0; i < 13; i++ {
		lines = append(lines, fmt.Sprint(i))
	}

	p := NewPreview(lines)
	assert.Len(t, p.Shown, PreviewSize)
	assert.Equal(t, 3, p.Remaining)

	p = NewPreview(lines[:4])
	assert.Len(t, p.Shown, 4)
	assert.Zero(t, p.Remaining)
}

func TestRead_TooLarge(t *testing.T) {
	_, err := Read(strings.NewReader(strings.Repeat("a", MaxFileSize+1)))
	assert.ErrorIs(t, err, ErrTooLarge)

	lines, err := Read(strings.NewReader("a\r\nb"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}
