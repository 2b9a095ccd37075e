// SPDX-License-Identifier: AGPL-3.0-only
package collections

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fluffyriot/vkresender/internal/logging"
	"github.com/fluffyriot/vkresender/internal/selection"
	"github.com/fluffyriot/vkresender/internal/vkapi"
)

var (
	ErrEmptyName    = errors.New("collection name is empty")
	ErrNoActive     = errors.New("no collection is open")
	ErrNoCandidates = errors.New("no walls chosen to add")
	ErrNotFound     = errors.New("collection not found")
)

type Backend interface {
	CreateCollection(ctx context.Context, store vkapi.TokenStore, name string) error
	GetCollections(ctx context.Context, store vkapi.TokenStore) ([]vkapi.Collection, error)
	AddGroupsToCollection(ctx context.Context, store vkapi.TokenStore, collectionID int64, wallIDs []int64) error
	DeleteCollection(ctx context.Context, store vkapi.TokenStore, collectionID int64) error
}

// Store is the part of the operator session collections work with. The
// active collection is the one opened for editing.
type Store interface {
	vkapi.TokenStore
	selection.Store
	ActiveCollection() int64
	SetActiveCollection(id int64)
}

func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

func Find(list []vkapi.Collection, id int64) (vkapi.Collection, bool) {
	for _, c := range list {
		if c.ID == id {
			return c, true
		}
	}
	return vkapi.Collection{}, false
}

// Available lists the walls that can still be added to active: every known
// wall that is not a member yet, narrowed by query. Nothing is available
// without an active collection.
func Available(all []vkapi.Wall, active *vkapi.Collection, query string) []vkapi.Wall {
	if active == nil {
		return nil
	}

	var out []vkapi.Wall
	for _, w := range all {
		if !active.Has(w.ID) {
			out = append(out, w)
		}
	}
	return selection.Filter(out, query)
}

type Manager struct {
	backend Backend
	log     logging.Logger
}

func New(backend Backend, log logging.Logger) *Manager {
	return &Manager{backend: backend, log: log.With("component", "collections")}
}

func (m *Manager) List(ctx context.Context, store Store) ([]vkapi.Collection, error) {
	list, err := m.backend.GetCollections(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return list, nil
}

// Active returns the open collection, or nil when none is open or it no
// longer exists.
func (m *Manager) Active(store Store, list []vkapi.Collection) *vkapi.Collection {
	id := store.ActiveCollection()
	if id == 0 {
		return nil
	}
	c, ok := Find(list, id)
	if !ok {
		store.SetActiveCollection(0)
		return nil
	}
	return &c
}

func (m *Manager) Create(ctx context.Context, store Store, name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	if err := m.backend.CreateCollection(ctx, store, name); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	m.log.Info(ctx, "collection created", "name", name)
	return nil
}

func (m *Manager) Delete(ctx context.Context, store Store, id int64) error {
	if err := m.backend.DeleteCollection(ctx, store, id); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if store.ActiveCollection() == id {
		store.SetActiveCollection(0)
	}
	m.log.Info(ctx, "collection deleted", "id", id)
	return nil
}

// Open makes id the active collection, or closes it when it already is.
func (m *Manager) Open(store Store, id int64) {
	if store.ActiveCollection() == id {
		store.SetActiveCollection(0)
		return
	}
	store.SetActiveCollection(id)
}

// AddMembers adds the chosen walls to the active collection. Walls that are
// already members are skipped, so membership never repeats an id.
func (m *Manager) AddMembers(ctx context.Context, store Store, active *vkapi.Collection, wallIDs []int64) (int, error) {
	if active == nil {
		return 0, ErrNoActive
	}

	seen := make(map[int64]bool, len(wallIDs))
	var add []int64
	for _, id := range wallIDs {
		if seen[id] || active.Has(id) {
			continue
		}
		seen[id] = true
		add = append(add, id)
	}
	if len(add) == 0 {
		return 0, ErrNoCandidates
	}

	if err := m.backend.AddGroupsToCollection(ctx, store, active.ID, add); err != nil {
		return 0, fmt.Errorf("add groups to collection: %w", err)
	}
	m.log.Info(ctx, "collection members added", "id", active.ID, "count", len(add))
	return len(add), nil
}

// Use replaces the broadcast selection with the members of c that are still
// known walls, and returns how many were selected.
func (m *Manager) Use(store Store, c vkapi.Collection, walls []vkapi.Wall) int {
	sel := selection.New(nil)
	sel.ReplaceFrom(c, walls)
	sel.Save(store)
	return sel.Len()
}
