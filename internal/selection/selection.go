// SPDX-License-Identifier: AGPL-3.0-only

// Package selection tracks which walls the operator picked for the next
// broadcast. The set is merged from the backend wall list, collections and
// manual toggles, and never holds an id the wall list does not know.
package selection

import (
	"errors"
	"strings"

	"github.com/fluffyriot/vkresender/internal/vkapi"
)

var ErrUnknownWall = errors.New("wall is not in the current list")

// Store persists the selection between requests.
type Store interface {
	Selected() []int64
	SetSelected(ids []int64)
}

type Selection struct {
	order []int64
	set   map[int64]struct{}
}

func New(ids []int64) *Selection {
	s := &Selection{set: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

// Load reads the stored selection and reconciles it with walls.
func Load(store Store, walls []vkapi.Wall) *Selection {
	s := New(store.Selected())
	s.Reconcile(walls)
	return s
}

func (s *Selection) Save(store Store) {
	store.SetSelected(s.IDs())
}

func (s *Selection) add(id int64) {
	if _, ok := s.set[id]; ok {
		return
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s *Selection) remove(id int64) {
	if _, ok := s.set[id]; !ok {
		return
	}
	delete(s.set, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// IDs returns the selected ids in the order they were picked.
func (s *Selection) IDs() []int64 {
	return append([]int64(nil), s.order...)
}

func (s *Selection) Len() int { return len(s.order) }

func (s *Selection) Has(id int64) bool {
	_, ok := s.set[id]
	return ok
}

// Reconcile drops every selected id missing from walls.
func (s *Selection) Reconcile(walls []vkapi.Wall) {
	known := make(map[int64]struct{}, len(walls))
	for _, w := range walls {
		known[w.ID] = struct{}{}
	}

	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := known[id]; ok {
			kept = append(kept, id)
			continue
		}
		delete(s.set, id)
	}
	s.order = kept
}

// Toggle flips the selection of one wall and reports whether it is selected
// afterwards.
func (s *Selection) Toggle(walls []vkapi.Wall, id int64) (bool, error) {
	if !contains(walls, id) {
		return false, ErrUnknownWall
	}
	if s.Has(id) {
		s.remove(id)
		return false, nil
	}
	s.add(id)
	return true, nil
}

// SelectAll adds every visible wall. Walls hidden by a filter are untouched.
func (s *Selection) SelectAll(visible []vkapi.Wall) {
	for _, w := range visible {
		s.add(w.ID)
	}
}

// ClearAll removes every visible wall. Walls hidden by a filter are untouched.
func (s *Selection) ClearAll(visible []vkapi.Wall) {
	for _, w := range visible {
		s.remove(w.ID)
	}
}

// ReplaceFrom swaps the whole selection for the members of c that are still
// in walls.
func (s *Selection) ReplaceFrom(c vkapi.Collection, walls []vkapi.Wall) {
	s.order = nil
	s.set = make(map[int64]struct{}, len(c.Groups))
	for _, g := range c.Groups {
		s.add(g.ID)
	}
	s.Reconcile(walls)
}

// View is a wall as the dashboard shows it.
type View struct {
	vkapi.Wall
	IsSelected bool
}

func (s *Selection) Views(walls []vkapi.Wall) []View {
	out := make([]View, 0, len(walls))
	for _, w := range walls {
		out = append(out, View{Wall: w, IsSelected: s.Has(w.ID)})
	}
	return out
}

// Filter keeps walls whose name or screen name contains query, ignoring case.
// An empty query keeps everything.
func Filter(walls []vkapi.Wall, query string) []vkapi.Wall {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return walls
	}

	var out []vkapi.Wall
	for _, w := range walls {
		if strings.Contains(strings.ToLower(w.Name), q) || strings.Contains(strings.ToLower(w.ScreenName), q) {
			out = append(out, w)
		}
	}
	return out
}

func contains(walls []vkapi.Wall, id int64) bool {
	for _, w := range walls {
		if w.ID == id {
			return true
		}
	}
	return false
}
