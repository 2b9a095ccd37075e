// SPDX-License-Identifier: AGPL-3.0-only
package dispatch

import (
	"fmt"
	"strings"

	"github.com/fluffyriot/vkresender/internal/vkapi"
)

type LineKind int

const (
	Posted LineKind = iota
	Rejected
	Unknown
)

type Line struct {
	Kind          LineKind
	DestinationID string
	PostID        string
	Error         string
}

func (l Line) String() string {
	switch l.Kind {
	case Posted:
		return fmt.Sprintf("https://vk.com/wall%s_%s", l.DestinationID, l.PostID)
	case Rejected:
		return fmt.Sprintf("https://vk.com/club%s. Ошибка - %s", l.DestinationID, l.Error)
	default:
		return fmt.Sprintf("https://vk.com/club%s. Неизвестная ошибка", l.DestinationID)
	}
}

type Report struct {
	ID           string
	Destinations int
	Messages     int
	Lines        []Line
}

func (r *Report) Failures() int {
	n := 0
	for _, l := range r.Lines {
		if l.Kind != Posted {
			n++
		}
	}
	return n
}

// Text is the downloadable form of the report, one line per outcome.
func (r *Report) Text() string {
	parts := make([]string, 0, len(r.Lines))
	for _, l := range r.Lines {
		parts = append(parts, l.String())
	}
	return strings.Join(parts, "\n")
}

// BuildReport flattens the backend answer into one line per outcome, walls in
// the order the backend listed them and messages in submission order.
func BuildReport(res *vkapi.WallPostResult, messages int) *Report {
	r := &Report{Messages: messages}
	if res == nil {
		return r
	}

	r.Destinations = len(res.Destinations)
	for _, d := range res.Destinations {
		for _, o := range d.Outcomes {
			r.Lines = append(r.Lines, lineFor(d.DestinationID, o))
		}
	}
	return r
}

func lineFor(destination string, o vkapi.PostOutcome) Line {
	if o.Succeeded() {
		return Line{Kind: Posted, DestinationID: destination, PostID: o.PostID.String()}
	}
	if msg := o.ErrorMessage(); msg != "" {
		return Line{Kind: Rejected, DestinationID: destination, Error: msg}
	}
	return Line{Kind: Unknown, DestinationID: destination}
}
