// SPDX-License-Identifier: AGPL-3.0-only
package stats

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/fluffyriot/vkresender/internal/vkapi"
)

type Account struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Initials  string `json:"initials"`
	PostCount int64  `json:"post_count"`
}

type TeamStats struct {
	Accounts   []Account `json:"accounts"`
	TotalPosts int64     `json:"total_posts"`
}

type UserLister interface {
	GetUsers(ctx context.Context, store vkapi.TokenStore) ([]vkapi.User, error)
}

func GetStats(ctx context.Context, users UserLister, store vkapi.TokenStore) (*TeamStats, error) {
	list, err := users.GetUsers(ctx, store)
	if err != nil {
		return nil, err
	}
	return FromUsers(list), nil
}

func FromUsers(users []vkapi.User) *TeamStats {
	result := &TeamStats{Accounts: []Account{}}

	for _, u := range users {
		var posts int64
		if u.PostCount != nil {
			posts = *u.PostCount
		}

		result.Accounts = append(result.Accounts, Account{
			ID:        u.ID,
			Name:      strings.TrimSpace(u.FirstName + " " + u.LastName),
			Initials:  initial(u.FirstName) + initial(u.LastName),
			PostCount: posts,
		})
		result.TotalPosts += posts
	}

	return result
}

func initial(s string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(s))
	if r == utf8.RuneError {
		return ""
	}
	return strings.ToUpper(string(r))
}
