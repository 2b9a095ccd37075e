// SPDX-License-Identifier: AGPL-3.0-only
package vkapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) CreateCollection(ctx context.Context, store TokenStore, name string) error {
	q := url.Values{}
	q.Set("name", name)

	req, err := c.newRequest(ctx, http.MethodPost, "/vk/create_collection", q, nil)
	if err != nil {
		return err
	}
	return c.do(req, store, nil)
}

func (c *Client) GetCollections(ctx context.Context, store TokenStore) ([]Collection, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/vk/collections", nil, nil)
	if err != nil {
		return nil, err
	}

	var collections []Collection
	if err := c.do(req, store, &collections); err != nil {
		return nil, err
	}
	return collections, nil
}

func (c *Client) AddGroupsToCollection(ctx context.Context, store TokenStore, collectionID int64, wallIDs []int64) error {
	q := url.Values{}
	q.Set("collection_id", strconv.FormatInt(collectionID, 10))
	for _, id := range wallIDs {
		q.Add("group_ids", strconv.FormatInt(id, 10))
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/vk/add_group_to_collection", q, nil)
	if err != nil {
		return err
	}
	return c.do(req, store, nil)
}

func (c *Client) DeleteCollection(ctx context.Context, store TokenStore, collectionID int64) error {
	q := url.Values{}
	q.Set("collection_id", strconv.FormatInt(collectionID, 10))

	req, err := c.newRequest(ctx, http.MethodDelete, "/vk/delete_collection", q, nil)
	if err != nil {
		return err
	}
	return c.do(req, store, nil)
}
