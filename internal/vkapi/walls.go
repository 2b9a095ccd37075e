// SPDX-License-Identifier: AGPL-3.0-only
package vkapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// Image is an attachment sent along with a wall post.
type Image struct {
	Name string
	Data []byte
}

func (c *Client) GetGroups(ctx context.Context, store TokenStore) ([]Wall, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/vk/get_groups", nil, nil)
	if err != nil {
		return nil, err
	}

	var walls []Wall
	if err := c.do(req, store, &walls); err != nil {
		return nil, err
	}
	return walls, nil
}

// AddGroups registers new destinations by their VK handles in one batch.
func (c *Client) AddGroups(ctx context.Context, store TokenStore, handles []string) error {
	q := url.Values{}
	for _, h := range handles {
		q.Add("group_ids", h)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/vk/add_groups", q, nil)
	if err != nil {
		return err
	}
	return c.do(req, store, nil)
}

// WallPost publishes every message on every wall in one request. Group ids are
// sent negated, as VK addresses community walls.
func (c *Client) WallPost(ctx context.Context, store TokenStore, messages []string, wallIDs []int64, images []Image) (*WallPostResult, error) {
	q := url.Values{}
	for _, id := range wallIDs {
		q.Add("group_ids", "-"+strconv.FormatInt(id, 10))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	for _, m := range messages {
		if err := mw.WriteField("messages", m); err != nil {
			return nil, fmt.Errorf("write message field: %w", err)
		}
	}
	for _, img := range images {
		fw, err := mw.CreateFormFile("images", img.Name)
		if err != nil {
			return nil, fmt.Errorf("create image part: %w", err)
		}
		if _, err := fw.Write(img.Data); err != nil {
			return nil, fmt.Errorf("write image %s: %w", img.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/vk/wall.post", q, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result WallPostResult
	if err := c.do(req, store, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
