// SPDX-License-Identifier: AGPL-3.0-only
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fluffyriot/vkresender/internal/authflow"
	"github.com/fluffyriot/vkresender/internal/dispatch"
	"github.com/fluffyriot/vkresender/internal/images"
	"github.com/fluffyriot/vkresender/internal/session"
	"github.com/fluffyriot/vkresender/internal/vkapi"
	"golang.org/x/term"
)

const TokenEnv = "VK_RESENDER_TOKEN"

var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(syscall.Stdin))
}

// HandleLogin signs in through w and prints the issued token.
func HandleLogin(ctx context.Context, hs *authflow.Handshake, w authflow.Widget, out io.Writer) error {
	store := session.NewMemory()

	res := hs.Run(ctx, store, w)
	switch res.Phase {
	case authflow.Authorized:
		fmt.Fprintf(out, "Вход выполнен. Токен:\n%s\n", store.Token())
		fmt.Fprintf(out, "Сохраните его в %s для -broadcast.\n", TokenEnv)
		return nil
	case authflow.Linked:
		fmt.Fprintln(out, "Аккаунт успешно добавлен, токен не выдан.")
		return nil
	default:
		return fmt.Errorf("login failed: %w", res.Err)
	}
}

// ResolveToken takes the token from the environment or asks for it without
// echo.
func ResolveToken(getenv func(string) string, out io.Writer) (string, error) {
	if t := strings.TrimSpace(getenv(TokenEnv)); t != "" {
		return t, nil
	}

	fmt.Fprint(out, "Enter access token: ")
	raw, err := readPassword()
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", vkapi.ErrNoToken
	}
	return token, nil
}

type BroadcastOptions struct {
	MessageFile string
	Groups      string
	Images      string
	Out         string
}

// HandleBroadcast posts the message file to the listed walls and writes the
// report to opts.Out.
func HandleBroadcast(ctx context.Context, d *dispatch.Dispatcher, token string, opts BroadcastOptions, out io.Writer) error {
	if opts.MessageFile == "" {
		return errors.New("--message-file is required")
	}

	text, err := os.ReadFile(opts.MessageFile)
	if err != nil {
		return fmt.Errorf("failed to read message file: %w", err)
	}

	wallIDs, err := ParseGroups(opts.Groups)
	if err != nil {
		return err
	}

	var attachments []vkapi.Image
	for _, path := range splitList(opts.Images) {
		img, err := readImage(path)
		if err != nil {
			return err
		}
		attachments = append(attachments, img)
	}

	store := session.NewMemory()
	store.SetToken(token)

	report, err := d.Send(ctx, store, dispatch.Request{
		Text:    string(text),
		WallIDs: wallIDs,
		Images:  attachments,
	})
	if err != nil {
		return err
	}

	dest := opts.Out
	if dest == "" {
		dest = "result.txt"
	}
	if err := os.WriteFile(dest, []byte(report.Text()), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Fprintf(out, "Отправлено: %d групп, %d сообщений, ошибок: %d. Результат: %s\n",
		report.Destinations, report.Messages, report.Failures(), dest)
	return nil
}

// ParseGroups reads a comma separated list of wall ids. Community ids may be
// given with the leading minus VK uses for owner ids.
func ParseGroups(s string) ([]int64, error) {
	var ids []int64
	for _, part := range splitList(s) {
		id, err := strconv.ParseInt(strings.TrimPrefix(part, "-"), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid group id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func readImage(path string) (vkapi.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return vkapi.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	name := filepath.Base(path)
	if err := images.Check(name, info.Size()); err != nil {
		return vkapi.Image{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return vkapi.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	return vkapi.Image{Name: name, Data: data}, nil
}
