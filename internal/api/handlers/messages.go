// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"errors"
	"fmt"

	"github.com/fluffyriot/vkresender/internal/authflow"
	"github.com/fluffyriot/vkresender/internal/collections"
	"github.com/fluffyriot/vkresender/internal/dispatch"
	"github.com/fluffyriot/vkresender/internal/images"
	"github.com/fluffyriot/vkresender/internal/importer"
	"github.com/fluffyriot/vkresender/internal/selection"
	"github.com/fluffyriot/vkresender/internal/vkapi"
)

const (
	msgAccountLinked = "Аккаунт успешно добавлен."
	msgPostsSent     = "Сообщения отправлены, результат можно скачать."
)

var userMessages = []struct {
	err error
	msg string
}{
	{dispatch.ErrEmptyMessage, "Вы забыли ввести сообщение"},
	{dispatch.ErrNoDestinations, "Выберите хотя бы одну группу"},
	{collections.ErrEmptyName, "Введите название коллекции"},
	{collections.ErrNoActive, "Не выбрана коллекция"},
	{collections.ErrNoCandidates, "Выберите группы для добавления"},
	{collections.ErrNotFound, "Коллекция не найдена"},
	{importer.ErrEmpty, "В файле нет ни одной группы"},
	{importer.ErrTooLarge, "Файл импорта слишком большой"},
	{images.ErrUnsupported, "Недопустимый тип файла (разрешены: jpg, jpeg, png, webp)"},
	{images.ErrTooLarge, "Файл слишком большой (максимум 25 МБ)"},
	{images.ErrDecode, "Не удалось прочитать изображение"},
	{selection.ErrUnknownWall, "Группа не найдена, список обновлён"},
	{authflow.ErrMissingVerifier, "Ошибка авторизации: попытка входа устарела, войдите ещё раз"},
	{authflow.ErrMissingCode, "Ошибка авторизации: не получен код авторизации"},
	{authflow.ErrStateMismatch, "Ошибка авторизации: попытка входа не совпадает, войдите ещё раз"},
}

// userMessage turns err into the text shown to the operator.
func userMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}

	if errors.Is(err, authflow.ErrWidget) || errors.Is(err, authflow.ErrExchange) {
		return fmt.Sprintf("Ошибка авторизации: %s", detail(err))
	}

	return fmt.Sprintf("Ошибка: %s", detail(err))
}

// detail prefers the backend's own explanation.
func detail(err error) string {
	var apiErr *vkapi.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
