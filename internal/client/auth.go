package client

// FSM авторизации и закрытия. Гейтит очередь команд до Ready, ведёт повторные
// попытки логина с учётом retry_after, обслуживает logout/close рукопожатие и
// финальную уборку. Пока идёт logout или закрытие, новые запросы к нативному
// клиенту не отправляются: все HTTP-запросы получают детерминированную ошибку
// закрытия.

import (
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/infra/storage"
	"telegram-botapi-gateway/internal/tdapi"
)

// processQuery — вход обработки HTTP-запроса в горутине актора.
func (c *Client) processQuery(q *botapi.Query) {
	if c.loggingOut || c.closing || c.finishedFlag {
		q.AnswerError(c.closingError())
		return
	}

	if err := c.admitQuery(q); err != nil {
		q.AnswerError(err)
		return
	}
	if c.paceUpload(q) {
		return
	}

	// Локальные методы не требуют готового нативного клиента.
	if localMethods[q.Method()] {
		c.dispatchQuery(q)
		return
	}

	if !c.authorized {
		c.enqueueCommand(q)
		return
	}
	c.dispatchQuery(q)
}

// closingError строит детерминированную ошибку закрытия по текущему состоянию FSM.
func (c *Client) closingError() *botapi.Error {
	switch {
	case c.apiIDInvalid:
		return botapi.Unauthorized("invalid api-id/api-hash")
	case !c.nextAuthAttempt.IsZero() && c.nextAuthAttempt.After(c.now()):
		retry := int(time.Until(c.nextAuthAttempt).Seconds()) + 1
		if retry < 1 {
			retry = 1
		}
		return botapi.TooManyRequests(retry)
	case c.loggingOut && c.clearTQueue:
		return botapi.BadRequest("Logged out")
	case c.loggingOut:
		return botapi.Unauthorized("Unauthorized")
	default:
		return botapi.Internal("restart")
	}
}

// beginClose инициирует закрытие: close (рестарт) либо logout (с очисткой).
func (c *Client) beginClose(logout bool) {
	if c.loggingOut || c.closing {
		return
	}
	if logout {
		c.loggingOut = true
		c.sendRequest(tdapi.LogOut{}, nil)
	} else {
		c.closing = true
		c.sendRequest(tdapi.Close{}, nil)
	}
	c.failCommandQueue(c.closingError())
}

// handleAuthState обрабатывает переход FSM нативного клиента.
func (c *Client) handleAuthState(state tdapi.AuthState) {
	c.authState = state
	switch state {
	case tdapi.AuthStateWaitTdlibParameters:
		c.sendTdlibParameters()
	case tdapi.AuthStateWaitPhoneNumber:
		c.checkBotToken()
	case tdapi.AuthStateReady:
		c.onReady()
	case tdapi.AuthStateLoggingOut:
		c.loggingOut = true
	case tdapi.AuthStateClosing:
		if !c.loggingOut {
			c.closing = true
		}
	case tdapi.AuthStateClosed:
		c.onClosed()
	}
}

// sendTdlibParameters настраивает производительность нативного клиента и
// передаёт ему параметры хранилища и приложения. Ошибка инициализации
// терминальна: без параметров клиент не поднимется.
func (c *Client) sendTdlibParameters() {
	for _, opt := range []tdapi.SetOption{
		{Name: "disable_network_statistics", Value: tdapi.OptionBoolean{Value: true}},
		{Name: "disable_time_adjustment_protection", Value: tdapi.OptionBoolean{Value: true}},
		{Name: "ignore_file_names", Value: tdapi.OptionBoolean{Value: true}},
		{Name: "ignore_inline_thumbnails", Value: tdapi.OptionBoolean{Value: true}},
		{Name: "reuse_uploaded_photos_by_hash", Value: tdapi.OptionBoolean{Value: true}},
		{Name: "use_storage_optimizer", Value: tdapi.OptionBoolean{Value: true}},
	} {
		c.sendRequest(opt, nil)
	}

	c.sendRequest(tdapi.SetTdlibParameters{
		DatabaseDirectory:  c.opts.Dir,
		UseTestDC:          c.opts.TestDC,
		APIID:              c.opts.APIID,
		APIHash:            c.opts.APIHash,
		DeviceModel:        "server",
		ApplicationVersion: appVersion,
	}, func(resp tdapi.Response) {
		if resp.Err != nil {
			c.log.Error("setTdlibParameters failed",
				zap.Int("code", resp.Err.Code), zap.String("message", resp.Err.Message))
			c.beginClose(false)
		}
	})
}

// appVersion — версия приложения, сообщаемая нативному клиенту.
const appVersion = "1.0"

// checkBotToken выполняет вход по токену. Ошибки обрабатываются с бэкоффом:
// 401 до первой успешной авторизации — терминальный logout, 429 — расписание
// по retry_after, 5xx — секундная пауза.
func (c *Client) checkBotToken() {
	c.sendRequest(tdapi.SetOption{Name: "online", Value: tdapi.OptionBoolean{Value: true}}, nil)
	c.sendRequest(tdapi.CheckAuthenticationBotToken{Token: c.opts.Token}, func(resp tdapi.Response) {
		if resp.Err == nil {
			return
		}
		c.onAuthorizationError(*resp.Err)
	})
}

// authRetryPolicy строит бэкофф для повторных попыток авторизации после 5xx.
func authRetryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // ограничивает не время, а состояние FSM
	return b
}

// onAuthorizationError разбирает ошибку логина и планирует следующую попытку
// либо завершает Client.
func (c *Client) onAuthorizationError(err tdapi.Error) {
	if strings.Contains(err.Message, "API_ID_INVALID") {
		c.apiIDInvalid = true
		c.beginClose(true)
		return
	}
	switch {
	case err.Code == 401 && !c.wasAuthorized:
		c.log.Info("bot token rejected", zap.String("message", err.Message))
		c.beginClose(true)
	case err.Code == 429:
		retry := time.Duration(parseRetryAfter(err.Message)) * time.Second
		if retry <= 0 {
			retry = time.Second
		}
		c.nextAuthAttempt = c.now().Add(retry)
		c.scheduleAfter(retry, c.retryAuthorization)
	case err.Code >= 500:
		delay := c.authBackoff().NextBackOff()
		c.nextAuthAttempt = c.now().Add(delay)
		c.scheduleAfter(delay, c.retryAuthorization)
	default:
		c.log.Warn("authorization error", zap.Int("code", err.Code), zap.String("message", err.Message))
	}
}

// authBackoff лениво создаёт политику бэкоффа попыток логина.
func (c *Client) authBackoff() backoff.BackOff {
	if c.loginBackoff == nil {
		c.loginBackoff = authRetryPolicy()
	}
	return c.loginBackoff
}

// retryAuthorization повторяет вход, если FSM всё ещё ждёт токен.
func (c *Client) retryAuthorization() {
	c.nextAuthAttempt = time.Time{}
	if c.authState == tdapi.AuthStateWaitPhoneNumber && !c.loggingOut && !c.closing {
		c.checkBotToken()
	}
}

// parseRetryAfter извлекает N из "Too Many Requests: retry after N"; 0 — нет.
func parseRetryAfter(message string) int {
	const prefix = "Too Many Requests: retry after "
	if !strings.HasPrefix(message, prefix) {
		return 0
	}
	var n int
	if _, err := fmt.Sscanf(message[len(prefix):], "%d", &n); err != nil {
		return 0
	}
	return n
}

// onReady обрабатывает переход в Ready: добирает собственного пользователя,
// продвигает общий сдвиг времени, сливает пре-авторизационный буфер и
// открывает очередь команд.
func (c *Client) onReady() {
	if c.myID == 0 || c.cache.User(c.myID) == nil {
		c.sendRequest(tdapi.GetMe{}, func(resp tdapi.Response) {
			if u, ok := resp.Result.(*tdapi.User); ok {
				c.myID = u.ID
				c.cache.PutUser(u)
			}
			c.finishReady()
		})
		return
	}
	c.finishReady()
}

// finishReady завершает переход в Ready.
func (c *Client) finishReady() {
	first := !c.wasAuthorized
	c.authorized = true
	c.wasAuthorized = true
	c.nextAuthAttempt = time.Time{}
	c.loginBackoff = nil

	if first {
		advanceSharedUnixTimeOffset(c.unixTimeOffset)
		c.flushPreAuthBuffer()
		c.restoreWebhook()
	}
	c.drainCommandQueue()
	c.log.Info("authorization ready", zap.Int64("bot_id", c.myID))
}

// onClosed — терминальная уборка: провал всех ожиданий, остановка long-poll и
// webhook, опциональная очистка TQueue и каталога.
func (c *Client) onClosed() {
	closeErr := c.closingError()

	c.failAllPending(tdapi.Error{Code: 500, Message: "Request aborted"})
	c.failCommandQueue(closeErr)
	c.failParkedGetUpdates(closeErr)
	c.shutdownWebhook()
	c.failSendQueries(closeErr)

	for fileID, listeners := range c.downloadListeners {
		for _, q := range listeners {
			q.AnswerError(closeErr)
		}
		delete(c.downloadListeners, fileID)
	}

	if c.loggingOut && c.clearTQueue {
		if err := c.opts.Queue.Clear(c.botID()); err != nil {
			c.log.Warn("clear tqueue on logout", zap.Error(err))
		}
		if err := c.opts.WebhookDB.Delete(c.opts.Token, c.dc()); err != nil {
			c.log.Warn("delete webhook row on logout", zap.Error(err))
		}
	}

	dir := c.opts.Dir
	c.opts.FS.Submit(func() error { return storage.RemoveTree(dir) }, nil)

	c.finishedFlag = true
	c.log.Info("client closed")
}

// finished сообщает циклу актора, что терминальная уборка выполнена.
func (c *Client) finished() bool { return c.finishedFlag }

// dc возвращает номер датацентра для ключа webhook DB.
func (c *Client) dc() int {
	if c.opts.TestDC {
		return 10002
	}
	return 2
}
