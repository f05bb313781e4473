package client

// Управление вебхуком: setWebhook / deleteWebhook / getWebhookInfo, рестарт
// вебхука после повторной авторизации и остановка при закрытии. Смена вебхука
// дебаунсится секундой; повторный setWebhook отменяет ожидающий конфликтом 409
// и продолжает со своими параметрами. Ответ на setWebhook уходит после
// верификации доставки webhook-актором (либо немедленно при снятии).

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/botapi"
	"telegram-botapi-gateway/internal/infra/storage"
	"telegram-botapi-gateway/internal/tdapi"
	"telegram-botapi-gateway/internal/webhookdb"
)

const (
	// webhookDebounce — минимальный интервал между сменами вебхука.
	webhookDebounce = time.Second

	defaultWebhookMaxConnections = 40
	maxWebhookConnections        = 100
	maxLocalWebhookConnections   = 100000
	maxSecretTokenLength         = 256

	webhookCertFile = "cert.pem"
)

// webhookState — состояние вебхука бота внутри актора.
type webhookState struct {
	params   webhookdb.Params
	url      string // дубль params.URL; пустая строка — вебхук не установлен
	delivery WebhookDelivery

	cachedIP         string
	lastErrorAt      int64
	lastErrorMessage string

	installing    bool
	installQuery  *botapi.Query
	lastChangeAt  time.Time
	pendingTarget *WebhookTarget // установка, ожидающая остановки старого актора
}

// handleSetWebhook — вход метода setWebhook.
func (c *Client) handleSetWebhook(q *botapi.Query) {
	rawURL := strings.TrimSpace(q.Arg("url"))
	if rawURL == "" {
		// Пустой url равносилен deleteWebhook.
		c.performDeleteWebhook(q)
		return
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		q.AnswerError(botapi.BadRequest("invalid webhook URL specified"))
		return
	}
	if u.Scheme != "https" && !(c.opts.LocalMode && u.Scheme == "http") {
		q.AnswerError(botapi.BadRequest("An HTTPS URL must be provided for webhook"))
		return
	}

	maxConnCap := int64(maxWebhookConnections)
	if c.opts.LocalMode {
		maxConnCap = maxLocalWebhookConnections
	}
	maxConn := int(q.IntArg("max_connections", defaultWebhookMaxConnections, 1, maxConnCap))

	secret := q.Arg("secret_token")
	if !validSecretToken(secret) {
		q.AnswerError(botapi.BadRequest("invalid secret token specified"))
		return
	}

	mask := c.allowedUpdateTypes
	if q.HasArg("allowed_updates") {
		mask = parseAllowedUpdates(q.Arg("allowed_updates"))
	}

	cert, hasCert := q.File("certificate")

	params := webhookdb.Params{
		URL:            rawURL,
		HasCertificate: hasCert,
		MaxConnections: maxConn,
		IPAddress:      q.Arg("ip_address"),
		FixIPAddress:   q.Arg("ip_address") != "",
		SecretToken:    secret,
		AllowedTypes:   mask,
	}

	if c.webhook.installing {
		// Более поздний setWebhook побеждает: ожидающий отменяется конфликтом.
		c.finishInstall(botapi.Conflict("terminated by other setWebhook"))
	}

	// Совпадение всех параметров, кроме маски, не трогает актора доставки:
	// обновляется и персистится только маска допущенных видов.
	sameButMask := params
	sameButMask.AllowedTypes = c.webhook.params.AllowedTypes
	if !hasCert && !q.BoolArg("drop_pending_updates") && c.webhook.url != "" && sameButMask == c.webhook.params {
		if params.AllowedTypes != c.webhook.params.AllowedTypes {
			c.applyAllowedMask(params.AllowedTypes)
			c.webhook.params.AllowedTypes = params.AllowedTypes
			if err := c.opts.WebhookDB.Put(c.opts.Token, c.dc(), c.webhook.params); err != nil {
				c.log.Error("persist webhook", zap.Error(err))
			}
		}
		q.AnswerOKDescription(json.RawMessage("true"), "Webhook is already set")
		return
	}

	c.webhook.installing = true
	c.webhook.installQuery = q

	proceed := func() {
		if q.BoolArg("drop_pending_updates") {
			c.dropPendingUpdates()
		}
		if hasCert {
			dst := filepath.Join(c.opts.Dir, webhookCertFile)
			c.opts.FS.Submit(
				func() error { return storage.CopyFile(cert.Path, dst) },
				func(err error) {
					c.post(func() {
						if err != nil {
							c.finishInstall(botapi.BadRequest("failed to store webhook certificate"))
							return
						}
						c.installWebhook(params, dst)
					})
				},
			)
			return
		}
		c.installWebhook(params, "")
	}

	// Дебаунс смены вебхука.
	if wait := webhookDebounce - c.now().Sub(c.webhook.lastChangeAt); wait > 0 {
		c.scheduleAfter(wait, proceed)
		return
	}
	proceed()
}

// installWebhook останавливает старого актора (если есть), персистит параметры
// и запускает нового. Ответ на установку уходит после Verified.
func (c *Client) installWebhook(params webhookdb.Params, certPath string) {
	c.webhook.lastChangeAt = c.now()

	target := WebhookTarget{
		URL:            params.URL,
		MaxConnections: params.MaxConnections,
		IPAddress:      params.IPAddress,
		FixIPAddress:   params.FixIPAddress,
		SecretToken:    params.SecretToken,
		CertPath:       certPath,
	}

	if c.webhook.delivery != nil {
		// Новый актор стартует из колбэка Closed старого.
		c.webhook.pendingTarget = &target
		c.webhook.params = params
		c.webhook.delivery.Close()
		return
	}
	c.startWebhook(params, target)
}

// startWebhook персистит параметры и запускает актора доставки.
func (c *Client) startWebhook(params webhookdb.Params, target WebhookTarget) {
	if err := c.opts.WebhookDB.Put(c.opts.Token, c.dc(), params); err != nil {
		c.log.Error("persist webhook", zap.Error(err))
		c.finishInstall(botapi.Internal("failed to persist webhook"))
		return
	}
	c.applyAllowedMask(params.AllowedTypes)

	c.webhook.params = params
	c.webhook.url = params.URL
	c.webhook.lastErrorAt = 0
	c.webhook.lastErrorMessage = ""
	c.webhook.delivery = c.opts.WebhookFactory(c.botID(), target, c.webhookEvents())

	// Запаркованный getUpdates вытесняется конфликтом: бот переведён на вебхук.
	c.failParkedGetUpdates(botapi.Conflict("terminated by setWebhook request"))
}

// webhookEvents — колбэки актора доставки, завёрнутые в почтовый ящик.
func (c *Client) webhookEvents() WebhookEvents {
	return WebhookEvents{
		Verified: func(cachedIP string) {
			c.post(func() {
				c.webhook.cachedIP = cachedIP
				c.finishInstall(nil)
			})
		},
		Success: func() {
			c.post(func() {
				c.webhook.lastErrorAt = 0
				c.webhook.lastErrorMessage = ""
			})
		},
		Error: func(status int, description string) {
			c.post(func() {
				c.webhook.lastErrorAt = c.unixNow()
				c.webhook.lastErrorMessage = description
			})
		},
		Closed: func(status int) {
			c.post(func() { c.onWebhookClosed() })
		},
	}
}

// finishInstall отвечает на ожидающий setWebhook.
func (c *Client) finishInstall(err *botapi.Error) {
	q := c.webhook.installQuery
	c.webhook.installQuery = nil
	c.webhook.installing = false
	if q == nil {
		return
	}
	if err != nil {
		q.AnswerError(err)
		return
	}
	q.AnswerOK(json.RawMessage("true"))
}

// onWebhookClosed — старый актор остановился; стартует отложенная установка.
func (c *Client) onWebhookClosed() {
	c.webhook.delivery = nil
	if target := c.webhook.pendingTarget; target != nil {
		c.webhook.pendingTarget = nil
		c.startWebhook(c.webhook.params, *target)
		return
	}
	c.webhook.url = ""
}

// handleDeleteWebhook — вход метода deleteWebhook.
func (c *Client) handleDeleteWebhook(q *botapi.Query) {
	c.performDeleteWebhook(q)
}

// performDeleteWebhook снимает вебхук и отвечает сразу: остановка актора
// асинхронна, но наружу она не видна.
func (c *Client) performDeleteWebhook(q *botapi.Query) {
	if q.BoolArg("drop_pending_updates") {
		c.dropPendingUpdates()
	}
	if err := c.opts.WebhookDB.Delete(c.opts.Token, c.dc()); err != nil {
		c.log.Warn("delete webhook row", zap.Error(err))
	}
	c.webhook.lastChangeAt = c.now()
	c.webhook.url = ""
	c.webhook.params = webhookdb.Params{}
	c.webhook.cachedIP = ""
	c.webhook.lastErrorAt = 0
	c.webhook.lastErrorMessage = ""
	if c.webhook.delivery != nil {
		c.webhook.pendingTarget = nil
		c.webhook.delivery.Close()
	}
	q.AnswerOK(json.RawMessage("true"))
}

// handleGetWebhookInfo — вход метода getWebhookInfo.
func (c *Client) handleGetWebhookInfo(q *botapi.Query) {
	pending, err := c.opts.Queue.Size(c.botID())
	if err != nil {
		c.log.Error("webhook info: queue size", zap.Error(err))
	}
	info := map[string]any{
		"url":                  c.webhook.url,
		"has_custom_certificate": c.webhook.params.HasCertificate,
		"pending_update_count": pending,
	}
	if c.webhook.url != "" {
		if c.webhook.cachedIP != "" {
			info["ip_address"] = c.webhook.cachedIP
		}
		if c.webhook.lastErrorAt != 0 {
			info["last_error_date"] = c.webhook.lastErrorAt
			info["last_error_message"] = c.webhook.lastErrorMessage
		}
		if !c.lastSyncErrorAt.IsZero() {
			info["last_synchronization_error_date"] = c.lastSyncErrorAt.Unix()
		}
		info["max_connections"] = c.webhook.params.MaxConnections
		if names := allowedUpdateNames(c.webhook.params.AllowedTypes); names != nil {
			info["allowed_updates"] = names
		}
	}
	raw, merr := json.Marshal(info)
	if merr != nil {
		q.AnswerError(botapi.Internal("response encoding failed"))
		return
	}
	q.AnswerOK(raw)
}

// restoreWebhook поднимает вебхук из персистентного хранилища после первой
// авторизации.
func (c *Client) restoreWebhook() {
	params, ok, err := c.opts.WebhookDB.Get(c.opts.Token, c.dc())
	if err != nil {
		c.log.Error("restore webhook", zap.Error(err))
		return
	}
	if !ok || params.URL == "" {
		return
	}
	certPath := ""
	if params.HasCertificate {
		certPath = filepath.Join(c.opts.Dir, webhookCertFile)
	}
	if params.AllowedTypes != 0 {
		c.allowedUpdateTypes = params.AllowedTypes
	}
	c.webhook.params = params
	c.webhook.url = params.URL
	c.webhook.delivery = c.opts.WebhookFactory(c.botID(), WebhookTarget{
		URL:            params.URL,
		MaxConnections: params.MaxConnections,
		IPAddress:      params.IPAddress,
		FixIPAddress:   params.FixIPAddress,
		SecretToken:    params.SecretToken,
		CertPath:       certPath,
	}, c.webhookEvents())
	c.log.Info("webhook restored", zap.String("url", params.URL))
}

// shutdownWebhook останавливает актора доставки при закрытии Client.
func (c *Client) shutdownWebhook() {
	if c.webhook.delivery != nil {
		c.webhook.pendingTarget = nil
		c.webhook.delivery.Close()
		c.webhook.delivery = nil
	}
	if c.webhook.installQuery != nil {
		c.finishInstall(c.closingError())
	}
}

// applyAllowedMask применяет и персистит маску допущенных видов апдейтов.
func (c *Client) applyAllowedMask(mask uint32) {
	if mask == 0 || mask == c.allowedUpdateTypes {
		return
	}
	c.allowedUpdateTypes = mask
	c.sendRequest(tdapi.SetOption{
		Name:  "xallowed_update_types",
		Value: tdapi.OptionInteger{Value: int64(mask)},
	}, nil)
}

// dropPendingUpdates очищает буфер апдейтов бота.
func (c *Client) dropPendingUpdates() {
	if err := c.opts.Queue.Clear(c.botID()); err != nil {
		c.log.Error("drop pending updates", zap.Error(err))
	}
	c.cursor = 0
}

// validSecretToken: до 256 символов из [A-Za-z0-9_-].
func validSecretToken(s string) bool {
	if len(s) > maxSecretTokenLength {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
