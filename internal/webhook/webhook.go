// Package webhook — актор доставки апдейтов на вебхук бота. Актор читает
// TQueue бота, постит апдейты по одному HTTP-запросу на событие и
// подтверждает доставленный префикс. Порядок сохраняется в пределах каждого
// webhook_queue_id; между разными queue_id доставка параллельна, но не шире
// max_connections. Ошибки доставки ретраятся с экспоненциальным бэкоффом и
// репортятся колбэком Error (их показывает getWebhookInfo).
package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"telegram-botapi-gateway/internal/client"
	"telegram-botapi-gateway/internal/tqueue"
)

const (
	// requestTimeout — потолок одного POST на вебхук.
	requestTimeout = 10 * time.Second

	// batchLimit и batchBytes — размер одной выборки из TQueue.
	batchLimit = 100
	batchBytes = 1 << 20

	// secretTokenHeader — заголовок с секретом установки вебхука.
	secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

	// maxResponseBody — сколько тела ответа читается ради keep-alive.
	maxResponseBody = 4 << 10
)

// Options — зависимости актора доставки.
type Options struct {
	BotID  string
	Target client.WebhookTarget
	Events client.WebhookEvents
	Queue  *tqueue.Store
	Log    *zap.Logger
}

// Deliverer — запущенный актор доставки одного вебхука.
type Deliverer struct {
	opts Options
	log  *zap.Logger
	httpc *http.Client

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	closeOnce sync.Once

	// verifyOnce стреляет колбэком Verified на первой успешной доставке.
	verifyOnce sync.Once

	// lastStatus — статус последнего ответа; уходит в колбэк Closed.
	lastStatus int
}

// NewFactory строит фабрику акторов доставки поверх общего TQueue.
func NewFactory(queue *tqueue.Store, log *zap.Logger) client.WebhookFactory {
	return func(botID string, target client.WebhookTarget, events client.WebhookEvents) client.WebhookDelivery {
		d := Start(Options{
			BotID:  botID,
			Target: target,
			Events: events,
			Queue:  queue,
			Log:    log.With(zap.String("bot", botID), zap.String("webhook", target.URL)),
		})
		return d
	}
}

// Start создаёт и запускает актора доставки.
func Start(opts Options) *Deliverer {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	d := &Deliverer{
		opts: opts,
		log:  log,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	d.httpc = d.buildHTTPClient()
	go d.run()
	return d
}

// Notify будит актора: в очереди появилось новое событие.
func (d *Deliverer) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close начинает остановку; по завершении придёт колбэк Closed.
func (d *Deliverer) Close() {
	d.closeOnce.Do(func() { close(d.stop) })
}

// buildHTTPClient собирает HTTP-клиента: пиновка IP при fix_ip_address и
// пользовательский сертификат при наличии.
func (d *Deliverer) buildHTTPClient() *http.Client {
	tlsConfig := &tls.Config{}
	if d.opts.Target.CertPath != "" {
		if pem, err := os.ReadFile(d.opts.Target.CertPath); err == nil {
			pool := x509.NewCertPool()
			if pool.AppendCertsFromPEM(pem) {
				tlsConfig.RootCAs = pool
			}
		} else {
			d.log.Warn("read webhook certificate", zap.Error(err))
		}
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		MaxIdleConnsPerHost: d.opts.Target.MaxConnections,
		IdleConnTimeout:     90 * time.Second,
	}
	if d.opts.Target.FixIPAddress && d.opts.Target.IPAddress != "" {
		ip := d.opts.Target.IPAddress
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if _, port, err := net.SplitHostPort(addr); err == nil {
				addr = net.JoinHostPort(ip, port)
			}
			return dialer.DialContext(ctx, network, addr)
		}
	} else {
		transport.DialContext = dialer.DialContext
	}
	return &http.Client{Transport: transport, Timeout: requestTimeout}
}

// resolveIP возвращает IP-адрес хоста вебхука для getWebhookInfo.
func (d *Deliverer) resolveIP() string {
	if d.opts.Target.FixIPAddress {
		return d.opts.Target.IPAddress
	}
	host := hostOf(d.opts.Target.URL)
	if host == "" {
		return ""
	}
	addrs, err := net.LookupHost(host)
	if err != nil || len(addrs) == 0 {
		return ""
	}
	return addrs[0]
}

// hostOf извлекает хост из URL без полного парсинга (ошибочные URL сюда
// не доходят: их режет setWebhook).
func hostOf(rawURL string) string {
	rest := rawURL
	if i := bytes.Index([]byte(rest), []byte("://")); i >= 0 {
		rest = rest[i+3:]
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' || rest[i] == '?' {
			rest = rest[:i]
			break
		}
	}
	if host, _, err := net.SplitHostPort(rest); err == nil {
		return host
	}
	return rest
}

// run — цикл актора: доставка до остановки.
func (d *Deliverer) run() {
	defer close(d.done)
	defer func() {
		if d.opts.Events.Closed != nil {
			d.opts.Events.Closed(d.lastStatus)
		}
	}()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = time.Second
	retry.MaxInterval = 30 * time.Second
	retry.MaxElapsedTime = 0

	for {
		select {
		case <-d.stop:
			return
		default:
		}

		events, err := d.opts.Queue.Get(d.opts.BotID, 0, batchLimit, batchBytes)
		if err != nil {
			d.log.Error("read tqueue", zap.Error(err))
			if !d.sleep(retry.NextBackOff()) {
				return
			}
			continue
		}
		if len(events) == 0 {
			select {
			case <-d.stop:
				return
			case <-d.wake:
			}
			continue
		}

		delivered := d.deliverBatch(events)
		if delivered > 0 {
			if err := d.opts.Queue.DeleteUpTo(d.opts.BotID, events[delivered-1].ID+1); err != nil {
				d.log.Error("ack tqueue", zap.Error(err))
			}
		}
		if delivered == len(events) {
			retry.Reset()
			continue
		}
		if !d.sleep(retry.NextBackOff()) {
			return
		}
	}
}

// sleep ждёт d либо остановку; false — пора выходить.
func (d *Deliverer) sleep(wait time.Duration) bool {
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-d.stop:
		return false
	case <-t.C:
		return true
	}
}

// deliverBatch доставляет пачку, сохраняя порядок в пределах queue_id, и
// возвращает длину доставленного префикса (по глобальному порядку id).
// Подтверждать можно только непрерывный префикс: TQueue чистится с головы.
func (d *Deliverer) deliverBatch(events []tqueue.Event) int {
	maxConn := d.opts.Target.MaxConnections
	if maxConn < 1 {
		maxConn = 1
	}

	// Группировка по queue_id с сохранением исходного порядка групп.
	type group struct{ idx []int }
	order := make([]int64, 0, len(events))
	groups := make(map[int64]*group, len(events))
	for i, ev := range events {
		g := groups[ev.QueueID]
		if g == nil {
			g = &group{}
			groups[ev.QueueID] = g
			order = append(order, ev.QueueID)
		}
		g.idx = append(g.idx, i)
	}

	ok := make([]bool, len(events))
	sem := make(chan struct{}, maxConn)
	var wg sync.WaitGroup
	for _, qid := range order {
		g := groups[qid]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			for _, i := range g.idx {
				select {
				case <-d.stop:
					return
				default:
				}
				if !d.deliverOne(events[i]) {
					return // хвост группы ждёт следующего захода
				}
				ok[i] = true
			}
		}()
	}
	wg.Wait()

	delivered := 0
	for _, v := range ok {
		if !v {
			break
		}
		delivered++
	}
	return delivered
}

// deliverOne постит одно событие на вебхук. Успех — любой 2xx.
func (d *Deliverer) deliverOne(ev tqueue.Event) bool {
	var body bytes.Buffer
	body.WriteString(`{"update_id":`)
	body.WriteString(strconv.FormatUint(ev.ID, 10))
	body.WriteString(`,"`)
	body.WriteString(ev.Kind)
	body.WriteString(`":`)
	body.Write(ev.Payload)
	body.WriteByte('}')

	req, err := http.NewRequest(http.MethodPost, d.opts.Target.URL, &body)
	if err != nil {
		d.reportError(0, "invalid webhook URL")
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if d.opts.Target.SecretToken != "" {
		req.Header.Set(secretTokenHeader, d.opts.Target.SecretToken)
	}

	resp, err := d.httpc.Do(req)
	if err != nil {
		d.reportError(0, "Connection failed: "+err.Error())
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	d.lastStatus = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.reportError(resp.StatusCode, "Wrong response from the webhook: "+resp.Status)
		return false
	}
	// Установка верифицируется первой успешной доставкой.
	d.verifyOnce.Do(func() {
		if d.opts.Events.Verified != nil {
			d.opts.Events.Verified(d.resolveIP())
		}
	})
	if d.opts.Events.Success != nil {
		d.opts.Events.Success()
	}
	return true
}

// reportError доводит ошибку доставки до Client.
func (d *Deliverer) reportError(status int, description string) {
	if status != 0 {
		d.lastStatus = status
	}
	d.log.Debug("webhook delivery failed",
		zap.Int("status", status), zap.String("description", description))
	if d.opts.Events.Error != nil {
		d.opts.Events.Error(status, description)
	}
}
