// Package webhookdb — персистентное хранилище параметров вебхуков.
// На рестарте сервер восстанавливает вебхуки всех ботов из одной строки на
// бота: компактной кодировки с маркерами (cert/, #maxc<N>/, #ip<IP>/,
// #fix_ip/, #secret<S>/, #allow<MASK>/), завершающейся URL. Ключ — token:dc.
package webhookdb

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	bolt "go.etcd.io/bbolt"

	"telegram-botapi-gateway/internal/infra/storage"
)

// Params — параметры установленного вебхука.
type Params struct {
	URL            string
	HasCertificate bool
	MaxConnections int
	IPAddress      string
	FixIPAddress   bool
	SecretToken    string
	AllowedTypes   uint32 // маска допущенных видов апдейтов; 0 — по умолчанию
}

// Маркеры кодировки. Порядок фиксирован; URL всегда в хвосте.
const (
	markCert   = "cert/"
	markMaxc   = "#maxc"
	markIP     = "#ip"
	markFixIP  = "#fix_ip/"
	markSecret = "#secret"
	markAllow  = "#allow"
)

// Encode упаковывает параметры в строку хранения.
func Encode(p Params) string {
	var b strings.Builder
	if p.HasCertificate {
		b.WriteString(markCert)
	}
	if p.MaxConnections > 0 {
		b.WriteString(markMaxc)
		b.WriteString(strconv.Itoa(p.MaxConnections))
		b.WriteString("/")
	}
	if p.IPAddress != "" {
		b.WriteString(markIP)
		b.WriteString(p.IPAddress)
		b.WriteString("/")
	}
	if p.FixIPAddress {
		b.WriteString(markFixIP)
	}
	if p.SecretToken != "" {
		b.WriteString(markSecret)
		b.WriteString(p.SecretToken)
		b.WriteString("/")
	}
	if p.AllowedTypes != 0 {
		b.WriteString(markAllow)
		b.WriteString(strconv.FormatUint(uint64(p.AllowedTypes), 10))
		b.WriteString("/")
	}
	b.WriteString(p.URL)
	return b.String()
}

// Decode разбирает строку хранения. Неизвестный маркер считается началом URL:
// формат расширяется только добавлением новых маркеров перед URL.
func Decode(s string) Params {
	var p Params
	for {
		switch {
		case strings.HasPrefix(s, markCert):
			p.HasCertificate = true
			s = s[len(markCert):]
		case strings.HasPrefix(s, markFixIP):
			p.FixIPAddress = true
			s = s[len(markFixIP):]
		case strings.HasPrefix(s, markMaxc):
			val, rest, ok := cutMarker(s, markMaxc)
			if !ok {
				p.URL = s
				return p
			}
			p.MaxConnections, _ = strconv.Atoi(val)
			s = rest
		case strings.HasPrefix(s, markIP):
			val, rest, ok := cutMarker(s, markIP)
			if !ok {
				p.URL = s
				return p
			}
			p.IPAddress = val
			s = rest
		case strings.HasPrefix(s, markSecret):
			val, rest, ok := cutMarker(s, markSecret)
			if !ok {
				p.URL = s
				return p
			}
			p.SecretToken = val
			s = rest
		case strings.HasPrefix(s, markAllow):
			val, rest, ok := cutMarker(s, markAllow)
			if !ok {
				p.URL = s
				return p
			}
			// Маска хранится полным 32-битным паттерном; знаковое расширение недопустимо.
			mask, _ := strconv.ParseUint(val, 10, 64)
			p.AllowedTypes = uint32(mask)
			s = rest
		default:
			p.URL = s
			return p
		}
	}
}

// cutMarker отрезает "<marker><value>/" и возвращает value и остаток.
func cutMarker(s, marker string) (val, rest string, ok bool) {
	s = s[len(marker):]
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

var bucketName = []byte("webhooks")

// DB — хранилище строк вебхуков поверх bbolt. Потокобезопасно.
type DB struct {
	db *bolt.DB
}

// Open открывает (создавая при необходимости) файл хранилища.
func Open(path string) (*DB, error) {
	if err := storage.EnsureDir(path); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open webhook db")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketName)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "init webhook db")
	}
	return &DB{db: db}, nil
}

// Close закрывает хранилище.
func (d *DB) Close() error { return d.db.Close() }

// Put сохраняет параметры вебхука бота. Ключ — "token:dc".
func (d *DB) Put(token string, dc int, p Params) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(rowKey(token, dc), []byte(Encode(p)))
	})
}

// Get возвращает сохранённые параметры; ok=false, если записи нет.
func (d *DB) Get(token string, dc int) (Params, bool, error) {
	var p Params
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketName).Get(rowKey(token, dc)); raw != nil {
			p = Decode(string(raw))
			ok = true
		}
		return nil
	})
	return p, ok, err
}

// Delete удаляет запись вебхука бота.
func (d *DB) Delete(token string, dc int) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(rowKey(token, dc))
	})
}

func rowKey(token string, dc int) []byte {
	return []byte(token + ":" + strconv.Itoa(dc))
}
