// Package tqueue — персистентный буфер апдейтов (TQueue). На каждого бота —
// свой bucket в bbolt; ключи — монотонные 8-байтовые идентификаторы событий,
// поэтому порядок выдачи совпадает с порядком записи, в том числе в пределах
// каждого webhook_queue_id. События несут TTL и вычищаются при чтении.
//
// Буфер разделяется всеми Client-акторами процесса; все операции идут через
// одно соединение bbolt, транзакции дают нужную атомарность.
package tqueue

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	bolt "go.etcd.io/bbolt"

	"telegram-botapi-gateway/internal/infra/storage"
)

// Event — одно событие буфера. QueueID — webhook_queue_id: 64-битная метка
// субъекта апдейта, по которой webhook-доставка сохраняет порядок.
type Event struct {
	ID       uint64 `json:"id"`
	Kind     string `json:"kind"`
	QueueID  int64  `json:"queue_id"`
	Payload  []byte `json:"payload"`
	ExpireAt int64  `json:"expire_at"` // unix-секунды
}

// Store — TQueue поверх bbolt. Потокобезопасен (гарантии bbolt).
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open открывает (создавая при необходимости) файл буфера.
func Open(path string) (*Store, error) {
	if err := storage.EnsureDir(path); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open tqueue")
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close закрывает файл буфера.
func (s *Store) Close() error { return s.db.Close() }

// SetClock подменяет источник времени; используется тестами TTL.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func key(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

// Push добавляет событие в очередь бота и возвращает присвоенный id.
// Идентификаторы монотонны в пределах бота (bucket sequence).
func (s *Store) Push(bot string, ev Event) (uint64, error) {
	var id uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bot))
		if err != nil {
			return err
		}
		id, err = b.NextSequence()
		if err != nil {
			return err
		}
		ev.ID = id
		raw, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return b.Put(key(id), raw)
	})
	if err != nil {
		return 0, errors.Wrap(err, "tqueue push")
	}
	return id, nil
}

// Get возвращает до limit живых событий с id >= fromID, суммарно не больше
// maxBytes полезной нагрузки (лимит мягкий: первое событие отдаётся всегда).
// Просроченные события удаляются по пути.
func (s *Store) Get(bot string, fromID uint64, limit, maxBytes int) ([]Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	now := s.now().Unix()
	var out []Event
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bot))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		var expired [][]byte
		var total int
		for k, v := c.Seek(key(fromID)); k != nil; k, v = c.Next() {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				expired = append(expired, bytes.Clone(k))
				continue
			}
			if ev.ExpireAt != 0 && ev.ExpireAt <= now {
				expired = append(expired, bytes.Clone(k))
				continue
			}
			if len(out) > 0 && total+len(ev.Payload) > maxBytes {
				break
			}
			out = append(out, ev)
			total += len(ev.Payload)
			if len(out) >= limit {
				break
			}
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "tqueue get")
	}
	return out, nil
}

// Head возвращает id первого события очереди; 0, если очередь пуста.
func (s *Store) Head(bot string) (uint64, error) {
	var head uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bot))
		if b == nil {
			return nil
		}
		if k, _ := b.Cursor().First(); k != nil {
			head = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	return head, err
}

// Size возвращает число событий в очереди бота (включая просроченные,
// ещё не вычищенные чтением).
func (s *Store) Size(bot string) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(bot)); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// TruncateHead удаляет n первых событий очереди (getUpdates с offset < 0).
func (s *Store) TruncateHead(bot string, n int) error {
	if n <= 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bot))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil && n > 0; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			n--
		}
		return nil
	})
}

// DeleteUpTo удаляет все события с id < upTo: подтверждение доставки
// (курсор getUpdates либо успешная webhook-доставка).
func (s *Store) DeleteUpTo(bot string, upTo uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bot))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil && binary.BigEndian.Uint64(k) < upTo; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}

// Clear очищает очередь бота (drop_pending_updates, logout). Bucket остаётся:
// его sequence продолжает расти, поэтому id событий монотонны на всю жизнь бота.
func (s *Store) Clear(bot string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bot))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}
