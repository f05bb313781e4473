package app

// Счётчики активности ботов. UpdatesPerMinute участвует в admission-формулах
// Client: лимиты растут вместе с потоком апдейтов бота. Окно минуты собрано из
// посекундных корзин, устаревшие корзины обнуляются лениво при обращении.

import (
	"sync"
	"time"
)

// BotStats — счётчики одного бота. Потокобезопасен: пишут HTTP-слой и
// Client-актор, читает admission и эндпоинт статистики.
type BotStats struct {
	mu sync.Mutex

	requestsTotal uint64
	updatesTotal  uint64

	buckets    [60]int
	bucketUnix [60]int64

	now func() time.Time
}

// newBotStats создаёт счётчики; nowFn == nil означает time.Now.
func newBotStats(nowFn func() time.Time) *BotStats {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &BotStats{now: nowFn}
}

// RequestServed учитывает один принятый HTTP-запрос.
func (s *BotStats) RequestServed() {
	s.mu.Lock()
	s.requestsTotal++
	s.mu.Unlock()
}

// UpdateEmitted учитывает один эмитированный апдейт.
func (s *BotStats) UpdateEmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatesTotal++
	sec := s.now().Unix()
	i := sec % 60
	if s.bucketUnix[i] != sec {
		s.bucketUnix[i] = sec
		s.buckets[i] = 0
	}
	s.buckets[i]++
}

// UpdatesPerMinute возвращает число апдейтов за последние 60 секунд.
func (s *BotStats) UpdatesPerMinute() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec := s.now().Unix()
	total := 0
	for i := range s.buckets {
		if sec-s.bucketUnix[i] < 60 {
			total += s.buckets[i]
		}
	}
	return total
}

// Totals возвращает накопленные счётчики запросов и апдейтов.
func (s *BotStats) Totals() (requests, updates uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestsTotal, s.updatesTotal
}
