package reports

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore is the shared-state Store. All multi-step updates run as
// Lua scripts, so the duplicate check, counter updates, and score
// recompute for one URL hash commit atomically.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
}

// NewRedisStore creates a RedisStore with the given key prefix.
func NewRedisStore(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "scamshield"
	}
	return &RedisStore{client: client, logger: logger, prefix: prefix}
}

func (s *RedisStore) urlKey(hash string) string      { return s.prefix + ":url:" + hash }
func (s *RedisStore) reporterSet(hash string) string { return s.prefix + ":url:" + hash + ":reporters" }
func (s *RedisStore) userKey(id string) string       { return s.prefix + ":user:" + id }
func (s *RedisStore) userPrefix() string             { return s.prefix + ":user:" }
func (s *RedisStore) statsKey() string               { return s.prefix + ":stats" }

// submitScript mirrors the ledger and aggregator constants in Go:
// default trust 50, multiplier and cap bands by report count.
// Returns {code, is_new, score}; code 1 = banned, 2 = duplicate.
var submitScript = redis.NewScript(`
local urlKey, repSet, userKey, statsKey = KEYS[1], KEYS[2], KEYS[3], KEYS[4]
local url, domain, userID, threat, now = ARGV[1], ARGV[2], ARGV[3], ARGV[4], ARGV[5]

if redis.call('HGET', userKey, 'banned') == '1' then
	return {1, 0, 0}
end
if redis.call('SISMEMBER', repSet, userID) == 1 then
	local score = tonumber(redis.call('HGET', urlKey, 'score') or '0')
	return {2, 0, score}
end

local trust = redis.call('HGET', userKey, 'trust')
if not trust then
	trust = 50
	redis.call('HSET', userKey, 'trust', trust, 'banned', 0)
	redis.call('HINCRBY', statsKey, 'total_reporters', 1)
else
	trust = tonumber(trust)
end

local isNew = 0
if redis.call('EXISTS', urlKey) == 0 then
	isNew = 1
	redis.call('HSET', urlKey, 'url', url, 'domain', domain,
		'status', 'pending', 'first_reported', now)
	redis.call('HINCRBY', statsKey, 'total_urls', 1)
	redis.call('HINCRBY', statsKey, 'pending_urls', 1)
end

redis.call('SADD', repSet, userID)
local count = redis.call('HINCRBY', urlKey, 'report_count', 1)
local sum = redis.call('HINCRBY', urlKey, 'trust_sum', trust)
redis.call('HSET', urlKey, 'primary_threat_type', threat, 'last_reported', now)

local mult, cap
if count <= 1 then mult, cap = 0.3, 30
elseif count == 2 then mult, cap = 0.5, 45
elseif count <= 4 then mult, cap = 0.6, 60
elseif count <= 9 then mult, cap = 0.7, 75
elseif count <= 19 then mult, cap = 0.85, 100
else mult, cap = 1.0, 100 end

local score = math.floor((sum / count) * mult + 0.5)
if score > cap then score = cap end
redis.call('HSET', urlKey, 'score', score)

redis.call('HINCRBY', userKey, 'reports', 1)
redis.call('HINCRBY', statsKey, 'total_reports', 1)

return {0, isNew, score}
`)

// reviewScript applies a moderation decision and walks the reporter set,
// adjusting trust with the same rewards, penalties, and clamps as the
// in-memory ledger. Returns {code, adjusted, banned}.
var reviewScript = redis.NewScript(`
local urlKey, repSet, statsKey = KEYS[1], KEYS[2], KEYS[3]
local decision, userPrefix = ARGV[1], ARGV[2]

if redis.call('EXISTS', urlKey) == 0 then
	return {-1, 0, 0}
end

local function bucket(status)
	if status == 'pending' then return 'pending_urls' end
	if status == 'confirmed' then return 'confirmed_urls' end
	return 'rejected_urls'
end

local old = redis.call('HGET', urlKey, 'status') or 'pending'
local new = 'rejected'
if decision == 'confirm' then new = 'confirmed' end
if old ~= new then
	redis.call('HSET', urlKey, 'status', new)
	redis.call('HINCRBY', statsKey, bucket(old), -1)
	redis.call('HINCRBY', statsKey, bucket(new), 1)
end

local adjusted, banned = 0, 0
for _, userID in ipairs(redis.call('SMEMBERS', repSet)) do
	local ukey = userPrefix .. userID
	local trust = tonumber(redis.call('HGET', ukey, 'trust') or '50')
	adjusted = adjusted + 1
	if decision == 'confirm' then
		trust = trust + 3
		if trust > 100 then trust = 100 end
		redis.call('HINCRBY', ukey, 'confirmed', 1)
	else
		trust = trust - 10
		if trust < 0 then trust = 0 end
		redis.call('HINCRBY', ukey, 'rejected', 1)
		if trust < 10 and redis.call('HGET', ukey, 'banned') ~= '1' then
			redis.call('HSET', ukey, 'banned', 1)
			banned = banned + 1
			redis.call('HINCRBY', statsKey, 'banned_reporters', 1)
		end
	end
	redis.call('HSET', ukey, 'trust', trust)
end

return {0, adjusted, banned}
`)

// Submit runs the submission script for one report.
func (s *RedisStore) Submit(ctx context.Context, rep Report) (*SubmitResult, error) {
	now := rep.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	keys := []string{
		s.urlKey(rep.URLHash),
		s.reporterSet(rep.URLHash),
		s.userKey(rep.UserID),
		s.statsKey(),
	}
	raw, err := submitScript.Run(ctx, s.client, keys,
		rep.URL, rep.Domain, rep.UserID, rep.ThreatType, now.Unix()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, raw)
	}

	switch raw[0] {
	case 1:
		return &SubmitResult{
			Message:   "Reporter is banned from submitting reports",
			Rejection: RejectionBanned,
		}, nil
	case 2:
		return &SubmitResult{
			Message:   "You have already reported this URL",
			URLScore:  int(raw[2]),
			Rejection: RejectionDuplicate,
		}, nil
	}

	return &SubmitResult{
		Success:     true,
		Message:     "Report recorded",
		URLScore:    int(raw[2]),
		IsNewReport: raw[1] == 1,
	}, nil
}

// Review runs the review script.
func (s *RedisStore) Review(ctx context.Context, urlHash string, decision Decision) (*ReviewResult, error) {
	keys := []string{s.urlKey(urlHash), s.reporterSet(urlHash), s.statsKey()}
	raw, err := reviewScript.Run(ctx, s.client, keys, string(decision), s.userPrefix()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, raw)
	}
	if raw[0] == -1 {
		return nil, ErrNotFound
	}

	status := StatusRejected
	if decision == DecisionConfirm {
		status = StatusConfirmed
	}
	return &ReviewResult{
		URLHash:           urlHash,
		Status:            status,
		ReportersAdjusted: int(raw[1]),
		ReportersBanned:   int(raw[2]),
	}, nil
}

// GetURL loads one URL aggregate.
func (s *RedisStore) GetURL(ctx context.Context, urlHash string) (*URLRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.urlKey(urlHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	record := &URLRecord{
		URLHash:           urlHash,
		URL:               fields["url"],
		Domain:            fields["domain"],
		Status:            Status(fields["status"]),
		ReportCount:       atoi(fields["report_count"]),
		TrustSum:          atoi(fields["trust_sum"]),
		Score:             atoi(fields["score"]),
		PrimaryThreatType: fields["primary_threat_type"],
	}
	if ts := atoi64(fields["first_reported"]); ts > 0 {
		record.FirstReported = time.Unix(ts, 0).UTC()
	}
	if ts := atoi64(fields["last_reported"]); ts > 0 {
		record.LastReported = time.Unix(ts, 0).UTC()
	}
	return record, nil
}

// GetReporter loads one trust ledger entry.
func (s *RedisStore) GetReporter(ctx context.Context, userID string) (*Reporter, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	return &Reporter{
		UserID:         userID,
		Trust:          atoi(fields["trust"]),
		Banned:         fields["banned"] == "1",
		ReportCount:    atoi(fields["reports"]),
		ConfirmedCount: atoi(fields["confirmed"]),
		RejectedCount:  atoi(fields["rejected"]),
	}, nil
}

// Stats reads the O(1) counter hash maintained by the scripts.
func (s *RedisStore) Stats(ctx context.Context) (*Stats, error) {
	fields, err := s.client.HGetAll(ctx, s.statsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &Stats{
		TotalURLs:       atoi(fields["total_urls"]),
		PendingURLs:     atoi(fields["pending_urls"]),
		ConfirmedURLs:   atoi(fields["confirmed_urls"]),
		RejectedURLs:    atoi(fields["rejected_urls"]),
		TotalReports:    atoi(fields["total_reports"]),
		TotalReporters:  atoi(fields["total_reporters"]),
		BannedReporters: atoi(fields["banned_reporters"]),
	}, nil
}

// Ping verifies connectivity for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func atoi(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

func atoi64(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}
